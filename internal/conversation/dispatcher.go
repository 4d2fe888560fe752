// ABOUTME: Message dispatcher phases and send outcomes
// ABOUTME: idle → sending → settled|failed → idle, with discard for superseded replies

package conversation

import (
	"errors"
	"fmt"
)

// FallbackText replaces the assistant's reply when a send fails.
const FallbackText = "AI service is unavailable. Please try again."

// ErrEmptyMessage rejects a send whose text is blank after trimming.
var ErrEmptyMessage = errors.New("message is empty")

// Phase is the dispatcher's position in a send.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseSettled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseSettled:
		return "settled"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DispatchEvent moves the dispatcher between phases.
type DispatchEvent int

const (
	DispatchStart DispatchEvent = iota
	DispatchSucceeded
	DispatchFailed
	DispatchSuperseded
	DispatchDone
)

// Advance is the dispatcher's transition function. Starting while not idle
// is refused, which is what makes the busy flag exclusive.
func Advance(p Phase, ev DispatchEvent) (Phase, bool) {
	switch {
	case p == PhaseIdle && ev == DispatchStart:
		return PhaseSending, true
	case p == PhaseSending && ev == DispatchSucceeded:
		return PhaseSettled, true
	case p == PhaseSending && ev == DispatchFailed:
		return PhaseFailed, true
	case p == PhaseSending && ev == DispatchSuperseded:
		return PhaseIdle, true
	case (p == PhaseSettled || p == PhaseFailed) && ev == DispatchDone:
		return PhaseIdle, true
	default:
		return p, false
	}
}

// Outcome summarizes how a send ended.
type Outcome int

const (
	// OutcomeRejected: nothing was appended and no request was made.
	OutcomeRejected Outcome = iota
	// OutcomeBusy: another send was in flight; this one was ignored.
	OutcomeBusy
	// OutcomeSettled: the reply was appended.
	OutcomeSettled
	// OutcomeFailed: the fallback message was appended.
	OutcomeFailed
	// OutcomeDiscarded: the buffer moved to another conversation while the
	// request was in flight, so the reply was dropped.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeBusy:
		return "busy"
	case OutcomeSettled:
		return "settled"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result reports one call to Send.
type Result struct {
	Outcome Outcome
	// SessionID is the session the reply belongs to when settled.
	SessionID string
	// Err is the rejection reason or the failure cause.
	Err error
}
