// ABOUTME: Persona selector for the assistant's voice
// ABOUTME: Fixed persona set with a pure lowercase role-tag derivation

package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPersona is returned when a name matches no persona.
var ErrUnknownPersona = errors.New("unknown persona")

// Persona is one of the fixed assistant voices.
type Persona string

const (
	PersonaAssistant   Persona = "Assistant"
	PersonaFriend      Persona = "Friend"
	PersonaPhilosopher Persona = "Philosopher"
	PersonaPoet        Persona = "Poet"
)

// DefaultPersona is selected on process start.
const DefaultPersona = PersonaAssistant

// Personas lists every persona in display order.
func Personas() []Persona {
	return []Persona{PersonaAssistant, PersonaFriend, PersonaPhilosopher, PersonaPoet}
}

// ParsePersona matches name case-insensitively against the persona set and
// returns the canonical persona.
func ParsePersona(name string) (Persona, error) {
	name = strings.TrimSpace(name)
	for _, p := range Personas() {
		if strings.EqualFold(name, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPersona, name)
}

// RoleTag is the value sent as the chat request's role.
func (p Persona) RoleTag() string {
	return strings.ToLower(string(p))
}

func (p Persona) String() string {
	return string(p)
}

// Selector holds the current persona. The zero value selects DefaultPersona.
type Selector struct {
	current Persona
}

// Select switches to the named persona. An unknown name leaves the
// selection unchanged.
func (s *Selector) Select(name string) (Persona, error) {
	p, err := ParsePersona(name)
	if err != nil {
		return s.Current(), err
	}
	s.current = p
	return p, nil
}

// Current returns the selected persona.
func (s *Selector) Current() Persona {
	if s.current == "" {
		return DefaultPersona
	}
	return s.current
}
