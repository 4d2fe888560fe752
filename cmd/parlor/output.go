// ABOUTME: Terminal rendering of messages and session listings
// ABOUTME: Assistant markdown goes through the plain-text renderer

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/2389/parlor/internal/conversation"
	"github.com/2389/parlor/internal/render"
)

// printMessage writes one message. User turns are dimmed; assistant turns
// are rendered from markdown and followed by their sources.
func printMessage(w io.Writer, m conversation.Message) {
	switch m.Sender {
	case conversation.SenderUser:
		color.New(color.FgBlue).Fprint(w, "you ")
		color.New(color.Faint).Fprintln(w, m.Text)
	default:
		color.New(color.FgGreen).Fprint(w, "assistant ")
		fmt.Fprintln(w, render.PlainText(m.Text))
		for _, src := range m.Sources {
			color.New(color.Faint, color.Italic).Fprintf(w, "  source: %s\n", src)
		}
	}
}

func printMessages(w io.Writer, msgs []conversation.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, m := range msgs {
		printMessage(w, m)
	}
}

func printSessions(w io.Writer, sessions []conversation.Session, active string) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No saved sessions.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tTITLE\tCREATED\tLAST MESSAGE")
	for _, s := range sessions {
		marker := ""
		if s.ID == active {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			marker, s.ID, truncate(s.Title, 40), formatTime(s.CreatedAt), truncate(oneLine(s.LastMessage), 50))
	}
	tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

// transcript prints only the messages the user has not seen yet. When the
// buffer no longer starts with what was printed (another session was
// opened or a new one started), it starts over.
type transcript struct {
	w     io.Writer
	shown []conversation.Message
}

func (t *transcript) flush(msgs []conversation.Message, skipUser bool) {
	start := len(t.shown)
	if !hasPrefix(msgs, t.shown) {
		start = 0
	}
	for _, m := range msgs[start:] {
		if skipUser && m.Sender == conversation.SenderUser {
			continue
		}
		printMessage(t.w, m)
	}
	t.shown = msgs
}

func (t *transcript) reset(msgs []conversation.Message) {
	t.shown = msgs
}

func hasPrefix(msgs, prefix []conversation.Message) bool {
	if len(prefix) > len(msgs) {
		return false
	}
	for i, m := range prefix {
		if m.Sender != msgs[i].Sender || m.Text != msgs[i].Text {
			return false
		}
	}
	return true
}
