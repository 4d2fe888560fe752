// ABOUTME: Interactive chat loop over the conversation engine
// ABOUTME: Line input with slash commands; replies are printed from the engine's change feed

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/parlor/internal/conversation"
	"github.com/2389/parlor/internal/gateway"
)

func newChatCmd(a *app) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			return runChat(cmd.Context(), a, sessionID)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "open this session on start")
	return cmd
}

type repl struct {
	a      *app
	eng    *conversation.Engine
	out    io.Writer
	view   *transcript
	change <-chan conversation.Change
	// expired is set once the service rejects the stored token; the loop
	// ends with it.
	expired error
}

func runChat(ctx context.Context, a *app, sessionID string) error {
	eng := a.newEngine()
	r := &repl{
		a:      a,
		eng:    eng,
		out:    a.out,
		view:   &transcript{w: a.out},
		change: eng.Subscribe(ctx),
	}

	if err := eng.Start(ctx); err != nil {
		r.fail(ctx, err)
		if r.expired != nil {
			return r.expired
		}
	}
	if profile, err := eng.Profile(ctx); err == nil {
		fmt.Fprintf(r.out, "Hello, %s. ", profile.DisplayName)
	}
	fmt.Fprintln(r.out, "Type a message and press Enter. /help for commands. Ctrl+C to quit.")

	if sessionID != "" {
		r.open(ctx, sessionID)
	}
	r.drain(false)

	lines := readLines(ctx, a.lines)
	for {
		if r.expired != nil {
			return r.expired
		}
		fmt.Fprint(r.out, r.prompt())

		var input string
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return nil
			}
			input = strings.TrimSpace(line)
		}

		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if quit := r.command(ctx, input); quit {
				return nil
			}
			r.drain(false)
			continue
		}

		r.eng.SetDraft(input)
		res := r.eng.Submit(ctx)
		switch res.Outcome {
		case conversation.OutcomeRejected:
			r.errorf("%v", res.Err)
		case conversation.OutcomeBusy:
			r.errorf("still waiting for the previous reply")
		case conversation.OutcomeFailed:
			r.a.logger.Debug("send failed", "error", res.Err)
		}
		r.drain(true)
		if res.Outcome == conversation.OutcomeFailed && errors.Is(res.Err, gateway.ErrAuthFailure) {
			r.fail(ctx, res.Err)
		}
	}
}

// readLines feeds input lines to a channel until EOF or ctx is done.
func readLines(ctx context.Context, in *bufio.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadString('\n')
			if line != "" || err == nil {
				select {
				case lines <- strings.TrimRight(line, "\r\n"):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

func (r *repl) prompt() string {
	tag := r.eng.Persona().RoleTag()
	if r.eng.WebSearch() {
		tag += "+web"
	}
	if id := r.eng.ActiveSession(); id != conversation.NoSession {
		return color.CyanString("[%s #%s]> ", tag, id)
	}
	return color.CyanString("[%s new]> ", tag)
}

// drain consumes pending changes and prints new messages if any arrived.
func (r *repl) drain(skipUser bool) {
	changed := false
	for pending := true; pending; {
		select {
		case c, ok := <-r.change:
			if !ok {
				r.change = nil
				continue
			}
			if c.Kind == conversation.ChangeMessages || c.Kind == conversation.ChangeCleared {
				changed = true
			}
		default:
			pending = false
		}
	}
	if changed {
		r.view.flush(r.eng.Messages(), skipUser)
	}
}

// command runs a slash command and reports whether the loop should end.
func (r *repl) command(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		printChatHelp(r.out)
	case "/new":
		r.eng.NewConversation()
		fmt.Fprintln(r.out, "Started a new conversation.")
	case "/open":
		if arg == "" {
			r.errorf("usage: /open <session id>")
			break
		}
		r.open(ctx, arg)
	case "/sessions":
		if err := r.eng.RefreshSessions(ctx); err != nil {
			r.fail(ctx, err)
			break
		}
		printSessions(r.out, r.eng.Sessions(), r.eng.ActiveSession())
	case "/delete":
		if arg == "" {
			r.errorf("usage: /delete <session id>")
			break
		}
		if err := r.eng.DeleteSession(ctx, arg); err != nil {
			r.fail(ctx, err)
			break
		}
		fmt.Fprintf(r.out, "Deleted session %s.\n", arg)
	case "/persona":
		if arg == "" {
			fmt.Fprintf(r.out, "Persona: %s (choose from %s)\n", r.eng.Persona(), personaNames())
			break
		}
		p, err := r.eng.SelectPersona(arg)
		if err != nil {
			r.errorf("%v; choose from %s", err, personaNames())
			break
		}
		fmt.Fprintf(r.out, "Persona set to %s.\n", p)
	case "/web":
		switch strings.ToLower(arg) {
		case "on":
			r.eng.SetWebSearch(true)
		case "off":
			r.eng.SetWebSearch(false)
		case "":
		default:
			r.errorf("usage: /web on|off")
			return false
		}
		state := "off"
		if r.eng.WebSearch() {
			state = "on"
		}
		fmt.Fprintf(r.out, "Web search is %s.\n", state)
	case "/history":
		msgs := r.eng.Messages()
		printMessages(r.out, msgs)
		r.view.reset(msgs)
	default:
		r.errorf("unknown command %s; /help lists commands", name)
	}
	return false
}

func (r *repl) open(ctx context.Context, id string) {
	err := r.eng.OpenSession(ctx, id)
	switch {
	case errors.Is(err, conversation.ErrSuperseded):
	case err != nil:
		r.fail(ctx, err)
	default:
		title := id
		if s, ok := r.eng.FindSession(id); ok && s.Title != "" {
			title = s.Title
		}
		color.New(color.Bold).Fprintf(r.out, "── %s ──\n", title)
	}
}

// fail reports err. A rejected token logs out and ends the loop.
func (r *repl) fail(ctx context.Context, err error) {
	if errors.Is(err, gateway.ErrAuthFailure) {
		r.expired = r.a.expireOnAuthFailure(ctx, err)
		return
	}
	r.errorf("%s", gateway.Detail(err))
}

func (r *repl) errorf(format string, args ...any) {
	color.New(color.FgRed).Fprintf(r.out, "[error] "+format+"\n", args...)
}

func personaNames() string {
	var names []string
	for _, p := range conversation.Personas() {
		names = append(names, strings.ToLower(p.String()))
	}
	return strings.Join(names, ", ")
}

func printChatHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  /new             Start a new conversation")
	fmt.Fprintln(w, "  /open <id>       Open a saved conversation")
	fmt.Fprintln(w, "  /sessions        List saved conversations")
	fmt.Fprintln(w, "  /delete <id>     Delete a saved conversation")
	fmt.Fprintln(w, "  /persona [name]  Show or set the persona")
	fmt.Fprintln(w, "  /web on|off      Toggle web search")
	fmt.Fprintln(w, "  /history         Reprint this conversation")
	fmt.Fprintln(w, "  /help            Show this help")
	fmt.Fprintln(w, "  /quit            Exit")
}
