// ABOUTME: One-shot send command
// ABOUTME: Sends a single message, prints the reply and the session it landed in

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/parlor/internal/conversation"
	"github.com/2389/parlor/internal/gateway"
)

func newSendCmd(a *app) *cobra.Command {
	var sessionID, persona string
	var webSearch bool

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply.

Without --session a new conversation is started; the id the server assigns
is printed so later sends can continue it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(); err != nil {
				return err
			}

			eng := a.newEngine()
			if persona != "" {
				if _, err := eng.SelectPersona(persona); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("web") {
				eng.SetWebSearch(webSearch)
			}
			if sessionID != "" {
				if err := eng.OpenSession(ctx, sessionID); err != nil {
					return a.expireOnAuthFailure(ctx, err)
				}
			}

			eng.SetDraft(strings.Join(args, " "))
			res := eng.Submit(ctx)

			msgs := eng.Messages()
			switch res.Outcome {
			case conversation.OutcomeSettled:
				printMessage(a.out, msgs[len(msgs)-1])
				color.New(color.Faint).Fprintf(a.out, "session %s\n", res.SessionID)
				return nil
			case conversation.OutcomeFailed:
				printMessage(a.out, msgs[len(msgs)-1])
				if errors.Is(res.Err, gateway.ErrAuthFailure) {
					return a.expireOnAuthFailure(ctx, res.Err)
				}
				return fmt.Errorf("send failed: %w", res.Err)
			case conversation.OutcomeRejected:
				return res.Err
			default:
				return errors.New("send did not complete: " + res.Outcome.String())
			}
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "continue this session instead of starting a new one")
	cmd.Flags().StringVarP(&persona, "persona", "p", "", "persona: assistant, friend, philosopher or poet")
	cmd.Flags().BoolVarP(&webSearch, "web", "w", false, "let the assistant search the web (default from config)")
	return cmd
}
