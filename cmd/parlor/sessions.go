// ABOUTME: Session directory commands: list, show and delete
// ABOUTME: Each runs against a fresh engine bound to the stored login

package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/parlor/internal/gateway"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show or delete saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, a)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved conversations, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSessionsList(cmd, a)
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a conversation's messages",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				eng := a.newEngine()
				if err := eng.OpenSession(cmd.Context(), args[0]); err != nil {
					return a.expireOnAuthFailure(cmd.Context(), err)
				}
				printMessages(a.out, eng.Messages())
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				if err := a.newEngine().DeleteSession(cmd.Context(), args[0]); err != nil {
					return a.expireOnAuthFailure(cmd.Context(), err)
				}
				color.New(color.FgGreen).Fprintf(a.out, "Deleted session %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func runSessionsList(cmd *cobra.Command, a *app) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	eng := a.newEngine()
	if err := eng.RefreshSessions(cmd.Context()); err != nil {
		if errors.Is(err, gateway.ErrAuthFailure) {
			return a.expireOnAuthFailure(cmd.Context(), err)
		}
		return fmt.Errorf("listing sessions: %w", err)
	}
	printSessions(a.out, eng.Sessions(), eng.ActiveSession())
	return nil
}
