// ABOUTME: Account commands: login, register, logout and whoami
// ABOUTME: Field collection only; the auth gate owns credential persistence

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/2389/parlor/internal/auth"
	"github.com/2389/parlor/internal/gateway"
)

func newLoginCmd(a *app) *cobra.Command {
	var email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			addr, err := a.promptIfEmpty(email, "Email: ")
			if err != nil {
				return err
			}
			password, err := a.readPassword(passwordStdin)
			if err != nil {
				return err
			}

			resp, err := a.client.Login(ctx, addr, password)
			if err != nil {
				return fmt.Errorf("login failed: %s", gateway.Detail(err))
			}

			if a.gate.State().Authenticated {
				if err := a.gate.Logout(ctx); err != nil {
					return fmt.Errorf("replacing previous login: %w", err)
				}
			}
			if err := a.gate.Login(ctx, resp.AccessToken, resp.UserID.String()); err != nil {
				return err
			}

			// The token is only trusted once the profile can be read with it
			profile, err := a.newEngine().Profile(ctx)
			if err != nil {
				if logoutErr := a.gate.Logout(ctx); logoutErr != nil {
					a.logger.Warn("failed to discard unverified login", "error", logoutErr)
				}
				return fmt.Errorf("verifying login: %s", gateway.Detail(err))
			}

			color.New(color.FgGreen).Fprintf(a.out, "Logged in as %s", profile.DisplayName)
			fmt.Fprintf(a.out, " (%s)\n", profile.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when omitted)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var name, email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			displayName, err := a.promptIfEmpty(name, "Name: ")
			if err != nil {
				return err
			}
			addr, err := a.promptIfEmpty(email, "Email: ")
			if err != nil {
				return err
			}
			password, err := a.readPassword(passwordStdin)
			if err != nil {
				return err
			}

			resp, err := a.client.Register(cmd.Context(), displayName, addr, password)
			if err != nil {
				return fmt.Errorf("registration failed: %s", gateway.Detail(err))
			}

			color.New(color.FgGreen).Fprintf(a.out, "Account created for %s\n", resp.UserName)
			fmt.Fprintln(a.out, "Run `parlor login` to start chatting.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (prompted when omitted)")
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when omitted)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.gate.Logout(cmd.Context())
			if errors.Is(err, auth.ErrInvalidTransition) {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			profile, err := a.newEngine().Profile(cmd.Context())
			if err != nil {
				return a.expireOnAuthFailure(cmd.Context(), err)
			}

			cyan := color.New(color.FgCyan)
			cyan.Fprint(a.out, "Name:  ")
			fmt.Fprintln(a.out, profile.DisplayName)
			cyan.Fprint(a.out, "Email: ")
			fmt.Fprintln(a.out, profile.Email)
			cyan.Fprint(a.out, "ID:    ")
			fmt.Fprintln(a.out, profile.ID)
			return nil
		},
	}
}

func (a *app) promptIfEmpty(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	line, err := a.readLine(prompt)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when stdin is a terminal, otherwise one
// line from the command's input.
func (a *app) readPassword(fromStdin bool) (string, error) {
	if f, ok := a.in.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	prompt := "Password: "
	if fromStdin {
		prompt = ""
	}
	line, err := a.readLine(prompt)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return line, nil
}
