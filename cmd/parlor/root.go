// ABOUTME: Root command and the dependencies shared by every subcommand
// ABOUTME: Loads config, builds the logger, credential store, gateway client and auth gate

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/parlor/internal/auth"
	"github.com/2389/parlor/internal/config"
	"github.com/2389/parlor/internal/conversation"
	"github.com/2389/parlor/internal/credentials"
	"github.com/2389/parlor/internal/gateway"
	"github.com/2389/parlor/internal/logging"
)

var version = "dev"

// app holds what subcommands share. It is populated by the root command's
// pre-run hook.
type app struct {
	configPath string
	verbose    bool

	in     io.Reader
	lines  *bufio.Reader
	out    io.Writer
	cfg    *config.Config
	logger *slog.Logger
	store  credentials.Store
	client *gateway.Client
	gate   *auth.Gate

	closers []func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "parlor",
		Short: "Chat with the assistant service from the terminal",
		Long: `parlor keeps several named conversations with a remote assistant.

Quick Start:
  parlor register                 # create an account
  parlor login                    # store an access token
  parlor chat                     # interactive chat
  parlor send "hello" --persona friend
  parlor sessions list`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default $PARLOR_CONFIG, ./parlor.yaml or $XDG_CONFIG_HOME/parlor/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newSessionsCmd(a),
		newSendCmd(a),
		newChatCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadDefault(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	a.cfg = cfg

	a.in = cmd.InOrStdin()
	a.lines = bufio.NewReader(a.in)
	a.out = cmd.OutOrStdout()
	a.logger = logging.New(cfg.Logging, cmd.ErrOrStderr())

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	a.client = gateway.New(cfg.Gateway.BaseURL, store,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithLogger(a.logger),
	)

	a.gate = auth.NewGate(store, a.logger)
	if err := a.gate.Init(cmd.Context()); err != nil {
		a.logger.Warn("credentials unreadable, continuing logged out", "error", err)
	}

	a.logger.Debug("parlor ready",
		"base_url", cfg.Gateway.BaseURL,
		"credentials", cfg.Credentials.Backend,
		"auth", a.gate.State().String(),
	)
	return nil
}

func (a *app) close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newEngine builds a conversation engine bound to the app's gate.
func (a *app) newEngine() *conversation.Engine {
	eng := conversation.New(a.gate, a.client, a.logger,
		conversation.WithWebSearch(a.cfg.Chat.WebSearch),
	)
	a.closers = append(a.closers, func() error {
		eng.Close()
		return nil
	})
	return eng
}

// requireLogin turns gate errors into a hint for the user.
func (a *app) requireLogin() error {
	if err := a.gate.Check(); err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return errors.New("not logged in; run `parlor login` first")
		}
		return err
	}
	return nil
}

// errSessionExpired reports that the service refused the stored token.
var errSessionExpired = errors.New("session expired; run `parlor login` again")

// expireOnAuthFailure logs out when err says the service rejected the stored
// token, so later commands start from the logged-out state. Other errors are
// returned unchanged.
func (a *app) expireOnAuthFailure(ctx context.Context, err error) error {
	if err == nil || !errors.Is(err, gateway.ErrAuthFailure) {
		return err
	}
	if a.gate.State().Authenticated {
		if logoutErr := a.gate.Logout(ctx); logoutErr != nil {
			return errors.Join(err, fmt.Errorf("discarding rejected login: %w", logoutErr))
		}
	}
	a.logger.Debug("stored token rejected, logged out", "error", err)
	return fmt.Errorf("%w (%s)", errSessionExpired, gateway.Detail(err))
}

// readLine prints prompt and reads one line from the command's input.
func (a *app) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(a.out, prompt)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func openStore(cfg *config.Config) (credentials.Store, func() error, error) {
	path, err := cfg.CredentialsPath()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Credentials.Backend {
	case config.BackendSQLite:
		s, err := credentials.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening credential database: %w", err)
		}
		return s, s.Close, nil
	case config.BackendMemory:
		return credentials.NewMemoryStore(), nil, nil
	default:
		return credentials.NewFileStore(path), nil, nil
	}
}
