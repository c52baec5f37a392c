// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/config"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/tokenops"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/logger"
)

var (
	// OperationPerformed is set once a command has started its work.
	OperationPerformed bool
	// OperationPerformedSuccessfully is set when that work finished
	// without error.
	OperationPerformedSuccessfully bool
)

// state is shared by the commands of one tree.
type state struct {
	log        logger.Logger
	configPath string
	stdin      *os.File

	closers []io.Closer
}

func newState(log logger.Logger) *state {
	if log == nil {
		log = logger.NewCLILogger()
	}
	return &state{log: log, stdin: os.Stdin}
}

// config loads the layered configuration for cmd.
func (s *state) config(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd.Flags(), s.configPath)
}

// leveled opens the log sink selected by the configuration.
func (s *state) leveled(cmd *cobra.Command, cfg *config.Config) (logger.Leveled, error) {
	name := cmd.Root().Name()
	if cfg.Log.File != "" {
		l, err := logger.NewFileLeveled(name, cfg.Log.File, cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, l)
		return l, nil
	}
	return logger.NewLeveled(name, cmd.ErrOrStderr(), cfg.Log.Level), nil
}

// client returns an authenticated REST client for the configured server.
func (s *state) client(cmd *cobra.Command, srv config.Server) (*privacyidea.Client, error) {
	insecure, _ := cmd.Flags().GetBool("insecure")
	if insecure {
		srv.VerifyTLS = false
	}
	c, err := privacyidea.New(srv.ClientConfig())
	if err != nil {
		return nil, err
	}
	user, pass, ok, err := srv.Credentials(s.stdin, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if ok {
		if err := c.Authenticate(cmd.Context(), user, pass); err != nil {
			return nil, fmt.Errorf("authenticate as %s: %w", user, err)
		}
	}
	return c, nil
}

// ops wires the token procedures to the command's streams.
func (s *state) ops(cmd *cobra.Command) (*tokenops.Ops, *config.Config, error) {
	cfg, err := s.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := s.leveled(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.client(cmd, cfg.Server)
	if err != nil {
		return nil, nil, err
	}
	o := tokenops.New(c, log)
	o.Out = cmd.OutOrStdout()
	o.Err = cmd.ErrOrStderr()
	return o, cfg, nil
}

func (s *state) close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
	s.closers = nil
}

// addGlobalFlags registers the flags every tree shares on cmd.
func (s *state) addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&s.configPath, "config", "", "config file (default: pi-tools.yaml in /etc/privacyidea, user config dir or working dir)")
	f.String("url", "", "privacyIDEA server URL")
	f.String("admin", "", "admin user name")
	f.String("token", "", "API authorization token instead of admin credentials")
	f.Bool("insecure", false, "do not verify the server TLS certificate")
	f.Int("retries", 0, "retry failed HTTP requests this many times")
	f.String("log-level", "", "log level: debug, info, warn, error")
	f.String("logging", "", "append log lines to this file instead of stderr")
}

// finish marks the run and releases log files.
func (s *state) finish(err error) error {
	s.close()
	if err == nil {
		OperationPerformedSuccessfully = true
	}
	return err
}

// run wraps a RunE so every command records its outcome.
func (s *state) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		OperationPerformed = true
		return s.finish(fn(cmd, args))
	}
}

// NewRootCmd builds the pi-tools command tree.
func NewRootCmd(version string, log logger.Logger) *cobra.Command {
	st := newState(log)
	root := &cobra.Command{
		Use:           posix.GetExecutableName("pi-tools"),
		Short:         "privacyIDEA administration tools",
		Long:          "Token lifecycle helpers, event handler hooks, bulk import tools,\ncertificate expiry checks and migration utilities for privacyIDEA.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	st.addGlobalFlags(root)

	root.AddGroup(
		&cobra.Group{ID: groupHooks, Title: "Event handler hooks:"},
		&cobra.Group{ID: groupToolbox, Title: "Bulk tools:"},
		&cobra.Group{ID: groupMaintenance, Title: "Maintenance:"},
	)
	for _, c := range hookCommands(st) {
		c.GroupID = groupHooks
		root.AddCommand(c)
	}
	for _, c := range toolboxCommands(st) {
		c.GroupID = groupToolbox
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{
		checkCertificatesCmd(st),
		migrateTokensCmd(st),
		boomAlertCmd(st),
		configCmd(st),
	} {
		c.GroupID = groupMaintenance
		root.AddCommand(c)
	}
	return root
}

const (
	groupHooks       = "hooks"
	groupToolbox     = "toolbox"
	groupMaintenance = "maintenance"
)

// standalone turns a subcommand into the root of its own binary.
func standalone(st *state, cmd *cobra.Command, version string) *cobra.Command {
	cmd.Version = version
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	st.addGlobalFlags(cmd)
	return cmd
}

// NewCheckCertificatesCmd builds the check-certificates binary.
func NewCheckCertificatesCmd(version string, log logger.Logger) *cobra.Command {
	st := newState(log)
	return standalone(st, checkCertificatesCmd(st), version)
}

// NewMigrateTokensCmd builds the migrate-tokens binary.
func NewMigrateTokensCmd(version string, log logger.Logger) *cobra.Command {
	st := newState(log)
	return standalone(st, migrateTokensCmd(st), version)
}

// NewBoomAlertCmd builds the boomalert binary.
func NewBoomAlertCmd(version string, log logger.Logger) *cobra.Command {
	st := newState(log)
	return standalone(st, boomAlertCmd(st), version)
}

// Execute runs the pi-tools tree with ctx and returns the command error.
func Execute(ctx context.Context, version string, log logger.Logger) error {
	return Run(ctx, NewRootCmd(version, log), os.Args[1:])
}

// Run executes cmd with args and prints a failure through cmd's error
// stream.
func Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	if args == nil {
		// cobra falls back to os.Args for nil
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}
