// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/config"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/migrate"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/picfg"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/store"
)

// ErrNoMigrationConfig is returned when migrate-tokens runs without -c.
var ErrNoMigrationConfig = errors.New("cli: no migration config given, use -c or -g")

func migrateTokensCmd(st *state) *cobra.Command {
	var (
		path     string
		generate bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "migrate-tokens",
		Short: "Copy tokens between two privacyIDEA databases and assign them to renamed users",
		Long: `Copy the token rows of the users matched in the source instance into the
target database, create the renamed users in the target instance and
assign the copied tokens to them. Encrypted seeds and PIN hashes are
copied unchanged.

The migration file names the pi.cfg of both instances, their REST
endpoints and the rename rules. Print an example with -g.`,
		Args: cobra.NoArgs,
		RunE: st.run(func(cmd *cobra.Command, _ []string) error {
			if generate {
				f := migrate.FormatJSON
				if format == "yaml" || format == "yml" {
					f = migrate.FormatYAML
				}
				return migrate.WriteExample(cmd.OutOrStdout(), f)
			}
			if path == "" {
				return ErrNoMigrationConfig
			}
			return st.migrateTokens(cmd, path)
		}),
	}
	f := cmd.Flags()
	f.StringVarP(&path, "migrate-config", "c", "", "migration file (JSON or YAML by extension)")
	f.BoolVarP(&generate, "generate-example-config", "g", false, "print an example migration file")
	f.StringVar(&format, "format", "json", "format of the example: json or yaml")
	return cmd
}

func (s *state) migrateTokens(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	mcfg, err := migrate.LoadConfig(path)
	if err != nil {
		return err
	}
	cfg, err := s.config(cmd)
	if err != nil {
		return err
	}
	log, err := s.leveled(cmd, cfg)
	if err != nil {
		return err
	}

	source, err := openStoreAt(ctx, mcfg.SQL.From, false)
	if err != nil {
		return fmt.Errorf("source database: %w", err)
	}
	defer source.Close()
	target, err := openStoreAt(ctx, mcfg.SQL.To, true)
	if err != nil {
		return fmt.Errorf("target database: %w", err)
	}
	defer target.Close()

	from, err := s.endpointClient(ctx, cmd.ErrOrStderr(), mcfg.API.From)
	if err != nil {
		return fmt.Errorf("source API: %w", err)
	}
	to, err := s.endpointClient(ctx, cmd.ErrOrStderr(), mcfg.API.To)
	if err != nil {
		return fmt.Errorf("target API: %w", err)
	}

	m := &migrate.Migrator{
		From:   from,
		To:     to,
		Source: source,
		Target: target,
		Out:    cmd.OutOrStdout(),
		Log:    log,
	}
	res, err := m.Run(ctx, mcfg)
	log.Infof("migrated %d users: %d created, %d tokens copied, %d already present, %d assigned",
		res.Users, res.Created, res.Copied, res.Existing, res.Assigned)
	return err
}

// openStoreAt connects to the database of the pi.cfg at path. Missing
// tables are created on a SQLite target.
func openStoreAt(ctx context.Context, path string, target bool) (*store.Store, error) {
	pc, err := picfg.Load(path)
	if err != nil {
		return nil, err
	}
	db, err := pc.Database()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	st, err := store.Open(db)
	if err != nil {
		return nil, err
	}
	if target && db.Driver == picfg.DriverSQLite {
		if err := st.CreateTables(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

// endpointClient logs in to one side of a migration.
func (s *state) endpointClient(ctx context.Context, prompt io.Writer, ep migrate.Endpoint) (*privacyidea.Client, error) {
	c, err := privacyidea.New(ep.ClientConfig())
	if err != nil {
		return nil, err
	}
	if ep.Token != "" {
		return c, nil
	}
	pw := ep.Password
	if pw == "" {
		pw, err = config.PromptPassword(s.stdin, prompt, fmt.Sprintf("Password for %s at %s: ", ep.Username, ep.URL))
		if err != nil {
			return nil, err
		}
	}
	if err := c.Authenticate(ctx, ep.Username, pw); err != nil {
		return nil, fmt.Errorf("authenticate as %s: %w", ep.Username, err)
	}
	return c, nil
}
