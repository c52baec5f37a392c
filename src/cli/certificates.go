// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/certcheck"
)

// checkCertificatesCmd reports the days left on the web server and LDAP
// resolver certificates. Certificate problems go to the log and never
// change the exit code.
func checkCertificatesCmd(st *state) *cobra.Command {
	var (
		web, ldap      bool
		table, asJSON  bool
		exporterString string
	)
	cmd := &cobra.Command{
		Use:   "check-certificates",
		Short: "Warn about web server and LDAP certificates close to expiry",
		Long: `Check the certificates referenced by the apache, httpd and nginx site
configurations and the TLS certificates of the LDAP resolvers. Every
certificate is logged with the days it remains valid; a warning is logged
when that is at or below --days.

Resolver names may follow --exclude separated by spaces, commas or given
as repeated --exclude flags.`,
		Example: "  check-certificates --ldap --exclude resolver_name1 resolver_name2",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && !cmd.Flags().Changed("exclude") {
				return fmt.Errorf("unexpected argument %q: resolver names belong after --exclude", args[0])
			}
			return nil
		},
		RunE: st.run(func(cmd *cobra.Command, args []string) error {
			if table && asJSON {
				return errors.New("--table and --json are mutually exclusive")
			}
			cfg, err := st.config(cmd)
			if err != nil {
				return err
			}
			log, err := st.leveled(cmd, cfg)
			if err != nil {
				return err
			}
			c := cfg.Certificates
			c.Exclude = append(c.Exclude, args...)
			fetcher, err := certcheck.NewFetcher(c.Fetcher, c.Timeout)
			if err != nil {
				return err
			}

			var exporter certcheck.Exporter = &certcheck.CommandExporter{Command: c.Exporter}
			if exporterString != "" {
				exporter = &certcheck.CommandExporter{Command: strings.Fields(exporterString)}
			}
			if c.ResolverFile != "" {
				exporter = &certcheck.FileExporter{Path: c.ResolverFile}
			}

			report := certcheck.New(certcheck.Options{
				Days:      c.Days,
				ConfigDir: c.ConfigDir,
				Web:       web,
				LDAP:      ldap,
				Exclude:   c.Exclude,
				Exporter:  exporter,
				Fetcher:   fetcher,
				Log:       log,
			}).Run(cmd.Context())

			switch {
			case table:
				return report.WriteTable(cmd.OutOrStdout())
			case asJSON:
				return report.WriteJSON(cmd.OutOrStdout())
			}
			return nil
		}),
	}

	f := cmd.Flags()
	f.Int("days", 30, "warn when a certificate expires within this many days")
	f.String("config-dir", "", "scan only this directory for web server configs")
	f.BoolVar(&web, "web", false, "check web server certificates")
	f.BoolVar(&ldap, "ldap", false, "check LDAP resolver certificates")
	f.StringSlice("exclude", nil, "LDAP resolver names to skip")
	f.String("fetcher", "native", "how LDAP certificates are retrieved: native or openssl")
	f.Duration("timeout", certcheck.DefaultTimeout, "LDAP dial timeout for the native fetcher")
	f.String("resolver-file", "", "read the resolver export from this file instead of running the exporter")
	f.StringVar(&exporterString, "exporter", "", "command printing the resolver export as JSON")
	f.BoolVar(&table, "table", false, "print a markdown summary on stdout")
	f.BoolVar(&asJSON, "json", false, "print a JSON summary on stdout")
	return cmd
}
