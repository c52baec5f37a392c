// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/config"
)

const redacted = "********"

func configCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the pi-tools configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "example",
			Short: "Print a configuration file with the built-in defaults",
			Args:  cobra.NoArgs,
			RunE: st.run(func(cmd *cobra.Command, _ []string) error {
				return config.WriteExample(cmd.OutOrStdout())
			}),
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with secrets masked",
			Args:  cobra.NoArgs,
			RunE: st.run(func(cmd *cobra.Command, _ []string) error {
				cfg, err := st.config(cmd)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if cfg.File != "" {
					fmt.Fprintf(out, "# read from %s\n", cfg.File)
				}
				if cfg.Server.Password != "" {
					cfg.Server.Password = redacted
				}
				if cfg.Server.Token != "" {
					cfg.Server.Token = redacted
				}
				if cfg.Hooks.PIN != "" {
					cfg.Hooks.PIN = redacted
				}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			}),
		},
	)
	return cmd
}
