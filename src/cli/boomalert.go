// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/sms"
)

// ExitError carries a process exit code other than 1.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code for an Execute error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// boomAlertCmd sends the message read from stdin to the given numbers.
// The script handler records the exit code, which is the HTTP status of a
// rejected request.
func boomAlertCmd(st *state) *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "boomalert [flags] PHONE...",
		Short: "Send the SMS read from stdin through the Boom Alert gateway",
		RunE: st.run(func(cmd *cobra.Command, phones []string) error {
			if generate {
				_, err := io.WriteString(cmd.OutOrStdout(), sms.ConfigTemplate)
				return err
			}
			if len(phones) == 0 {
				return sms.ErrNoRecipients
			}
			cfg, err := st.config(cmd)
			if err != nil {
				return err
			}
			bc, err := sms.LoadBoomConfig(cfg.SMS.Config)
			if err != nil {
				return err
			}

			var message string
			if err := gc.ReadAll(cmd.InOrStdin(), func(data []byte) error {
				message = string(data)
				return nil
			}); err != nil {
				return fmt.Errorf("read message: %w", err)
			}

			id, err := sms.NewBoomAlert(*bc).Send(cmd.Context(), message, phones)
			if err != nil {
				return &ExitError{Code: sms.ExitCode(err), Err: err}
			}
			st.log.Printf("Sent message %s", id)
			return nil
		}),
	}
	cmd.Flags().StringP("sms-config", "c", sms.DefaultConfigPath, "Boom Alert credentials file")
	cmd.Flags().BoolVarP(&generate, "generate", "g", false, "print a config file template")
	return cmd
}
