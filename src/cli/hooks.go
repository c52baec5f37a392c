// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/config"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/tokenops"
)

// hookArgs are the arguments the script handler passes to every hook.
type hookArgs struct {
	Serial       string
	User         string
	Realm        string
	LoggedInUser string
	LoggedInRole string
}

type hookFunc func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error

// newHook builds an event handler hook command. The script handler appends
// arguments a hook does not know, so unknown flags are ignored.
func newHook(st *state, use, short string, fn hookFunc) *cobra.Command {
	var a hookArgs
	cmd := &cobra.Command{
		Use:                use,
		Short:              short,
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: st.run(func(cmd *cobra.Command, _ []string) error {
			o, cfg, err := st.ops(cmd)
			if err != nil {
				return err
			}
			return fn(cmd, o, cfg, a)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&a.Serial, "serial", "", "token serial")
	f.StringVar(&a.User, "user", "", "user name")
	f.StringVar(&a.Realm, "realm", "", "realm of the user")
	f.StringVar(&a.LoggedInUser, "logged_in_user", "", "user that triggered the event")
	f.StringVar(&a.LoggedInRole, "logged_in_role", "", "role of the user that triggered the event")
	return cmd
}

func hookCommands(st *state) []*cobra.Command {
	primary := newHook(st, "create-primary-token", "Enroll the primary token types for the users of a realm",
		func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
			p := cfg.Hooks.Primary
			return o.CreatePrimaryToken(cmd.Context(), tokenops.PrimaryOptions{
				Realm:        a.Realm,
				User:         a.User,
				LoggedInUser: a.LoggedInUser,
				LoggedInRole: a.LoggedInRole,
				AdminUser:    p.AdminUser,
				Types:        p.Types,
				Params:       paramsOf(p.Params),
			})
		})

	return []*cobra.Command{
		newHook(st, "add-tokeninfo-timestamp", "Store the current time as tokeninfo timestamp",
			func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, a hookArgs) error {
				return o.AddTokeninfoTimestamp(cmd.Context(), a.Serial)
			}),
		newHook(st, "assign-ssh-token", "Attach a token to the configured SSH host",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.AssignSSHToken(cmd.Context(), a.Serial, a.User, cfg.Hooks.SSHHost)
			}),
		newHook(st, "unassign-ssh-token", "Detach a token from the configured SSH host",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.UnassignSSHToken(cmd.Context(), a.Serial, cfg.Hooks.SSHHost)
			}),
		newHook(st, "attach-offline", "Attach a token to the offline application",
			func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, a hookArgs) error {
				return o.AttachOffline(cmd.Context(), a.Serial)
			}),
		newHook(st, "create-registration", "Enroll a registration token and print its code",
			func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, a hookArgs) error {
				return o.CreateRegistration(cmd.Context(), a.User, a.Realm)
			}),
		newHook(st, "create-remote-and-spass", "Enroll the local token and the remote spass token",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				r := cfg.Hooks.RemoteSpass
				return o.CreateRemoteAndSpass(cmd.Context(), a.User, a.Realm, tokenops.RemoteSpassOptions{
					ExcludeUsers: r.ExcludeUsers,
					LocalToken:   r.LocalToken,
					RemoteToken:  r.RemoteToken,
					RemoteRealm:  r.RemoteRealm,
					RemoteServer: r.RemoteServer,
				})
			}),
		newHook(st, "create-remote-tokens", "Create remote tokens forwarding to a serial",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				r := cfg.Hooks.RemoteTokens
				return o.CreateRemoteTokens(cmd.Context(), a.Serial, tokenops.RemoteTokensOptions{
					Usernames:     r.Usernames,
					Realm:         r.Realm,
					ServerID:      r.ServerID,
					LocalCheckPIN: r.LocalCheckPIN,
				})
			}),
		primary,
		newHook(st, "delete-or-disable-token", "Delete or disable the configured token types of a user",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				d := cfg.Hooks.DeleteOrDisable
				return o.DeleteOrDisableToken(cmd.Context(), a.User, a.Realm, tokenops.DeleteOrDisableOptions{
					Types:        d.Types,
					Active:       d.ActiveFilter(),
					Action:       d.Action,
					RolloutState: d.RolloutState,
					LogFile:      d.LogFile,
				})
			}),
		newHook(st, "delete-totp", "Delete the TOTP tokens of a user",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.DeleteTOTP(cmd.Context(), a.User, a.Realm, cfg.Hooks.DeleteTOTPLimit)
			}),
		newHook(st, "disable-tan", "Disable the TAN tokens of a user",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.DisableTAN(cmd.Context(), a.User, a.Realm, tokenops.TANOptions{Types: cfg.Hooks.TANTypes})
			}),
		newHook(st, "enable-tan", "Enable the TAN tokens of the owner of a serial",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.EnableTAN(cmd.Context(), a.Serial, tokenops.TANOptions{Types: cfg.Hooks.TANTypes})
			}),
		newHook(st, "reassign-token", "Move a token to the user in the configured realm",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.ReassignToken(cmd.Context(), a.Serial, a.User, cfg.Hooks.ReassignRealm)
			}),
		newHook(st, "remove-other-tokens", "Remove the other tokens of a user",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.RemoveOtherTokens(cmd.Context(), a.Serial, a.User, a.Realm, removeOtherOptions(cfg.Hooks.RemoveOther))
			}),
		newHook(st, "remove-user-tokens", "Remove the tokens of a user",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.RemoveUserTokens(cmd.Context(), a.User, a.Realm, removeUserOptions(cfg.Hooks.RemoveUser))
			}),
		newHook(st, "reset-failcounter", "Reset the fail counter of remote and linked tokens",
			func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, a hookArgs) error {
				return o.ResetFailcounter(cmd.Context(), a.User, a.Realm)
			}),
		newHook(st, "set-pin", "Set the configured PIN on a token",
			func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, a hookArgs) error {
				return o.SetPin(cmd.Context(), a.Serial, cfg.Hooks.PIN)
			}),
	}
}

func removeOtherOptions(r config.RemoveOther) tokenops.RemoveOptions {
	return tokenops.RemoveOptions{
		Per:        r.Per,
		OnlyActive: r.OnlyActive,
		TokenInfo:  tokenInfo(r.TokenInfo),
	}
}

func removeUserOptions(r config.RemoveUser) tokenops.RemoveOptions {
	return tokenops.RemoveOptions{
		Type:       r.Type,
		OnlyActive: r.OnlyActive,
		TokenInfo:  tokenInfo(r.TokenInfo),
	}
}

// tokenInfo drops empty values so a config file can lift a default filter
// with `tokenkind: ""`.
func tokenInfo(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// paramsOf converts configured per-type parameters. Nil keeps the
// procedure defaults.
func paramsOf(m map[string]map[string]string) map[string]privacyidea.Params {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]privacyidea.Params, len(m))
	for typ, p := range m {
		out[typ] = privacyidea.Params(p)
	}
	return out
}
