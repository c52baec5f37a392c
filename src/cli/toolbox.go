// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/config"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/csvin"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/picfg"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/safeword"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/store"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/tokenops"
)

// input returns the CSV source of a bulk tool: the file named by the first
// argument or stdin, decoded from the configured character set.
func (s *state) input(cmd *cobra.Command, cfg *config.Config, args []string) (io.Reader, error) {
	r := cmd.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, f)
		r = f
	}
	return csvin.Decode(r, cfg.Enroll.Encoding)
}

type csvFunc func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, r io.Reader) error

// newCSVTool builds a bulk tool reading CSV lines from a file or stdin.
func newCSVTool(st *state, use, short string, fn csvFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [FILE]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: st.run(func(cmd *cobra.Command, args []string) error {
			o, cfg, err := st.ops(cmd)
			if err != nil {
				return err
			}
			r, err := st.input(cmd, cfg, args)
			if err != nil {
				return err
			}
			return fn(cmd, o, cfg, r)
		}),
	}
}

type opsFunc func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config) error

// newTool builds a tool that only talks to the REST API.
func newTool(st *state, use, short string, fn opsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: st.run(func(cmd *cobra.Command, _ []string) error {
			o, cfg, err := st.ops(cmd)
			if err != nil {
				return err
			}
			return fn(cmd, o, cfg)
		}),
	}
}

func toolboxCommands(st *state) []*cobra.Command {
	return []*cobra.Command{
		assignTokenCmd(st),
		reAssignTokenCmd(st),
		createTokenCmd(st),
		createSMSTokenCmd(st),
		createSMSEmailCmd(st),
		createDefaultTokensCmd(st),
		createTokenViaAPICmd(st),
		createUserAssignTokenCmd(st),
		massCreateTokenCmd(st),
		importTokenCmd(st),
		usersWithoutTokenCmd(st),
		reassignTokensCmd(st),
		migrateUsersCmd(st),
		joinResolversCmd(st),
		decryptSafewordCmd(st),
		benchmarkCmd(st),
	}
}

func assignTokenCmd(st *state) *cobra.Command {
	var realm string
	cmd := newCSVTool(st, "assign-token", "Assign tokens from \"serial, username\" lines",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, r io.Reader) error {
			return o.AssignTokens(cmd.Context(), r, realm)
		})
	cmd.Flags().StringVar(&realm, "realm", "", "realm of the users")
	return cmd
}

func reAssignTokenCmd(st *state) *cobra.Command {
	var realm string
	cmd := newCSVTool(st, "re-assign-token", "Unassign and assign tokens from \"serial, _, username\" lines",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, r io.Reader) error {
			return o.ReAssignTokens(cmd.Context(), r, realm)
		})
	cmd.Flags().StringVar(&realm, "realm", "", "realm of the users")
	return cmd
}

func createTokenCmd(st *state) *cobra.Command {
	var opts tokenops.CreateTokenOptions
	cmd := newTool(st, "create-token", "Enroll password tokens with random passwords",
		func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config) error {
			if opts.Length == 0 {
				opts.Length = cfg.Enroll.PasswordLength
			}
			return o.CreateToken(cmd.Context(), opts)
		})
	f := cmd.Flags()
	f.StringVar(&opts.Type, "type", "pw", "token type")
	f.IntVar(&opts.Length, "length", 0, "password length (default from enroll.password_length)")
	f.StringVar(&opts.Realm, "realm", "", "token realm")
	f.StringVar(&opts.Serial, "serial", "", "serial, or serial prefix with --count")
	f.StringVar(&opts.User, "user", "", "assign the token to this user")
	f.IntVar(&opts.Count, "count", 1, "number of tokens")
	return cmd
}

func createSMSTokenCmd(st *state) *cobra.Command {
	var realm string
	cmd := newCSVTool(st, "create-sms-token", "Enroll SMS tokens from \"username, phone\" lines",
		func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config, r io.Reader) error {
			return o.CreateSMSTokens(cmd.Context(), r, tokenops.SMSTokenOptions{Realm: realm, Region: cfg.Enroll.Region})
		})
	cmd.Flags().StringVar(&realm, "realm", "", "realm of the users")
	cmd.Flags().String("region", "", "country for numbers without country code (default from enroll.region)")
	return cmd
}

func createSMSEmailCmd(st *state) *cobra.Command {
	opts := tokenops.AttributeOptions{}
	cmd := newTool(st, "create-sms-email-from-attributes", "Enroll SMS and email tokens from user attributes",
		func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config) error {
			opts.Region = cfg.Enroll.Region
			return o.CreateSMSEmailFromAttributes(cmd.Context(), opts)
		})
	f := cmd.Flags()
	f.StringVar(&opts.Realm, "realm", "", "realm of the users")
	f.StringVar(&opts.MobileAttr, "mobileattr", "mobile", "user attribute holding the phone number")
	f.StringVar(&opts.EmailAttr, "emailattr", "email", "user attribute holding the email address")
	f.String("region", "", "country for numbers without country code (default from enroll.region)")
	return cmd
}

func createDefaultTokensCmd(st *state) *cobra.Command {
	var opts tokenops.DefaultTokensOptions
	cmd := newTool(st, "create-default-tokens", "Enroll the default token types for the users of a realm",
		func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config) error {
			opts.Types = cfg.Enroll.DefaultTypes
			opts.Params = paramsOf(cfg.Enroll.Params)
			return o.CreateDefaultTokens(cmd.Context(), opts)
		})
	f := cmd.Flags()
	f.StringVar(&opts.Realm, "realm", "", "realm of the users")
	f.StringVar(&opts.User, "user", "", "only this user")
	f.StringVar(&opts.UserInfoKey, "userinfo-key", "", "only users whose attribute KEY matches --userinfo-value")
	f.StringVar(&opts.UserInfoValue, "userinfo-value", "", "value of --userinfo-key")
	f.StringVar(&opts.TokenType, "tokentype", "", "enroll only this type")
	return cmd
}

func createTokenViaAPICmd(st *state) *cobra.Command {
	var realm, typ string
	cmd := newCSVTool(st, "create-token-via-api", "Enroll a token for every user name read",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, r io.Reader) error {
			return o.CreateTokensViaAPI(cmd.Context(), r, realm, typ)
		})
	cmd.Flags().StringVar(&realm, "realm", "", "realm of the users")
	cmd.Flags().StringVar(&typ, "tokentype", "hotp", "token type")
	return cmd
}

func createUserAssignTokenCmd(st *state) *cobra.Command {
	var (
		opts   tokenops.UserAssignOptions
		radius bool
		attrs  []string
	)
	cmd := newCSVTool(st, "create-user-assign-token", "Create users and assign tokens from CSV lines",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, r io.Reader) error {
			if !radius {
				return o.CreateUserAssignToken(cmd.Context(), r, opts)
			}
			if len(attrs) > 2 {
				return fmt.Errorf("--attributes takes two names, got %d", len(attrs))
			}
			copy(opts.Attributes[:], attrs)
			return o.CreateUserAssignRadius(cmd.Context(), r, opts)
		})
	f := cmd.Flags()
	f.StringVar(&opts.Resolver, "resolver", "", "resolver to create users in")
	f.StringVar(&opts.Realm, "realm", "", "realm of the users")
	f.BoolVar(&radius, "radius", false, "read the ten column format and add a RADIUS token")
	f.StringSliceVar(&attrs, "attributes", nil, "user attributes filled from columns six and seven")
	f.StringVar(&opts.TokenType, "tokentype", "hotp", "type enrolled for soft (S) lines")
	f.StringVar(&opts.RadiusIdentifier, "radius-identifier", "", "RADIUS server identifier")
	f.StringVar(&opts.Source, "source", "", "tokeninfo source of the RADIUS token")
	return cmd
}

func massCreateTokenCmd(st *state) *cobra.Command {
	var opts tokenops.MassCreateOptions
	cmd := newCSVTool(st, "mass-create-token", "Create users and enroll tokens with a PIN from CSV lines",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, r io.Reader) error {
			return o.MassCreateToken(cmd.Context(), r, opts)
		})
	f := cmd.Flags()
	f.StringVar(&opts.Resolver, "resolver", "", "resolver to create users in")
	f.StringVar(&opts.Realm, "realm", "", "realm of the users")
	f.StringVar(&opts.TokenType, "tokentype", "hotp", "token type")
	return cmd
}

func importTokenCmd(st *state) *cobra.Command {
	var realm string
	cmd := newCSVTool(st, "import-token", "Import HOTP tokens from \"serial, seed, counter, user\" lines",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config, r io.Reader) error {
			return o.ImportTokens(cmd.Context(), r, realm)
		})
	cmd.Flags().StringVar(&realm, "tokenrealm", "", "realm of the imported tokens and users")
	return cmd
}

func usersWithoutTokenCmd(st *state) *cobra.Command {
	var (
		realm    string
		inactive bool
	)
	cmd := newTool(st, "get-users-without-token", "List the users of a realm without a token",
		func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config) error {
			if realm == "" {
				realm = cfg.Server.Realm
			}
			return o.UsersWithoutToken(cmd.Context(), realm, !inactive)
		})
	cmd.Flags().StringVar(&realm, "realm", "", "realm (default: server.realm or the default realm)")
	cmd.Flags().BoolVar(&inactive, "include-inactive", false, "count inactive tokens as tokens")
	return cmd
}

func reassignTokensCmd(st *state) *cobra.Command {
	var opts tokenops.MoveOptions
	cmd := newTool(st, "reassign-tokens", "Move tokens to the same users in another resolver",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config) error {
			return o.MoveTokens(cmd.Context(), opts)
		})
	f := cmd.Flags()
	f.StringVar(&opts.FromRealm, "from-realm", "", "realm the tokens are in")
	f.StringVar(&opts.FromResolver, "from-resolver", "", "resolver of the current owners")
	f.StringVar(&opts.ToRealm, "to-realm", "", "realm of the new owners")
	f.StringVar(&opts.ToResolver, "to-resolver", "", "resolver of the new owners")
	f.BoolVar(&opts.DryRun, "dry-run", false, "only print what would be moved")
	return cmd
}

func migrateUsersCmd(st *state) *cobra.Command {
	var opts tokenops.MigrateUsersOptions
	cmd := newTool(st, "migrate-users", "Hand tokens to the same users in another resolver",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config) error {
			return o.MigrateUsers(cmd.Context(), opts)
		})
	f := cmd.Flags()
	f.StringVar(&opts.FromResolver, "from-resolver", "", "resolver of the current owners")
	f.StringVar(&opts.ToResolver, "to-resolver", "", "resolver of the new owners")
	f.StringVar(&opts.Realm, "realm", "", "realm of the new owners")
	return cmd
}

func joinResolversCmd(st *state) *cobra.Command {
	var opts tokenops.JoinOptions
	cmd := newTool(st, "join-resolvers", "Copy users into a resolver and move their tokens in the database",
		func(cmd *cobra.Command, o *tokenops.Ops, cfg *config.Config) error {
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return o.JoinResolvers(cmd.Context(), db, opts)
		})
	f := cmd.Flags()
	f.StringVar(&opts.SourceRealm, "source-realm", "", "realm whose users are copied")
	f.StringVar(&opts.TargetResolver, "target-resolver", "", "resolver the users are created in")
	f.StringVar(&opts.TargetRealm, "target-realm", "", "realm of the new owners")
	f.String("picfg", "", "pi.cfg of the platform (default: $PRIVACYIDEA_CONFIGFILE or /etc/privacyidea/pi.cfg)")
	return cmd
}

// openStore connects to the database named in the configured pi.cfg.
func openStore(cfg *config.Config) (*store.Store, error) {
	path := cfg.Database.PICfg
	if path == "" {
		path = picfg.Path()
	}
	pc, err := picfg.Load(path)
	if err != nil {
		return nil, err
	}
	db, err := pc.Database()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store.Open(db)
}

func decryptSafewordCmd(st *state) *cobra.Command {
	var file, aesKey, desKey string
	cmd := &cobra.Command{
		Use:   "decrypt-safeword",
		Short: "Convert a SafeWord LDIF export to import-token CSV",
		Args:  cobra.NoArgs,
		RunE: st.run(func(cmd *cobra.Command, _ []string) error {
			cfg, err := st.config(cmd)
			if err != nil {
				return err
			}
			keys, err := safewordKeys(aesKey, desKey)
			if err != nil {
				return err
			}
			r := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			tokens, err := safeword.Parse(r, safeword.Options{
				Keys:     keys,
				Encoding: cfg.Enroll.Encoding,
				Log:      st.log,
			})
			if err != nil {
				return err
			}
			return safeword.WriteCSV(cmd.OutOrStdout(), tokens)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&file, "file", "", "LDIF export (default stdin)")
	f.StringVar(&aesKey, "aes-key", "", "hex encoded AES key")
	f.StringVar(&desKey, "des-key", "", "hex encoded DES key")
	f.String("encoding", "", "character set of the export (default from enroll.encoding)")
	return cmd
}

func safewordKeys(aesKey, desKey string) (safeword.Keys, error) {
	var keys safeword.Keys
	var err error
	if aesKey != "" {
		if keys.AES, err = hex.DecodeString(aesKey); err != nil {
			return keys, fmt.Errorf("--aes-key: %w", err)
		}
	}
	if desKey != "" {
		if keys.DES, err = hex.DecodeString(desKey); err != nil {
			return keys, fmt.Errorf("--des-key: %w", err)
		}
	}
	return keys, nil
}

func benchmarkCmd(st *state) *cobra.Command {
	var (
		opts  tokenops.BenchmarkOptions
		table bool
	)
	cmd := newTool(st, "benchmark", "Time /validate/check requests",
		func(cmd *cobra.Command, o *tokenops.Ops, _ *config.Config) error {
			t, err := o.Benchmark(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if table {
				return t.WriteTable(cmd.OutOrStdout())
			}
			return nil
		})
	f := cmd.Flags()
	f.StringVar(&opts.User, "user", "", "user to authenticate")
	f.StringVar(&opts.Realm, "realm", "", "realm of the user")
	f.StringVar(&opts.Pass, "pass", "", "password or PIN+OTP")
	f.IntVar(&opts.Count, "count", 10, "number of requests")
	f.BoolVar(&table, "table", false, "also print a markdown table")
	return cmd
}
