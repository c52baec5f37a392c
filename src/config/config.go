// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
)

const (
	// EnvPrefix prefixes every environment override, e.g. PITOOLS_SERVER_URL.
	EnvPrefix = "PITOOLS"
	// FileName is the config file name without extension.
	FileName = "pi-tools"
	// SystemDir is searched before the user config dir and the working dir.
	SystemDir = "/etc/privacyidea"
)

// Server is the platform instance the tools talk to.
type Server struct {
	URL       string        `mapstructure:"url" yaml:"url"`
	Username  string        `mapstructure:"username" yaml:"username"`
	Password  string        `mapstructure:"password" yaml:"password"`
	Token     string        `mapstructure:"token" yaml:"token"`
	Realm     string        `mapstructure:"realm" yaml:"realm"`
	VerifyTLS bool          `mapstructure:"verify_tls" yaml:"verify_tls"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries   int           `mapstructure:"retries" yaml:"retries"`
}

// ClientConfig converts the section into a REST client config.
func (s Server) ClientConfig() privacyidea.Config {
	return privacyidea.Config{
		URL:       s.URL,
		VerifyTLS: s.VerifyTLS,
		Timeout:   s.Timeout,
		Retries:   s.Retries,
		Token:     s.Token,
	}
}

// Log selects the leveled log sink.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File appends log lines to a file instead of stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// Certificates configures check-certificates.
type Certificates struct {
	Days         int           `mapstructure:"days" yaml:"days"`
	ConfigDir    string        `mapstructure:"config_dir" yaml:"config_dir"`
	Exclude      []string      `mapstructure:"exclude" yaml:"exclude"`
	Fetcher      string        `mapstructure:"fetcher" yaml:"fetcher"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Exporter     []string      `mapstructure:"exporter" yaml:"exporter"`
	ResolverFile string        `mapstructure:"resolver_file" yaml:"resolver_file"`
}

// DeleteOrDisable configures the delete-or-disable-token hook.
type DeleteOrDisable struct {
	Types  []string `mapstructure:"types" yaml:"types"`
	Action string   `mapstructure:"action" yaml:"action"`
	// Active is "true", "false" or empty for any state.
	Active       string `mapstructure:"active" yaml:"active"`
	RolloutState string `mapstructure:"rollout_state" yaml:"rollout_state"`
	LogFile      string `mapstructure:"log_file" yaml:"log_file"`
}

// ActiveFilter converts Active into a token list filter.
func (d DeleteOrDisable) ActiveFilter() *bool {
	switch strings.ToLower(strings.TrimSpace(d.Active)) {
	case "true", "1", "yes":
		return privacyidea.Bool(true)
	case "false", "0", "no":
		return privacyidea.Bool(false)
	default:
		return nil
	}
}

// RemoveOther configures remove-other-tokens.
type RemoveOther struct {
	// Per is "user" for all other tokens or "type" for the other tokens of
	// the enrolled token's type.
	Per        string `mapstructure:"per" yaml:"per"`
	OnlyActive bool   `mapstructure:"only_active" yaml:"only_active"`
	// TokenInfo entries with an empty value are ignored.
	TokenInfo map[string]string `mapstructure:"tokeninfo" yaml:"tokeninfo"`
}

// RemoveUser configures remove-user-tokens.
type RemoveUser struct {
	// Type is a token type or "all".
	Type       string            `mapstructure:"type" yaml:"type"`
	OnlyActive bool              `mapstructure:"only_active" yaml:"only_active"`
	TokenInfo  map[string]string `mapstructure:"tokeninfo" yaml:"tokeninfo"`
}

// RemoteSpass configures create-remote-and-spass.
type RemoteSpass struct {
	ExcludeUsers []string `mapstructure:"exclude_users" yaml:"exclude_users"`
	LocalToken   string   `mapstructure:"local_token" yaml:"local_token"`
	RemoteToken  string   `mapstructure:"remote_token" yaml:"remote_token"`
	RemoteRealm  string   `mapstructure:"remote_realm" yaml:"remote_realm"`
	RemoteServer string   `mapstructure:"remote_server" yaml:"remote_server"`
}

// RemoteTokens configures create-remote-tokens.
type RemoteTokens struct {
	Usernames     []string `mapstructure:"usernames" yaml:"usernames"`
	Realm         string   `mapstructure:"realm" yaml:"realm"`
	ServerID      string   `mapstructure:"server_id" yaml:"server_id"`
	LocalCheckPIN bool     `mapstructure:"local_checkpin" yaml:"local_checkpin"`
}

// Primary configures create-primary-token.
type Primary struct {
	AdminUser string                       `mapstructure:"admin_user" yaml:"admin_user"`
	Types     []string                     `mapstructure:"types" yaml:"types"`
	Params    map[string]map[string]string `mapstructure:"params" yaml:"params"`
}

// Hooks holds the settings of the event handler scripts.
type Hooks struct {
	SSHHost         string          `mapstructure:"ssh_host" yaml:"ssh_host"`
	ReassignRealm   string          `mapstructure:"reassign_realm" yaml:"reassign_realm"`
	PIN             string          `mapstructure:"pin" yaml:"pin"`
	TANTypes        []string        `mapstructure:"tan_types" yaml:"tan_types"`
	DeleteTOTPLimit int             `mapstructure:"delete_totp_limit" yaml:"delete_totp_limit"`
	DeleteOrDisable DeleteOrDisable `mapstructure:"delete_or_disable" yaml:"delete_or_disable"`
	RemoveOther     RemoveOther     `mapstructure:"remove_other" yaml:"remove_other"`
	RemoveUser      RemoveUser      `mapstructure:"remove_user" yaml:"remove_user"`
	RemoteSpass     RemoteSpass     `mapstructure:"remote_spass" yaml:"remote_spass"`
	RemoteTokens    RemoteTokens    `mapstructure:"remote_tokens" yaml:"remote_tokens"`
	Primary         Primary         `mapstructure:"primary" yaml:"primary"`
}

// Enroll holds defaults of the enrollment tools.
type Enroll struct {
	DefaultTypes   []string                     `mapstructure:"default_types" yaml:"default_types"`
	Params         map[string]map[string]string `mapstructure:"params" yaml:"params"`
	Region         string                       `mapstructure:"region" yaml:"region"`
	PasswordLength int                          `mapstructure:"password_length" yaml:"password_length"`
	Encoding       string                       `mapstructure:"encoding" yaml:"encoding"`
}

// Database points at the platform's pi.cfg for the tools that work on
// the database directly.
type Database struct {
	PICfg string `mapstructure:"picfg" yaml:"picfg"`
}

// Config is the complete pi-tools configuration.
type Config struct {
	Server       Server       `mapstructure:"server" yaml:"server"`
	Log          Log          `mapstructure:"log" yaml:"log"`
	Certificates Certificates `mapstructure:"certificates" yaml:"certificates"`
	Hooks        Hooks        `mapstructure:"hooks" yaml:"hooks"`
	Enroll       Enroll       `mapstructure:"enroll" yaml:"enroll"`
	Database     Database     `mapstructure:"database" yaml:"database"`
	SMS          struct {
		Config string `mapstructure:"config" yaml:"config"`
	} `mapstructure:"sms" yaml:"sms"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

// defaults mirror the constants the scripts were configured with.
var defaults = map[string]any{
	"server.url":        privacyidea.DefaultURL,
	"server.username":   "admin",
	"server.password":   "",
	"server.token":      "",
	"server.realm":      "",
	"server.verify_tls": true,
	"server.timeout":    privacyidea.DefaultTimeout,
	"server.retries":    0,

	"log.level": "info",
	"log.file":  "",

	"certificates.days":          30,
	"certificates.config_dir":    "",
	"certificates.exclude":       []string{},
	"certificates.fetcher":       "native",
	"certificates.timeout":       10 * time.Second,
	"certificates.exporter":      []string{"pi-manage", "config", "exporter", "-t", "resolver", "-f", "json"},
	"certificates.resolver_file": "",

	"hooks.ssh_host":                        "",
	"hooks.reassign_realm":                  "",
	"hooks.pin":                             "",
	"hooks.tan_types":                       []string{"tan"},
	"hooks.delete_totp_limit":               15,
	"hooks.delete_or_disable.types":         []string{"sms"},
	"hooks.delete_or_disable.action":        "disable",
	"hooks.delete_or_disable.active":        "true",
	"hooks.delete_or_disable.rollout_state": "",
	"hooks.delete_or_disable.log_file":      "/var/log/privacyidea/disabled-tokens.log",
	"hooks.remove_other.per":                "user",
	"hooks.remove_other.only_active":        true,
	"hooks.remove_other.tokeninfo":          map[string]any{"tokenkind": "software"},
	"hooks.remove_user.type":                "totp",
	"hooks.remove_user.only_active":         true,
	"hooks.remove_user.tokeninfo":           map[string]any{"tokenkind": "software"},
	"hooks.remote_spass.exclude_users":      []string{},
	"hooks.remote_spass.local_token":        "registration",
	"hooks.remote_spass.remote_token":       "spass",
	"hooks.remote_spass.remote_realm":       "",
	"hooks.remote_spass.remote_server":      "",
	"hooks.remote_tokens.usernames":         []string{},
	"hooks.remote_tokens.realm":             "",
	"hooks.remote_tokens.server_id":         "",
	"hooks.remote_tokens.local_checkpin":    false,
	"hooks.primary.admin_user":              "tokenadmin",
	"hooks.primary.types":                   []string{"email"},
	"hooks.primary.params":                  map[string]map[string]string{},

	"enroll.default_types":   []string{"registration"},
	"enroll.params":          map[string]map[string]string{},
	"enroll.region":          "DE",
	"enroll.password_length": 10,
	"enroll.encoding":        "utf-8",

	"database.picfg": "",
	"sms.config":     "/etc/privacyidea/boomalert.cfg",
}

// flagKeys maps config keys to the command line flags that override them.
// Flags not defined on a command are skipped.
var flagKeys = map[string]string{
	"server.url":                 "url",
	"server.username":            "admin",
	"server.token":               "token",
	"server.realm":               "default-realm",
	"server.retries":             "retries",
	"log.level":                  "log-level",
	"log.file":                   "logging",
	"certificates.days":          "days",
	"certificates.config_dir":    "config-dir",
	"certificates.exclude":       "exclude",
	"certificates.fetcher":       "fetcher",
	"certificates.timeout":       "timeout",
	"certificates.resolver_file": "resolver-file",
	"database.picfg":             "picfg",
	"sms.config":                 "sms-config",
	"enroll.encoding":            "encoding",
	"enroll.region":              "region",
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load builds the configuration: defaults, then the config file (path, or
// pi-tools.yaml in /etc/privacyidea, the user config dir or the working
// dir), then PITOOLS_* environment variables, then flags.
//
// A missing config file is not an error unless path names it explicitly.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	v := newViper()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(SystemDir)
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "privacyidea"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", describe(path), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return cfg, nil
}

func describe(path string) string {
	if path == "" {
		return FileName + ".yaml"
	}
	return path
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := new(Config)
	// Decoding the static defaults cannot fail.
	_ = newViper().Unmarshal(cfg)
	return cfg
}

// WriteExample writes the default configuration as YAML.
func WriteExample(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# %s.yaml: search order %s, user config dir, working dir.\n", FileName, SystemDir); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# Every key can be overridden with %s_<SECTION>_<KEY>.\n", EnvPrefix); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return fmt.Errorf("config: encode example: %w", err)
	}
	return enc.Close()
}
