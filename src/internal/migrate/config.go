// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package migrate

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
)

//go:embed schema.json
var schema []byte

// ErrInvalidConfig is returned when a config file fails schema validation.
var ErrInvalidConfig = errors.New("migrate: invalid config")

// Format is a config file encoding.
type Format int

const (
	// FormatJSON is the default (.json and anything unknown).
	FormatJSON Format = iota
	// FormatYAML is selected by .yaml and .yml.
	FormatYAML
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Endpoint is a platform instance reachable over REST.
type Endpoint struct {
	URL       string `json:"url" yaml:"url"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	Token     string `json:"token,omitempty" yaml:"token,omitempty"`
	VerifyTLS bool   `json:"verify_tls" yaml:"verify_tls"`
	Timeout   int    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ClientConfig converts the endpoint into a REST client config.
func (e Endpoint) ClientConfig() privacyidea.Config {
	return privacyidea.Config{
		URL:       e.URL,
		VerifyTLS: e.VerifyTLS,
		Timeout:   time.Duration(e.Timeout) * time.Second,
		Token:     e.Token,
	}
}

// UserRule selects and renames the users to migrate.
type UserRule struct {
	Find       map[string]string `json:"find" yaml:"find"`
	Pattern    string            `json:"pattern" yaml:"pattern"`
	Replace    string            `json:"replace" yaml:"replace"`
	Attributes []string          `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Rule returns the rename rule.
func (u UserRule) Rule() Rule { return Rule{Pattern: u.Pattern, Replace: u.Replace} }

// Config is a migration config file.
type Config struct {
	SQL struct {
		From string `json:"PRIVACYIDEA_FROM" yaml:"PRIVACYIDEA_FROM"`
		To   string `json:"PRIVACYIDEA_TO" yaml:"PRIVACYIDEA_TO"`
	} `json:"SQL" yaml:"SQL"`

	API struct {
		From Endpoint `json:"FROM" yaml:"FROM"`
		To   Endpoint `json:"TO" yaml:"TO"`
	} `json:"API" yaml:"API"`

	Migrate struct {
		User   UserRule `json:"user" yaml:"user"`
		Serial *Rule    `json:"serial,omitempty" yaml:"serial,omitempty"`
	} `json:"MIGRATE" yaml:"MIGRATE"`

	Assignments struct {
		ToRealm    string `json:"to_realm" yaml:"to_realm"`
		ToResolver string `json:"to_resolver" yaml:"to_resolver"`
	} `json:"ASSIGNMENTS" yaml:"ASSIGNMENTS"`
}

// SchemaError lists every schema violation of a config file.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidConfig, strings.Join(e.Problems, "; "))
}

func (e *SchemaError) Unwrap() error { return ErrInvalidConfig }

// LoadConfig reads and validates the config at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("migrate: read config: %w", err)
	}
	return ParseConfig(data, DetectFormat(path))
}

// ParseConfig validates data against the embedded schema and decodes it.
func ParseConfig(data []byte, format Format) (*Config, error) {
	var doc any
	if err := unmarshal(data, &doc, format); err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("migrate: validate config: %w", err)
	}
	if !result.Valid() {
		serr := &SchemaError{}
		for _, e := range result.Errors() {
			serr.Problems = append(serr.Problems, e.String())
		}
		return nil, serr
	}

	cfg := new(Config)
	if err := unmarshal(data, cfg, format); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(data []byte, v any, format Format) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("migrate: parse YAML config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("migrate: parse JSON config: %w", err)
		}
	}
	return nil
}

// ExampleConfig returns the config printed by --generate-example-config.
func ExampleConfig() *Config {
	cfg := new(Config)
	cfg.SQL.From = "/etc/privacyidea/pi.cfg"
	cfg.SQL.To = "/etc/newprivacyidea/pi.cfg"
	cfg.API.From = Endpoint{URL: "https://pi-old.example.com", Username: "admin", VerifyTLS: true}
	cfg.API.To = Endpoint{URL: "https://pi-new.example.com", Username: "admin", VerifyTLS: true}
	cfg.Migrate.User = UserRule{
		Find:       map[string]string{"username": "*@example.com", "realm": "RealmA"},
		Pattern:    "^(.*?)@example.com$",
		Replace:    `\1`,
		Attributes: []string{"email", "givenname", "surname"},
	}
	cfg.Migrate.Serial = &Rule{Pattern: "^(.*)$", Replace: `\g<1>_new`}
	cfg.Assignments.ToRealm = "realmC"
	cfg.Assignments.ToResolver = "resolverC"
	return cfg
}

// WriteExample writes the example config in the given format.
func WriteExample(w io.Writer, format Format) error {
	cfg := ExampleConfig()
	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(cfg)
}
