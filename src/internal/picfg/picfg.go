// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package picfg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
)

const (
	// DefaultPath is the pi.cfg of a standard installation.
	DefaultPath = "/etc/privacyidea/pi.cfg"
	// EnvConfigFile overrides DefaultPath, as it does for the platform.
	EnvConfigFile = "PRIVACYIDEA_CONFIGFILE"
	// DatabaseURIKey holds the SQLAlchemy database URI.
	DatabaseURIKey = "SQLALCHEMY_DATABASE_URI"
)

// Driver names as registered with database/sql.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

var (
	// ErrNoDatabaseURI is returned when pi.cfg has no SQLALCHEMY_DATABASE_URI.
	ErrNoDatabaseURI = errors.New("picfg: SQLALCHEMY_DATABASE_URI not set")
	// ErrUnsupportedDatabase is returned for a URI scheme without a Go driver.
	ErrUnsupportedDatabase = errors.New("picfg: unsupported database")
)

// Path returns the pi.cfg location, honoring PRIVACYIDEA_CONFIGFILE.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p
	}
	return DefaultPath
}

// Config holds the simple assignments of a pi.cfg file. Values are the
// literal strings; expressions other than quoted strings, numbers and
// booleans are kept verbatim.
type Config struct {
	Values map[string]string
}

// Get returns the value of key.
func (c *Config) Get(key string) string { return c.Values[key] }

// Database returns the parsed database URI.
func (c *Config) Database() (Database, error) {
	uri := c.Values[DatabaseURIKey]
	if uri == "" {
		return Database{}, ErrNoDatabaseURI
	}
	return ParseDatabaseURI(uri)
}

// Load reads the pi.cfg at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("picfg: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads KEY = value lines. Comments, blank lines and continuation
// lines of multi-line expressions are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{Values: map[string]string{}}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !isIdent(key) {
			continue
		}
		cfg.Values[key] = unquote(stripComment(strings.TrimSpace(value)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("picfg: %w", err)
	}
	return cfg, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// stripComment removes a trailing "# ..." outside of quotes.
func stripComment(s string) string {
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote == 0 && r == '#':
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Database is a database/sql driver name and DSN.
type Database struct {
	Driver string
	DSN    string
}

// ParseDatabaseURI converts an SQLAlchemy URI into a Go driver and DSN.
//
// Supported schemes are mysql (any +dbapi suffix), postgresql/postgres
// (any +dbapi suffix) and sqlite.
func ParseDatabaseURI(uri string) (Database, error) {
	uri = strings.TrimSpace(uri)
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Database{}, fmt.Errorf("%w: %q", ErrUnsupportedDatabase, uri)
	}
	dialect, _, _ := strings.Cut(strings.ToLower(scheme), "+")

	switch dialect {
	case "sqlite":
		path := strings.TrimPrefix(rest, "/")
		if path == "" {
			path = ":memory:"
		}
		return Database{Driver: DriverSQLite, DSN: path}, nil
	case "mysql", "mariadb":
		return mysqlDSN(uri)
	case "postgresql", "postgres":
		return postgresDSN(uri)
	default:
		return Database{}, fmt.Errorf("%w: %s", ErrUnsupportedDatabase, scheme)
	}
}

func mysqlDSN(uri string) (Database, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Database{}, fmt.Errorf("picfg: parse database URI: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.Net = "tcp"
	host, port := u.Hostname(), u.Port()
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "3306"
	}
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if socket := u.Query().Get("unix_socket"); socket != "" {
		cfg.Net, cfg.Addr = "unix", socket
	}
	if charset := u.Query().Get("charset"); charset != "" {
		cfg.Params = map[string]string{"charset": charset}
	}
	return Database{Driver: DriverMySQL, DSN: cfg.FormatDSN()}, nil
}

func postgresDSN(uri string) (Database, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Database{}, fmt.Errorf("picfg: parse database URI: %w", err)
	}
	u.Scheme = "postgres"
	dsn := u.String()
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return Database{}, fmt.Errorf("picfg: postgres URI: %w", err)
	}
	return Database{Driver: DriverPostgres, DSN: dsn}, nil
}
