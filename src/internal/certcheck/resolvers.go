// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrExportFormat is returned when the exporter output has no resolver section.
	ErrExportFormat = errors.New("certcheck: exporter output has no resolver section")

	// ErrLDAPURI is returned for an LDAPURI entry that cannot be parsed.
	ErrLDAPURI = errors.New("certcheck: invalid LDAP URI")
)

// DefaultExporterCommand exports the resolver configuration as JSON.
var DefaultExporterCommand = []string{"pi-manage", "config", "exporter", "-t", "resolver", "-f", "json"}

// Resolver is the part of a resolver definition relevant to the check.
type Resolver struct {
	Name      string
	Type      string
	LDAPURI   string
	TLSVerify bool
	CAFile    string
}

// Exporter produces the JSON resolver export.
type Exporter interface {
	Export(ctx context.Context) ([]byte, error)
}

// CommandExporter runs an external command and returns its stdout.
type CommandExporter struct {
	Command []string
	Run     Runner
}

// Export implements [Exporter].
func (e *CommandExporter) Export(ctx context.Context) ([]byte, error) {
	cmd := e.Command
	if len(cmd) == 0 {
		cmd = DefaultExporterCommand
	}
	run := e.Run
	if run == nil {
		run = ExecRunner
	}
	return run(ctx, nil, cmd[0], cmd[1:]...)
}

// FileExporter reads a previously saved export from disk.
type FileExporter struct {
	Path string
}

// Export implements [Exporter].
func (e *FileExporter) Export(context.Context) ([]byte, error) {
	return os.ReadFile(e.Path)
}

type exportDocument struct {
	Resolver map[string]struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	} `json:"resolver"`
}

// ParseExport decodes the exporter JSON. Resolvers are returned sorted by
// name. Non-LDAP resolvers are included with an empty LDAPURI.
func ParseExport(data []byte) ([]Resolver, error) {
	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Resolver == nil {
		return nil, ErrExportFormat
	}

	resolvers := make([]Resolver, 0, len(doc.Resolver))
	for name, entry := range doc.Resolver {
		resolvers = append(resolvers, Resolver{
			Name:      name,
			Type:      entry.Type,
			LDAPURI:   stringValue(entry.Data["LDAPURI"]),
			TLSVerify: strings.EqualFold(stringValue(entry.Data["TLS_VERIFY"]), "true"),
			CAFile:    stringValue(entry.Data["TLS_CA_FILE"]),
		})
	}
	slices.SortFunc(resolvers, func(a, b Resolver) int { return strings.Compare(a.Name, b.Name) })
	return resolvers, nil
}

// stringValue renders JSON scalars the way they were written.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Endpoint is one LDAP server to connect to.
type Endpoint struct {
	Scheme   string
	Host     string
	Port     int
	StartTLS bool
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL returns the endpoint as an LDAP URL without path.
func (e Endpoint) URL() string {
	return e.Scheme + "://" + e.Address()
}

// URIError reports one LDAPURI entry that cannot be parsed.
type URIError struct {
	URI    string
	Reason string
}

func (e *URIError) Error() string {
	return fmt.Sprintf("%v: %q: %s", ErrLDAPURI, e.URI, e.Reason)
}

// Unwrap returns [ErrLDAPURI].
func (e *URIError) Unwrap() error { return ErrLDAPURI }

// ParseLDAPURIs splits an LDAPURI value into endpoints. privacyIDEA accepts
// several servers separated by commas or whitespace. The default port is 636
// for ldaps and 389 for ldap, and ldap endpoints are upgraded with STARTTLS.
//
// Entries that cannot be parsed are skipped. The endpoints of the valid
// entries are returned together with a *multierror.Error holding one
// [*URIError] per bad entry.
func ParseLDAPURIs(value string) ([]Endpoint, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, &URIError{URI: value, Reason: "no server"}
	}

	var result *multierror.Error
	endpoints := make([]Endpoint, 0, len(fields))
	for _, f := range fields {
		ep, err := parseLDAPURI(f)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, result.ErrorOrNil()
}

// URIErrors flattens the error of [ParseLDAPURIs] into its entries.
func URIErrors(err error) []*URIError {
	var errs []error
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	} else if err != nil {
		errs = []error{err}
	}

	out := make([]*URIError, 0, len(errs))
	for _, e := range errs {
		var ue *URIError
		if errors.As(e, &ue) {
			out = append(out, ue)
		}
	}
	return out
}

func parseLDAPURI(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, &URIError{URI: raw, Reason: err.Error()}
	}

	scheme := strings.ToLower(u.Scheme)
	var ep Endpoint
	switch scheme {
	case "ldaps":
		ep = Endpoint{Scheme: scheme, Port: 636}
	case "ldap":
		ep = Endpoint{Scheme: scheme, Port: 389, StartTLS: true}
	default:
		return Endpoint{}, &URIError{URI: raw, Reason: "unsupported scheme"}
	}

	ep.Host = u.Hostname()
	if ep.Host == "" {
		return Endpoint{}, &URIError{URI: raw, Reason: "missing host"}
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, &URIError{URI: raw, Reason: "bad port"}
		}
		ep.Port = port
	}
	return ep, nil
}
