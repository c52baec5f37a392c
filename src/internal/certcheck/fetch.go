// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcheck

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"

	x509certs "github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/x509/certs"
)

var (
	// ErrNoPeerCertificate is returned when the TLS session was established
	// but the server presented no certificate.
	ErrNoPeerCertificate = errors.New("certcheck: connection successful, but no certificate found")

	// ErrUnknownFetcher is returned by [NewFetcher] for an unsupported name.
	ErrUnknownFetcher = errors.New("certcheck: unknown fetcher")
)

// DefaultTimeout bounds a single connection attempt.
const DefaultTimeout = 10 * time.Second

// Fetcher retrieves the leaf certificate an LDAP server presents.
type Fetcher interface {
	Fetch(ctx context.Context, ep Endpoint) (*x509.Certificate, error)
}

// NewFetcher returns the fetcher registered under name: "native" or
// "openssl".
func NewFetcher(name string, timeout time.Duration) (Fetcher, error) {
	switch name {
	case "", "native":
		return &NativeFetcher{Timeout: timeout}, nil
	case "openssl":
		return &OpenSSLFetcher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFetcher, name)
	}
}

// NativeFetcher speaks LDAP directly. ldaps endpoints are dialed with TLS,
// ldap endpoints are upgraded with the StartTLS extended operation. The
// server certificate is not verified; it is inspected only.
type NativeFetcher struct {
	Timeout time.Duration
}

// Fetch implements [Fetcher].
func (f *NativeFetcher) Fetch(ctx context.Context, ep Endpoint) (*x509.Certificate, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := &net.Dialer{Timeout: timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	tlsConfig := &tls.Config{
		// We just want the certificate, not to verify it
		InsecureSkipVerify: true,
		ServerName:         ep.Host,
	}

	conn, err := ldap.DialURL(ep.URL(), ldap.DialWithDialer(dialer), ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", ep.Address(), err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetTimeout(timeout)

	if ep.StartTLS {
		if err := conn.StartTLS(tlsConfig); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("starttls with %s: %w", ep.Address(), err)
		}
	}

	state, ok := conn.TLSConnectionState()
	if !ok || len(state.PeerCertificates) == 0 {
		return nil, ErrNoPeerCertificate
	}
	return state.PeerCertificates[0], nil
}

// OpenSSLFetcher shells out to "openssl s_client" and parses the first
// certificate from its output.
type OpenSSLFetcher struct {
	// Binary defaults to "openssl".
	Binary string
	Run    Runner
}

var connectedMarker = []byte("CONNECTED(")

// Fetch implements [Fetcher].
func (f *OpenSSLFetcher) Fetch(ctx context.Context, ep Endpoint) (*x509.Certificate, error) {
	bin := f.Binary
	if bin == "" {
		bin = "openssl"
	}
	run := f.Run
	if run == nil {
		run = ExecRunner
	}

	args := []string{"s_client", "-connect", net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))}
	if ep.StartTLS {
		args = append(args, "-starttls", "ldap")
	}
	if ep.Host != "" && net.ParseIP(ep.Host) == nil {
		args = append(args, "-servername", ep.Host)
	}

	out, runErr := run(ctx, nil, bin, args...)

	decoder := x509certs.New()
	if decoder.IsPEM(out) {
		cert, err := decoder.Decode(out)
		if err == nil {
			return cert, nil
		}
		return nil, fmt.Errorf("parse certificate from %s: %w", ep.Address(), err)
	}

	if bytes.Contains(out, connectedMarker) {
		return nil, ErrNoPeerCertificate
	}
	if runErr != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", ep.Address(), runErr)
	}
	return nil, fmt.Errorf("failed to establish connection to %s", ep.Address())
}
