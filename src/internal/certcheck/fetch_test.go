// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcheck_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os/exec"
	"strconv"
	"testing"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/certcheck"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/helper/certtest"
)

// applicationExtendedResponse is the LDAP protocol tag of an ExtendedResponse.
const applicationExtendedResponse = 24

// startTLSServer accepts LDAP connections, answers the first request (the
// StartTLS extended operation) with success and then performs a TLS
// handshake with cert.
func startTLSServer(t *testing.T, cert tls.Certificate) certcheck.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	cfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveStartTLS(conn, cfg)
		}
	}()

	return endpointFor(t, ln.Addr(), "ldap", true)
}

func serveStartTLS(conn net.Conn, cfg *tls.Config) {
	defer conn.Close()

	req, err := ber.ReadPacket(conn)
	if err != nil || len(req.Children) == 0 {
		return
	}
	msgID, _ := req.Children[0].Value.(int64)

	resp := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Response")
	resp.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, msgID, "MessageID"))
	ext := ber.Encode(ber.ClassApplication, ber.TypeConstructed, applicationExtendedResponse, nil, "Extended Response")
	ext.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, 0, "resultCode"))
	ext.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "matchedDN"))
	ext.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "diagnosticMessage"))
	resp.AppendChild(ext)
	if _, err := conn.Write(resp.Bytes()); err != nil {
		return
	}

	tlsConn := tls.Server(conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, tlsConn)
}

// ldapsServer accepts TLS connections and keeps them open until the client
// goes away.
func ldapsServer(t *testing.T, cert tls.Certificate) certcheck.Endpoint {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if err := c.(*tls.Conn).Handshake(); err != nil {
					return
				}
				_, _ = io.Copy(io.Discard, c)
			}(conn)
		}
	}()

	return endpointFor(t, ln.Addr(), "ldaps", false)
}

func endpointFor(t *testing.T, addr net.Addr, scheme string, startTLS bool) certcheck.Endpoint {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return certcheck.Endpoint{Scheme: scheme, Host: host, Port: port, StartTLS: startTLS}
}

func TestNativeFetcher(t *testing.T) {
	ca := certtest.NewCA(t, "Directory CA", certtest.Days(400))
	leaf := certtest.NewLeaf(t, ca, certtest.Days(45), "localhost")

	tests := []struct {
		name     string
		endpoint func(t *testing.T) certcheck.Endpoint
	}{
		{
			name:     "LDAPS",
			endpoint: func(t *testing.T) certcheck.Endpoint { return ldapsServer(t, leaf.TLSCertificate(ca)) },
		},
		{
			name:     "StartTLS",
			endpoint: func(t *testing.T) certcheck.Endpoint { return startTLSServer(t, leaf.TLSCertificate(ca)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			fetcher := &certcheck.NativeFetcher{Timeout: 5 * time.Second}
			cert, err := fetcher.Fetch(ctx, tt.endpoint(t))
			require.NoError(t, err)
			assert.True(t, cert.Equal(leaf.Cert), "expected the leaf certificate")
		})
	}
}

func TestNativeFetcher_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep := endpointFor(t, ln.Addr(), "ldaps", false)
	require.NoError(t, ln.Close())

	fetcher := &certcheck.NativeFetcher{Timeout: 2 * time.Second}
	_, err = fetcher.Fetch(context.Background(), ep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to "+ep.Address())
}

func TestOpenSSLFetcher(t *testing.T) {
	leaf := certtest.NewLeaf(t, nil, certtest.Days(10), "dc1.example.com")
	ep := certcheck.Endpoint{Scheme: "ldap", Host: "dc1.example.com", Port: 389, StartTLS: true}

	tests := []struct {
		name     string
		output   string
		runErr   error
		testFunc func(t *testing.T, args []string, err error)
	}{
		{
			name:   "Certificate In Output",
			output: "CONNECTED(00000003)\n---\nServer certificate\n" + string(leaf.PEM()) + "---\n",
			testFunc: func(t *testing.T, args []string, err error) {
				require.NoError(t, err)
				assert.Equal(t, []string{"s_client", "-connect", "dc1.example.com:389", "-starttls", "ldap", "-servername", "dc1.example.com"}, args)
			},
		},
		{
			name:   "Connected Without Certificate",
			output: "CONNECTED(00000003)\nno peer certificate available\n",
			runErr: errors.New("exit status 1"),
			testFunc: func(t *testing.T, _ []string, err error) {
				assert.ErrorIs(t, err, certcheck.ErrNoPeerCertificate)
			},
		},
		{
			name:   "Connection Failed",
			runErr: errors.New("exit status 1"),
			testFunc: func(t *testing.T, _ []string, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to connect to dc1.example.com:389")
			},
		},
		{
			name:   "Empty Output Without Error",
			output: "",
			testFunc: func(t *testing.T, _ []string, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to establish connection")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotArgs []string
			fetcher := &certcheck.OpenSSLFetcher{
				Run: func(_ context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
					assert.Equal(t, "openssl", name)
					gotArgs = args
					return []byte(tt.output), tt.runErr
				},
			}
			cert, err := fetcher.Fetch(context.Background(), ep)
			if err == nil {
				assert.True(t, cert.Equal(leaf.Cert))
			}
			tt.testFunc(t, gotArgs, err)
		})
	}
}

func TestNewFetcher(t *testing.T) {
	f, err := certcheck.NewFetcher("", time.Second)
	require.NoError(t, err)
	assert.IsType(t, &certcheck.NativeFetcher{}, f)

	f, err = certcheck.NewFetcher("openssl", time.Second)
	require.NoError(t, err)
	assert.IsType(t, &certcheck.OpenSSLFetcher{}, f)

	_, err = certcheck.NewFetcher("gnutls", time.Second)
	assert.ErrorIs(t, err, certcheck.ErrUnknownFetcher)
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	out, err := certcheck.ExecRunner(context.Background(), nil, "sh", "-c", "echo resolver")
	require.NoError(t, err)
	assert.Equal(t, "resolver\n", string(out))

	out, err = certcheck.ExecRunner(context.Background(), nil, "sh", "-c", "echo partial; echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "partial\n", string(out))
	assert.Contains(t, err.Error(), "boom")
}
