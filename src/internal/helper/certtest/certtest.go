// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package certtest generates throwaway certificates for tests.
package certtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Pair is a certificate together with its private key.
type Pair struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// PEM returns the certificate in PEM form.
func (p *Pair) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: p.Cert.Raw})
}

// TLSCertificate returns the pair as a tls.Certificate, with the issuer
// appended when given.
func (p *Pair) TLSCertificate(issuer *Pair) tls.Certificate {
	chain := [][]byte{p.Cert.Raw}
	if issuer != nil {
		chain = append(chain, issuer.Cert.Raw)
	}
	return tls.Certificate{Certificate: chain, PrivateKey: p.Key, Leaf: p.Cert}
}

// WriteFile writes the certificate as PEM into dir/name and returns the path.
func (p *Pair) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, p.PEM(), 0o600))
	return path
}

// NewCA creates a self-signed CA that expires at notAfter.
func NewCA(t testing.TB, cn string, notAfter time.Time) *Pair {
	t.Helper()
	tmpl := &x509.Certificate{
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             notBefore(notAfter),
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	return issue(t, tmpl, nil)
}

// NewLeaf creates a server certificate for hosts signed by ca. A nil ca
// produces a self-signed certificate.
func NewLeaf(t testing.TB, ca *Pair, notAfter time.Time, hosts ...string) *Pair {
	t.Helper()
	cn := "localhost"
	if len(hosts) > 0 {
		cn = hosts[0]
	}
	tmpl := &x509.Certificate{
		Subject:     pkix.Name{CommonName: cn},
		NotBefore:   notBefore(notAfter),
		NotAfter:    notAfter,
		DNSNames:    hosts,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	return issue(t, tmpl, ca)
}

// Days returns a time n whole days from now plus a small margin, so that
// the floor of the remaining days equals n.
func Days(n int) time.Time {
	return time.Now().Add(time.Duration(n)*24*time.Hour + time.Hour)
}

func notBefore(notAfter time.Time) time.Time {
	nb := time.Now().Add(-time.Hour)
	if notAfter.Before(nb) {
		nb = notAfter.Add(-24 * time.Hour)
	}
	return nb
}

func issue(t testing.TB, tmpl *x509.Certificate, parent *Pair) *Pair {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	require.NoError(t, err)
	tmpl.SerialNumber = serial

	issuer, signer := tmpl, key
	if parent != nil {
		issuer, signer = parent.Cert, parent.Key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuer, &key.PublicKey, signer)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &Pair{Cert: cert, Key: key}
}
