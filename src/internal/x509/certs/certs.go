// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/cloudflare/cfssl/crypto/pkcs7"
)

var (
	// ErrInvalidPEMBlock indicates that the provided data does not contain a valid PEM block.
	ErrInvalidPEMBlock = errors.New("x509certs: invalid PEM block")

	// ErrNoCertificate indicates that PEM data was found but none of the blocks is a certificate.
	ErrNoCertificate = errors.New("x509certs: no certificate block found")

	// ErrParseCertificate indicates a failure to parse the certificate from the provided data.
	ErrParseCertificate = errors.New("x509certs: failed to parse certificate")

	// ErrParsePKCS7 indicates a failure to parse PKCS7 formatted data.
	ErrParsePKCS7 = errors.New("x509certs: failed to parse PKCS7 data")

	// ErrNoCertificatesInPKCS indicates that no certificates were found in the PKCS7 data.
	ErrNoCertificatesInPKCS = errors.New("x509certs: no certificates found in PKCS7 data")
)

const (
	certBlockType  = "CERTIFICATE"
	pkcs7BlockType = "PKCS7"
)

// Certificate decodes [X.509] certificates the way they show up on a
// privacyIDEA host: PEM files referenced from web server configs, CA files
// referenced from LDAP resolvers, DER blobs and PKCS7 bundles, and the text
// output of "openssl s_client".
//
// [X.509]: https://en.wikipedia.org/wiki/X.509
type Certificate struct {
	certBlockType string
}

// New creates a new Certificate with default settings.
func New() *Certificate {
	return &Certificate{
		certBlockType: certBlockType,
	}
}

// IsPEM checks if the data contains at least one PEM block.
func (c *Certificate) IsPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil
}

// firstCertBlock returns the first PEM block of certificate or PKCS7 type.
// Other blocks (private keys bundled in the same file, parameters printed
// by openssl) are skipped.
func (c *Certificate) firstCertBlock(data []byte) (*pem.Block, error) {
	found := false
	for len(data) > 0 {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		found = true
		if block.Type == c.certBlockType || block.Type == pkcs7BlockType {
			return block, nil
		}
		data = rest
	}
	if !found {
		return nil, ErrInvalidPEMBlock
	}
	return nil, ErrNoCertificate
}

// Decode decodes the first certificate from data.
//
// For a chain file (leaf followed by intermediates) this is the leaf, which is
// the certificate whose expiry matters for a web server.
func (c *Certificate) Decode(data []byte) (*x509.Certificate, error) {
	if c.IsPEM(data) {
		block, err := c.firstCertBlock(data)
		if err != nil {
			return nil, err
		}

		if block.Type == c.certBlockType {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, ErrParseCertificate
			}
			return cert, nil
		}
		data = block.Bytes
	}

	cert, err := x509.ParseCertificate(data)
	if err == nil {
		return cert, nil
	}

	// Attempt to parse as PKCS7 using Cloudflare's library
	p, err := pkcs7.ParsePKCS7(data)
	if err != nil {
		return nil, ErrParsePKCS7
	}
	if len(p.Content.SignedData.Certificates) == 0 {
		return nil, ErrNoCertificatesInPKCS
	}

	return p.Content.SignedData.Certificates[0], nil
}

// ReadFile reads the file at path and decodes its first certificate.
func (c *Certificate) ReadFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cert, err := c.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cert, nil
}

// EncodePEM encodes cert as a PEM CERTIFICATE block.
func (c *Certificate) EncodePEM(cert *x509.Certificate) []byte {
	block := pem.Block{
		Type:  c.certBlockType,
		Bytes: cert.Raw,
	}
	return pem.EncodeToMemory(&block)
}
