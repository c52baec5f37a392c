// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcheck

import (
	"crypto/x509"
	"time"
)

// DefaultDays is the default warning threshold.
const DefaultDays = 30

const day = 24 * time.Hour

// DaysLeft returns the number of whole days between now and notAfter,
// rounded toward negative infinity. A certificate that expired two hours ago
// has -1 days left.
func DaysLeft(notAfter, now time.Time) int {
	d := notAfter.Sub(now)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

// VerifySignature reports whether cert carries a valid signature made by
// the key of issuer. Chain building, validity periods and key usage are not
// considered.
func VerifySignature(cert, issuer *x509.Certificate) error {
	return issuer.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature)
}
