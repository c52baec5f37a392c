// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package sms

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is assumed for numbers written without a country code.
const DefaultRegion = "DE"

// NormalizePhone returns raw in E.164 form ("+491711234567"). Numbers that
// cannot be parsed are returned trimmed but otherwise unchanged, so that
// the platform still gets what the operator wrote.
func NormalizePhone(raw, region string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if region == "" {
		region = DefaultRegion
	}
	num, err := phonenumbers.Parse(s, strings.ToUpper(region))
	if err != nil {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
