// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcheck

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Kind classifies a checked certificate.
type Kind string

const (
	KindWeb  Kind = "web"
	KindLDAP Kind = "ldap"
	KindCA   Kind = "ca"
)

// Signature verification outcomes.
const (
	SignatureValid   = "valid"
	SignatureInvalid = "invalid"
)

// Result is the outcome for one certificate source.
type Result struct {
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Resolver    string    `json:"resolver,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	NotAfter    time.Time `json:"not_after,omitzero"`
	DaysLeft    int       `json:"days_left"`
	Warning     bool      `json:"warning"`
	Signature   string    `json:"signature,omitempty"`
	Error       string    `json:"error,omitempty"`
	// PEM holds the certificate of a warning so it can be inspected
	// without access to the host.
	PEM string `json:"pem,omitempty"`
}

// Report collects the results of a run.
type Report struct {
	Threshold int       `json:"threshold"`
	CheckedAt time.Time `json:"checked_at"`
	Results   []Result  `json:"results"`
}

// add appends res and returns its index.
func (r *Report) add(res Result) int {
	r.Results = append(r.Results, res)
	return len(r.Results) - 1
}

// Warnings counts results that are at or below the threshold.
func (r *Report) Warnings() int {
	n := 0
	for _, res := range r.Results {
		if res.Warning {
			n++
		}
	}
	return n
}

// Errors counts results that could not be checked.
func (r *Report) Errors() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteTable writes the report as a markdown table.
func (r *Report) WriteTable(w io.Writer) error {
	if len(r.Results) == 0 {
		_, err := io.WriteString(w, "No certificates checked\n")
		return err
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"Kind", "Certificate", "Source", "Valid Until", "Days Left", "Status"})

	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		validUntil, days := "-", "-"
		if !res.NotAfter.IsZero() {
			validUntil = res.NotAfter.UTC().Format("2006-01-02")
			days = strconv.Itoa(res.DaysLeft)
		}
		rows = append(rows, []string{
			string(res.Kind),
			res.Description,
			res.Source,
			validUntil,
			days,
			res.status(),
		})
	}

	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func (res Result) status() string {
	switch {
	case res.Error != "":
		return "error: " + res.Error
	case res.Signature == SignatureInvalid:
		return "bad signature"
	case res.DaysLeft < 0:
		return "expired"
	case res.Warning:
		return "renew"
	default:
		return "ok"
	}
}
