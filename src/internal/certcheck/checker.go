// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcheck

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	x509certs "github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/logger"
)

// Options configures a [Checker].
type Options struct {
	// Days is the warning threshold. A certificate with this many days left
	// or fewer is reported with a warning.
	Days int

	// ConfigDir replaces the well-known web server directories.
	ConfigDir string

	// ConfigDirs overrides the directory list entirely. ConfigDir wins
	// when both are set.
	ConfigDirs []ConfigDir

	// Web and LDAP select the certificate classes. Neither set means both.
	Web  bool
	LDAP bool

	// Exclude lists resolver names to skip.
	Exclude []string

	// Exporter defaults to running [DefaultExporterCommand].
	Exporter Exporter

	// Fetcher defaults to a [NativeFetcher].
	Fetcher Fetcher

	Log logger.Leveled

	// Now defaults to time.Now.
	Now func() time.Time
}

// Checker runs certificate expiry checks.
type Checker struct {
	opts    Options
	log     logger.Leveled
	decoder *x509certs.Certificate
	now     func() time.Time
}

// New creates a Checker, filling unset options with defaults.
func New(opts Options) *Checker {
	if opts.Exporter == nil {
		opts.Exporter = &CommandExporter{}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = &NativeFetcher{Timeout: DefaultTimeout}
	}
	switch {
	case opts.ConfigDir != "":
		opts.ConfigDirs = []ConfigDir{CustomConfigDir(opts.ConfigDir)}
	case len(opts.ConfigDirs) == 0:
		opts.ConfigDirs = DefaultConfigDirs()
	}

	log := opts.Log
	if log == nil {
		log = logger.NewLeveled("check-certificates", nil, "info")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Checker{
		opts:    opts,
		log:     log,
		decoder: x509certs.New(),
		now:     now,
	}
}

// Run performs the selected checks and returns what was found. Failures of
// individual items are logged and recorded in the report, never returned.
func (c *Checker) Run(ctx context.Context) *Report {
	report := &Report{
		Threshold: c.opts.Days,
		CheckedAt: c.now(),
	}

	checkWeb := c.opts.Web || !c.opts.LDAP
	checkLDAP := c.opts.LDAP || !c.opts.Web

	if checkWeb {
		c.CheckWeb(ctx, report)
	}
	if checkLDAP && ctx.Err() == nil {
		c.CheckLDAP(ctx, report)
	}
	return report
}

// WebCertificatePaths returns the deduplicated certificate paths referenced
// by the configured web server directories, in discovery order.
func (c *Checker) WebCertificatePaths() []string {
	var paths []string
	seen := make(map[string]struct{})

	for _, dir := range c.opts.ConfigDirs {
		files, err := FindConfigFiles(dir.Path)
		if err != nil {
			c.log.Errorf("Error reading %s: %v", dir.Path, err)
			continue
		}
		if len(files) == 0 {
			c.log.Debugf("No %s configuration files in %s", dir.Name, dir.Path)
		}

		for _, file := range files {
			content, err := os.ReadFile(file)
			if err != nil {
				c.log.Errorf("Error reading %s: %v", file, err)
				continue
			}
			for _, p := range ExtractCertificatePaths(content, dir.Syntax) {
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// CheckWeb checks the certificates referenced by web server configs.
func (c *Checker) CheckWeb(ctx context.Context, report *Report) {
	for _, path := range c.WebCertificatePaths() {
		if ctx.Err() != nil {
			return
		}

		res := Result{Kind: KindWeb, Description: "Web server", Source: path}
		cert, err := c.decoder.ReadFile(path)
		if err != nil {
			c.log.Errorf("Failed to load certificates from %s: %v", path, err)
			res.Error = err.Error()
			report.add(res)
			continue
		}
		report.add(c.evaluate(cert, res))
	}
}

// CheckLDAP checks the LDAP servers of all exported resolvers and, where
// requested, their CA certificates.
func (c *Checker) CheckLDAP(ctx context.Context, report *Report) {
	data, err := c.opts.Exporter.Export(ctx)
	if err != nil {
		c.log.Errorf("Failed to execute command: %v", err)
		return
	}

	resolvers, err := ParseExport(data)
	if err != nil {
		if errors.Is(err, ErrExportFormat) {
			c.log.Errorf("Unexpected exporter output: %v", err)
		} else {
			c.log.Errorf("Failed to parse JSON from output: %v", err)
		}
		return
	}

	for _, r := range resolvers {
		if ctx.Err() != nil {
			return
		}
		if slices.Contains(c.opts.Exclude, r.Name) {
			c.log.Infof("Skipping excluded resolver: %s", r.Name)
			continue
		}
		if r.LDAPURI == "" {
			continue
		}
		c.checkResolver(ctx, r, report)
	}
}

func (c *Checker) checkResolver(ctx context.Context, r Resolver, report *Report) {
	endpoints, err := ParseLDAPURIs(r.LDAPURI)
	for _, ue := range URIErrors(err) {
		c.log.Errorf("Resolver %q: %v", r.Name, ue)
		report.add(Result{
			Kind:        KindLDAP,
			Description: fmt.Sprintf("LDAP server from resolver %q", r.Name),
			Source:      ue.URI,
			Resolver:    r.Name,
			Error:       ue.Error(),
		})
	}

	type served struct {
		cert *x509.Certificate
		idx  int
	}
	var certs []served

	for _, ep := range endpoints {
		desc := fmt.Sprintf("LDAP server from resolver %q", r.Name)
		if len(endpoints) > 1 {
			desc = fmt.Sprintf("LDAP server %s from resolver %q", ep.Address(), r.Name)
		}
		res := Result{Kind: KindLDAP, Description: desc, Source: ep.Address(), Resolver: r.Name}

		cert, err := c.opts.Fetcher.Fetch(ctx, ep)
		if err != nil {
			if errors.Is(err, ErrNoPeerCertificate) {
				c.log.Warnf("Connection to %s successful, but no certificate found.", ep.Address())
			} else {
				c.log.Errorf("Failed to retrieve certificate from %s: %v", ep.Address(), err)
			}
			c.log.Warnf("No certificate found for LDAP server from resolver %q at %s", r.Name, ep.Address())
			res.Error = err.Error()
			report.add(res)
			continue
		}

		certs = append(certs, served{cert: cert, idx: report.add(c.evaluate(cert, res))})
	}

	if !r.TLSVerify || r.CAFile == "" {
		return
	}

	caRes := Result{Kind: KindCA, Description: fmt.Sprintf("CA issuer from resolver %q", r.Name), Source: r.CAFile, Resolver: r.Name}
	ca, err := c.decoder.ReadFile(r.CAFile)
	if err != nil {
		c.log.Errorf("Failed to load certificates from %s: %v", r.CAFile, err)
		caRes.Error = err.Error()
		report.add(caRes)
		return
	}
	report.add(c.evaluate(ca, caRes))

	for _, s := range certs {
		desc := "LDAP server " + r.Name
		if err := VerifySignature(s.cert, ca); err != nil {
			c.log.Errorf("Verification failed: The %s certificate is not properly signed by its issuer: %v", desc, err)
			report.Results[s.idx].Signature = SignatureInvalid
			continue
		}
		c.log.Infof("The %s certificate is validly signed by its issuer.", desc)
		report.Results[s.idx].Signature = SignatureValid
	}
}

// evaluate computes the remaining days of cert and logs them.
func (c *Checker) evaluate(cert *x509.Certificate, res Result) Result {
	days := DaysLeft(cert.NotAfter, c.now())

	res.Subject = cert.Subject.String()
	res.NotAfter = cert.NotAfter
	res.DaysLeft = days

	c.log.Infof("%s certificate is valid for %d more days.", res.Description, days)
	if days <= c.opts.Days {
		res.Warning = true
		res.PEM = string(c.decoder.EncodePEM(cert))
		c.log.Warnf("The %s certificate will expire in %d days or less. Please renew it timely.", res.Description, days)
	}
	return res
}
