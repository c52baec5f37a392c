// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/viper"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/helper/gc"
)

const (
	// BoomAlertURL is the Boom Alert direct API endpoint.
	BoomAlertURL = "https://direct-api.apps.boomcomms.com/v1/sms1"
	// DefaultConfigPath is read when no config file is given.
	DefaultConfigPath = "/etc/privacyidea/boomalert.cfg"
	// Sender is the "from" of every message.
	Sender = "privacyIDEA"
	// UniquePrefix precedes the time based UUID of each message.
	UniquePrefix = "privacyidea_"
)

// ConfigTemplate is printed by "boomalert -g".
const ConfigTemplate = `USERNAME = Your Username
PASSWORD = Your Password
LICENSE_KEY = Your Licensekey
campaign_name =
custom_parameter =
`

// ErrNoRecipients is returned by Send without phone numbers.
var ErrNoRecipients = errors.New("sms: you need to specify a phone number")

// StatusError is a response other than 200 OK from the gateway.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sms: gateway returned HTTP %d", e.StatusCode)
}

// BoomConfig holds the account settings of boomalert.cfg.
type BoomConfig struct {
	Username   string
	Password   string
	LicenseKey string
	// CampaignName and CustomParameter are sent only when the key is
	// present in the file, even with an empty value.
	CampaignName    *string
	CustomParameter *string
}

// LoadBoomConfig reads a key = value file.
func LoadBoomConfig(path string) (*BoomConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sms: open config: %w", err)
	}
	defer f.Close()
	return ParseBoomConfig(f)
}

// ParseBoomConfig parses the key = value format of boomalert.cfg. Keys are
// case-insensitive.
func ParseBoomConfig(r io.Reader) (*BoomConfig, error) {
	v := viper.New()
	v.SetConfigType("properties")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("sms: parse config: %w", err)
	}
	get := func(key string) string { return strings.TrimSpace(v.GetString(key)) }
	cfg := &BoomConfig{
		Username:   get("username"),
		Password:   get("password"),
		LicenseKey: get("license_key"),
	}
	if v.IsSet("campaign_name") {
		s := get("campaign_name")
		cfg.CampaignName = &s
	}
	if v.IsSet("custom_parameter") {
		s := get("custom_parameter")
		cfg.CustomParameter = &s
	}
	return cfg, nil
}

type recipient struct {
	Number string `json:"number"`
}

type boomMessage struct {
	From             string      `json:"from"`
	MessageContent   string      `json:"message_content"`
	RecipientAddress []recipient `json:"recipient_address"`
	Priority         bool        `json:"priority"`
	UniqueIdentifier string      `json:"unique_identifier"`
	CampaignName     *string     `json:"campaign_name,omitempty"`
	CustomParameter  *string     `json:"custom_parameter,omitempty"`
}

// BoomAlert sends messages through the Boom Alert gateway.
type BoomAlert struct {
	cfg   BoomConfig
	url   string
	http  *retryablehttp.Client
	newID func() (uuid.UUID, error)
}

// Option configures a BoomAlert.
type Option func(*BoomAlert)

// WithURL replaces the gateway endpoint.
func WithURL(u string) Option { return func(b *BoomAlert) { b.url = u } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(b *BoomAlert) { b.http.HTTPClient = c } }

// WithIDSource replaces the UUID generator.
func WithIDSource(fn func() (uuid.UUID, error)) Option { return func(b *BoomAlert) { b.newID = fn } }

// NewBoomAlert creates a gateway client. A message is sent once; the
// script handler records failures through the exit code.
func NewBoomAlert(cfg BoomConfig, opts ...Option) *BoomAlert {
	b := &BoomAlert{
		cfg: cfg,
		url: BoomAlertURL,
		http: &retryablehttp.Client{
			HTTPClient:   cleanhttp.DefaultPooledClient(),
			RetryWaitMin: 1000 * time.Millisecond,
			RetryWaitMax: 1500 * time.Millisecond,
			RetryMax:     0,
			Backoff:      retryablehttp.LinearJitterBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
		newID: uuid.NewUUID,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Send posts message to every phone in one request.
//
// Parameters:
//   - ctx: Request context
//   - message: Text as read from stdin, sent unchanged
//   - phones: Recipient numbers
//
// Returns:
//   - string: Unique identifier of the message
//   - error: *StatusError for a non-200 answer, or a transport error
func (b *BoomAlert) Send(ctx context.Context, message string, phones []string) (string, error) {
	if len(phones) == 0 {
		return "", ErrNoRecipients
	}
	id, err := b.newID()
	if err != nil {
		return "", fmt.Errorf("sms: generate identifier: %w", err)
	}
	msg := boomMessage{
		From:             Sender,
		MessageContent:   message,
		Priority:         false,
		UniqueIdentifier: UniquePrefix + id.String(),
		CampaignName:     b.cfg.CampaignName,
		CustomParameter:  b.cfg.CustomParameter,
	}
	for _, p := range phones {
		msg.RecipientAddress = append(msg.RecipientAddress, recipient{Number: p})
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("sms: encode message: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, b.url, body)
	if err != nil {
		return "", fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("X-License-Key", b.cfg.LicenseKey)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(b.cfg.Username, b.cfg.Password)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var text string
		_ = gc.ReadAll(resp.Body, func(data []byte) error {
			text = string(bytes.TrimSpace(data))
			return nil
		})
		return "", &StatusError{StatusCode: resp.StatusCode, Body: text}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return msg.UniqueIdentifier, nil
}

// ExitCode maps a Send error to the process exit code: the HTTP status for
// a gateway rejection (truncated to 255 by the OS), 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 1
}
