// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package privacyidea

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/helper/jsonrpc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultURL is where the platform listens on a standard installation.
	DefaultURL = "https://localhost"
	// DefaultTimeout bounds a single request including retries.
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrMissingURL is returned by New when no base URL is configured.
	ErrMissingURL = errors.New("privacyidea: missing server URL")
	// ErrNoAuthToken is returned when the /auth response has no token.
	ErrNoAuthToken = errors.New("privacyidea: authentication returned no token")
)

// APIError is a failed call. Code and Message come from result.error when
// the server sent one.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("privacyidea: %s (code %d, HTTP %d)", e.Message, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("privacyidea: %s (HTTP %d)", e.Message, e.HTTPStatus)
}

// Config configures a Client.
type Config struct {
	// URL is the base address, e.g. https://pi.example.com.
	URL string
	// VerifyTLS enables server certificate verification.
	VerifyTLS bool
	// Timeout applies per request. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retries is the number of extra attempts on connection errors and
	// 5xx responses. Zero disables retrying.
	Retries int
	// Token is a pre-issued admin JWT. Authenticate replaces it.
	Token string
}

// Client talks to the privacyIDEA REST API.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	base    *url.URL
	timeout time.Duration
	http    *retryablehttp.Client

	mu    sync.RWMutex
	token string
}

// New creates a client from cfg.
//
// Parameters:
//   - cfg: Connection settings
//
// Returns:
//   - *Client: Ready client, authenticated when cfg.Token is set
//   - error: Error if the URL is missing or invalid
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, ErrMissingURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("privacyidea: parse URL %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("privacyidea: unsupported URL scheme %q", base.Scheme)
	}

	httpClient := cleanhttp.DefaultPooledClient()
	if transport, ok := httpClient.Transport.(*http.Transport); ok {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS, // #nosec G402 -- operator choice, mirrors verify_ssl
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := max(cfg.Retries, 0)

	return &Client{
		base:    base,
		timeout: timeout,
		token:   cfg.Token,
		http: &retryablehttp.Client{
			HTTPClient:   httpClient,
			RetryWaitMin: 1000 * time.Millisecond,
			RetryWaitMax: 1500 * time.Millisecond,
			RetryMax:     retries,
			Backoff:      retryablehttp.LinearJitterBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
	}, nil
}

// Token returns the current authorization token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the authorization token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Authenticate obtains a JWT for an administrator and keeps it for later
// calls.
//
// Parameters:
//   - ctx: Request context
//   - username: Admin login, optionally with @realm
//   - password: Admin password
//
// Returns:
//   - error: *APIError on rejected credentials, or a transport error
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return err
	}
	var value struct {
		Token string `json:"token"`
	}
	if err := resp.Value(&value); err != nil {
		return fmt.Errorf("privacyidea: decode auth response: %w", err)
	}
	if value.Token == "" {
		return ErrNoAuthToken
	}
	c.SetToken(value.Token)
	return nil
}

// endpoint joins the base path with the given segments, escaping each one.
func (c *Client) endpoint(path string, segments ...string) string {
	u := *c.base
	var b strings.Builder
	b.WriteString(strings.TrimRight(u.Path, "/"))
	b.WriteString(path)
	for _, s := range segments {
		if !strings.HasSuffix(b.String(), "/") {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(s))
	}
	u.Path = ""
	u.RawPath = ""
	return u.String() + b.String()
}

// do sends one request. GET and DELETE carry params in the query string,
// everything else as a form-encoded body.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, segments ...string) (*jsonrpc.Response, error) {
	target := c.endpoint(path, segments...)

	var body any
	if method == http.MethodGet || method == http.MethodDelete {
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	} else {
		body = []byte(params.Encode())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("privacyidea: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("privacyidea: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	var envelope *jsonrpc.Response
	err = gc.ReadAll(res.Body, func(data []byte) error {
		var decodeErr error
		envelope, decodeErr = jsonrpc.Decode(data)
		return decodeErr
	})
	if err != nil {
		if res.StatusCode != http.StatusOK {
			return nil, &APIError{HTTPStatus: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		}
		return nil, fmt.Errorf("privacyidea: %s %s: %w", method, path, err)
	}

	if !envelope.Result.Status || res.StatusCode != http.StatusOK {
		apiErr := &APIError{HTTPStatus: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		if e := envelope.Result.Error; e != nil {
			apiErr.Code = e.Code
			apiErr.Message = e.Message
		}
		return nil, apiErr
	}
	return envelope, nil
}
