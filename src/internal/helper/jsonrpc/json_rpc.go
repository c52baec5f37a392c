// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version privacyIDEA reports in every response.
const Version = "2.0"

// ErrMissingResult is returned when a payload decodes but has no result member.
var ErrMissingResult = errors.New("jsonrpc: response has no result")

// Response is the decoded envelope.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	Result  *Result        `json:"result"`
	Detail  map[string]any `json:"detail,omitempty"`
	Version string         `json:"version,omitempty"`
	ID      any            `json:"id,omitempty"`
}

// Result carries the outcome of the call.
type Result struct {
	Status bool            `json:"status"`
	Value  json.RawMessage `json:"value,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is the error member of a failed result.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// Decode parses an envelope.
//
// A missing "jsonrpc" member defaults to [Version] and whole number IDs are
// normalized to int64.
//
// Parameters:
//   - data: Raw response body
//
// Returns:
//   - *Response: Decoded envelope
//   - error: Error if the body is not JSON or lacks a result
func Decode(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("jsonrpc: decode response: %w", err)
	}
	if resp.Result == nil {
		return nil, ErrMissingResult
	}
	if resp.JSONRPC == "" {
		resp.JSONRPC = Version
	}
	resp.ID = normalizeIDValue(resp.ID)
	return &resp, nil
}

// Value unmarshals result.value into dest. A null or absent value leaves
// dest untouched.
func (r *Response) Value(dest any) error {
	if len(r.Result.Value) == 0 || string(r.Result.Value) == "null" {
		return nil
	}
	return json.Unmarshal(r.Result.Value, dest)
}

// DetailInto converts the detail member into dest.
func (r *Response) DetailInto(dest any) error {
	if r.Detail == nil {
		return nil
	}
	return UnmarshalFromMap(r.Detail, dest)
}

// normalizeIDValue converts whole number float64 values to int64.
func normalizeIDValue(v any) any {
	if f, ok := v.(float64); ok {
		if f == float64(int64(f)) {
			return int64(f)
		}
	}
	return v
}

// UnmarshalFromMap converts a map/any to a struct via JSON round-trip.
//
// Parameters:
//   - src: Source map or value to convert
//   - dest: Pointer to destination struct
//
// Returns:
//   - error: Error if marshaling or unmarshaling fails
func UnmarshalFromMap(src any, dest any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
