// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package jsonrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		testFunc func(t *testing.T, resp *Response, err error)
	}{
		{
			name:  "Success With Detail",
			input: `{"jsonrpc":"2.0","id":1,"version":"privacyIDEA 3.9","result":{"status":true,"value":true},"detail":{"serial":"TOTP0001","registrationcode":"abc"}}`,
			testFunc: func(t *testing.T, resp *Response, err error) {
				require.NoError(t, err)
				assert.True(t, resp.Result.Status)
				assert.Equal(t, int64(1), resp.ID)
				assert.Equal(t, "privacyIDEA 3.9", resp.Version)

				var detail struct {
					Serial           string `json:"serial"`
					RegistrationCode string `json:"registrationcode"`
				}
				require.NoError(t, resp.DetailInto(&detail))
				assert.Equal(t, "TOTP0001", detail.Serial)
				assert.Equal(t, "abc", detail.RegistrationCode)
			},
		},
		{
			name:  "Failure",
			input: `{"jsonrpc":"2.0","result":{"status":false,"error":{"code":4031,"message":"Authentication failure"}}}`,
			testFunc: func(t *testing.T, resp *Response, err error) {
				require.NoError(t, err)
				assert.False(t, resp.Result.Status)
				require.NotNil(t, resp.Result.Error)
				assert.Equal(t, 4031, resp.Result.Error.Code)
				assert.Equal(t, "code 4031: Authentication failure", resp.Result.Error.Error())
			},
		},
		{
			name:  "Default Version",
			input: `{"result":{"status":true,"value":3},"id":"abc"}`,
			testFunc: func(t *testing.T, resp *Response, err error) {
				require.NoError(t, err)
				assert.Equal(t, Version, resp.JSONRPC)
				assert.Equal(t, "abc", resp.ID)

				var n int
				require.NoError(t, resp.Value(&n))
				assert.Equal(t, 3, n)
			},
		},
		{
			name:  "Null Value",
			input: `{"result":{"status":true,"value":null}}`,
			testFunc: func(t *testing.T, resp *Response, err error) {
				require.NoError(t, err)
				dest := map[string]any{"kept": true}
				require.NoError(t, resp.Value(&dest))
				assert.Equal(t, true, dest["kept"])
				assert.NoError(t, resp.DetailInto(&dest))
			},
		},
		{
			name:  "Missing Result",
			input: `{"jsonrpc":"2.0"}`,
			testFunc: func(t *testing.T, resp *Response, err error) {
				assert.ErrorIs(t, err, ErrMissingResult)
			},
		},
		{
			name:  "Not JSON",
			input: `<html>502 Bad Gateway</html>`,
			testFunc: func(t *testing.T, resp *Response, err error) {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "jsonrpc: decode response")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Decode([]byte(tt.input))
			tt.testFunc(t, resp, err)
		})
	}
}

func TestNormalizeIDValue(t *testing.T) {
	assert.Equal(t, int64(42), normalizeIDValue(float64(42)))
	assert.Equal(t, 1.5, normalizeIDValue(1.5))
	assert.Nil(t, normalizeIDValue(nil))
}

func TestUnmarshalFromMap(t *testing.T) {
	var dest struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, UnmarshalFromMap(map[string]any{"name": "ldap1", "count": 2}, &dest))
	assert.Equal(t, "ldap1", dest.Name)
	assert.Equal(t, 2, dest.Count)

	assert.Error(t, UnmarshalFromMap(map[string]any{"bad": func() {}}, &dest))
}
