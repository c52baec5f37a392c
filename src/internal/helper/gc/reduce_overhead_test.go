// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package gc

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorReader struct{ err error }

func (e *errorReader) Read(p []byte) (int, error) { return 0, e.err }

type plainBuffer struct{ bytes.Buffer }

func TestBufferWriteMethods(t *testing.T) {
	buf := Default.Get()
	defer Default.Put(buf)

	_, err := buf.WriteString("serial")
	require.NoError(t, err)
	require.NoError(t, buf.WriteByte(','))
	_, err = buf.Write([]byte("user"))
	require.NoError(t, err)

	assert.Equal(t, "serial,user", buf.String())
	assert.Equal(t, 11, buf.Len())
	assert.Equal(t, []byte("serial,user"), buf.Bytes())

	buf.Reset()
	assert.Zero(t, buf.Len())
}

func TestPoolPutResets(t *testing.T) {
	buf := Default.Get()
	_, _ = buf.WriteString("secret pin")
	Default.Put(buf)

	again := Default.Get()
	defer Default.Put(again)
	assert.Zero(t, again.Len(), "buffers must come back empty")
}

func TestPoolPutForeignBuffer(t *testing.T) {
	assert.NotPanics(t, func() { Default.Put(&plainBuffer{}) })
}

func TestReadAll(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "Reads Whole Body",
			testFunc: func(t *testing.T) {
				var got string
				err := ReadAll(strings.NewReader(`{"result":{"status":true}}`), func(data []byte) error {
					got = string(data)
					return nil
				})
				require.NoError(t, err)
				assert.Equal(t, `{"result":{"status":true}}`, got)
			},
		},
		{
			name: "Reader Error",
			testFunc: func(t *testing.T) {
				readErr := errors.New("connection reset")
				called := false
				err := ReadAll(&errorReader{err: readErr}, func([]byte) error {
					called = true
					return nil
				})
				assert.ErrorIs(t, err, readErr)
				assert.False(t, called)
			},
		},
		{
			name: "Callback Error",
			testFunc: func(t *testing.T) {
				cbErr := errors.New("bad json")
				err := ReadAll(strings.NewReader("x"), func([]byte) error { return cbErr })
				assert.ErrorIs(t, err, cbErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFunc)
	}
}

func TestPoolConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			buf := Default.Get()
			defer Default.Put(buf)
			payload := strings.Repeat("a", n+1)
			_, _ = buf.WriteString(payload)
			assert.Equal(t, payload, buf.String())
		}(i)
	}
	wg.Wait()
}
