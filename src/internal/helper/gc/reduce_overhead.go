// Copyright (c) 2024 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package gc

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// Buffer defines the interface for a reusable byte buffer.
// It abstracts the [bytebufferpool.ByteBuffer] type to avoid direct dependencies.
type Buffer interface {
	Write(p []byte) (int, error)
	WriteString(s string) (int, error)
	WriteByte(c byte) error
	Bytes() []byte
	String() string
	Len() int
	Reset()
	ReadFrom(r io.Reader) (int64, error)
}

// Pool defines the interface for buffer pooling.
//
// Pool implementations must be safe for concurrent use by multiple goroutines.
type Pool interface {
	Get() Buffer
	Put(b Buffer)
}

// pool wraps [bytebufferpool.Pool] to implement Pool interface.
type pool struct{ p *bytebufferpool.Pool }

// Get returns a buffer from the pool.
func (p *pool) Get() Buffer { return p.p.Get() }

// Put resets b and returns it to the pool. Buffers not obtained from a
// bytebufferpool are dropped.
func (p *pool) Put(b Buffer) {
	if buf, ok := b.(*bytebufferpool.ByteBuffer); ok {
		buf.Reset()
		p.p.Put(buf)
	}
}

// Default is the buffer pool shared by the HTTP client and the CSV and LDIF
// readers.
//
// Example:
//
//	buf := gc.Default.Get()
//	defer gc.Default.Put(buf)
//
//	if _, err := buf.ReadFrom(resp.Body); err != nil {
//		return fmt.Errorf("read response body: %w", err)
//	}
//	return json.Unmarshal(buf.Bytes(), &out)
var Default Pool = &pool{p: &bytebufferpool.Pool{}}

// ReadAll reads r to EOF into a pooled buffer and hands the bytes to fn.
// The slice passed to fn is only valid until fn returns.
func ReadAll(r io.Reader, fn func(data []byte) error) error {
	buf := Default.Get()
	defer Default.Put(buf)

	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	return fn(buf.Bytes())
}
