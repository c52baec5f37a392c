// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package csvin

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultCutset is stripped from both ends of every field.
const DefaultCutset = " \t"

// ErrUnknownEncoding is returned for an encoding name x/text does not know.
var ErrUnknownEncoding = errors.New("csvin: unknown encoding")

// MalformedError reports a line with the wrong number of columns. Reading
// can continue after it.
type MalformedError struct {
	Line int
	Got  int
	Want int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("Malformed line %d. Probably wrong number of columns.", e.Line)
}

// Record is one input line split into fields.
type Record struct {
	Line   int
	Fields []string
}

// Field returns the i-th field or "" when the record is shorter.
func (r Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Option configures a Reader.
type Option func(*Reader)

// WithFields sets the exact number of columns a line must have. Zero
// accepts any count.
func WithFields(n int) Option { return func(r *Reader) { r.fields = n } }

// WithMinFields sets the minimum number of columns a line must have.
func WithMinFields(n int) Option { return func(r *Reader) { r.minFields = n } }

// WithComma sets the field delimiter.
func WithComma(c rune) Option { return func(r *Reader) { r.comma = c } }

// WithCutset replaces the characters trimmed from each field.
func WithCutset(cutset string) Option { return func(r *Reader) { r.cutset = cutset } }

// WithEncoding decodes the input from the named character set (any name
// known to the WHATWG encoding index, e.g. "latin1", "windows-1252").
func WithEncoding(name string) Option { return func(r *Reader) { r.encoding = name } }

// Reader reads delimited records, one per line.
type Reader struct {
	src       io.Reader
	csv       *csv.Reader
	fields    int
	minFields int
	comma     rune
	cutset    string
	encoding  string
	err       error
}

// NewReader creates a reader over r. Blank lines and lines starting with
// '#' are skipped.
func NewReader(r io.Reader, opts ...Option) *Reader {
	rd := &Reader{src: r, comma: ',', cutset: DefaultCutset}
	for _, opt := range opts {
		opt(rd)
	}

	src, err := Decode(r, rd.encoding)
	if err != nil {
		rd.err = err
		return rd
	}
	c := csv.NewReader(src)
	c.Comma = rd.comma
	c.Comment = '#'
	c.FieldsPerRecord = -1
	c.LazyQuotes = true
	c.ReuseRecord = false
	rd.csv = c
	return rd
}

// Decode wraps r so that it yields UTF-8 from the named character set. An
// empty name means UTF-8 with an optional byte order mark.
func Decode(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func lookup(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return unicode.UTF8BOM, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// Read returns the next record. It returns io.EOF at the end of input and
// *MalformedError for a line with the wrong column count; the caller may
// keep reading after a *MalformedError.
func (r *Reader) Read() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	fields, err := r.csv.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return Record{Line: perr.StartLine}, fmt.Errorf("csvin: %w", err)
		}
		return Record{}, err
	}
	line, _ := r.csv.FieldPos(0)
	for i, f := range fields {
		fields[i] = strings.Trim(f, r.cutset)
	}
	rec := Record{Line: line, Fields: fields}
	if (r.fields > 0 && len(fields) != r.fields) || len(fields) < r.minFields {
		want := r.fields
		if want == 0 {
			want = r.minFields
		}
		return rec, &MalformedError{Line: line, Got: len(fields), Want: want}
	}
	return rec, nil
}

// Each calls fn for every well-formed record. Malformed lines go to
// onMalformed (which may be nil) and reading continues. It stops at the
// first error returned by fn or by the underlying reader.
func (r *Reader) Each(fn func(Record) error, onMalformed func(*MalformedError)) error {
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var merr *MalformedError
		if errors.As(err, &merr) {
			if onMalformed != nil {
				onMalformed(merr)
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
