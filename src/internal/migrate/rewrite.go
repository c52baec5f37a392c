// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package migrate

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is a pattern and a replacement in Python re.sub syntax, as found
// in migration config files.
type Rule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Replace string `json:"replace" yaml:"replace"`
}

// Rewriter applies a compiled [Rule].
type Rewriter struct {
	match    *regexp.Regexp
	sub      *regexp.Regexp
	template string
}

// Compile prepares the rule. An empty pattern yields an identity rewriter
// that matches everything.
func (r Rule) Compile() (*Rewriter, error) {
	if r.Pattern == "" {
		return &Rewriter{}, nil
	}
	sub, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, fmt.Errorf("migrate: pattern %q: %w", r.Pattern, err)
	}
	match, err := regexp.Compile("^(?:" + r.Pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("migrate: pattern %q: %w", r.Pattern, err)
	}
	return &Rewriter{match: match, sub: sub, template: PythonTemplate(r.Replace)}, nil
}

// Match reports whether s matches at its start, like Python's re.match.
func (rw *Rewriter) Match(s string) bool {
	if rw == nil || rw.match == nil {
		return true
	}
	return rw.match.MatchString(s)
}

// Apply replaces every match in s, like Python's re.sub.
func (rw *Rewriter) Apply(s string) string {
	if rw == nil || rw.sub == nil {
		return s
	}
	return rw.sub.ReplaceAllString(s, rw.template)
}

// PythonTemplate converts a Python re.sub replacement into a
// [regexp.Regexp.Expand] template. \N and \g<name> become group
// references, \n \t \r \\ are unescaped, other escapes are kept
// literally and $ is escaped.
func PythonTemplate(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '$' {
			b.WriteString("$$")
			continue
		}
		if c != '\\' || i+1 == len(repl) {
			b.WriteByte(c)
			continue
		}

		next := repl[i+1]
		switch {
		case isDigit(next):
			j := i + 2
			if j < len(repl) && isDigit(repl[j]) {
				j++
			}
			fmt.Fprintf(&b, "${%s}", repl[i+1:j])
			i = j - 1
		case next == 'g' && i+2 < len(repl) && repl[i+2] == '<':
			end := strings.IndexByte(repl[i+3:], '>')
			if end < 0 {
				b.WriteString(repl[i:])
				return b.String()
			}
			fmt.Fprintf(&b, "${%s}", repl[i+3:i+3+end])
			i += 3 + end
		case next == 'n':
			b.WriteByte('\n')
			i++
		case next == 't':
			b.WriteByte('\t')
			i++
		case next == 'r':
			b.WriteByte('\r')
			i++
		case next == '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte('\\')
		}
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
