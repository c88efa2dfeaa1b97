// Package token splits the whitespace-separated init-parameter string
// (spec.md §6.3) into a bounded list of tokens, grounded on the
// reference Token_SplitString/Token_MatchingStringPrefix pair. It is
// used once, at monitor construction, never on the hot path.
package token

import (
	"errors"
	"strings"
)

// MaxTokens mirrors the reference implementation's TOKEN_MAX_TOKENS.
const MaxTokens = 10

// ErrTooManyTokens is returned when the input splits into more than
// MaxTokens pieces.
var ErrTooManyTokens = errors.New("token: too many tokens")

// Token holds the result of splitting a string on a separator set.
type Token struct {
	separators string
	parts      []string
}

// New creates a Token using the reference default separators (space and
// tab).
func New() *Token {
	return NewWith(" \t")
}

// NewWith creates a Token using a caller-supplied separator set.
func NewWith(separators string) *Token {
	return &Token{separators: separators}
}

// SplitString tokenizes s, replacing any previous contents. It fails if
// splitting would exceed MaxTokens.
func (t *Token) SplitString(s string) error {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(t.separators, r)
	})
	if len(fields) > MaxTokens {
		t.parts = nil
		return ErrTooManyTokens
	}
	t.parts = fields
	return nil
}

// Count returns the number of tokens produced by the last SplitString.
func (t *Token) Count() int {
	return len(t.parts)
}

// Get returns the token at index i, or ("", false) if out of range.
func (t *Token) Get(i int) (string, bool) {
	if i < 0 || i >= len(t.parts) {
		return "", false
	}
	return t.parts[i], true
}

// MatchingString returns the token equal to s, if any.
func (t *Token) MatchingString(s string) (string, bool) {
	for _, p := range t.parts {
		if p == s {
			return p, true
		}
	}
	return "", false
}

// MatchingStringPrefix returns the first token with the given prefix,
// used for KEY=VALUE style options like MRI_UART_BAUD=230400.
func (t *Token) MatchingStringPrefix(prefix string) (string, bool) {
	for _, p := range t.parts {
		if strings.HasPrefix(p, prefix) {
			return p, true
		}
	}
	return "", false
}

// All returns every token, in order.
func (t *Token) All() []string {
	return append([]string(nil), t.parts...)
}

// ParseFlags splits s and returns a map of flag name to value: a bare
// token like "MRI_UART_SHARE" maps to "", and "KEY=VALUE" maps KEY to
// VALUE, matching §6.3's grammar.
func ParseFlags(s string) (map[string]string, error) {
	tk := New()
	if err := tk.SplitString(s); err != nil {
		return nil, err
	}
	out := make(map[string]string, tk.Count())
	for _, part := range tk.All() {
		if key, value, ok := strings.Cut(part, "="); ok {
			out[key] = value
		} else {
			out[part] = ""
		}
	}
	return out, nil
}
