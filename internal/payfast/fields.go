package payfast

import (
	"fmt"
	"net/url"
	"strings"
)

// Field is a single key/value pair in a PayFast parameter set.
type Field struct {
	Key   string
	Value string
}

// Fields is an ordered list of parameters. PayFast signs parameters in the
// order they appear in the request, not alphabetically, so insertion order
// is significant and must be preserved end to end.
type Fields []Field

// Add appends a field, keeping insertion order.
func (f *Fields) Add(key, value string) {
	*f = append(*f, Field{Key: key, Value: value})
}

// Get returns the value of the first field with the given key,
// and whether it was present.
func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// Values converts the field list into a plain map for JSON responses.
func (f Fields) Values() map[string]string {
	m := make(map[string]string, len(f))
	for _, field := range f {
		m[field.Key] = field.Value
	}
	return m
}

// Encode renders the fields as an application/x-www-form-urlencoded string
// in their original order, using PayFast's encoding rules.
func (f Fields) Encode() string {
	var b strings.Builder
	for i, field := range f {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(field.Key)
		b.WriteByte('=')
		b.WriteString(encode(field.Value))
	}
	return b.String()
}

// ParseForm parses a raw URL-encoded body into Fields, preserving the order
// the parameters arrived in. url.ParseQuery cannot be used here because it
// returns a map and loses the wire order the ITN signature depends on.
func ParseForm(body []byte) (Fields, error) {
	var fields Fields
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		key, rawValue, _ := strings.Cut(pair, "=")

		key, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("malformed form key %q: %w", key, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("malformed form value for %q: %w", key, err)
		}
		fields.Add(key, value)
	}
	return fields, nil
}

// encode percent-encodes a value the way PayFast expects: the JavaScript
// encodeURIComponent unreserved set (letters, digits, and -_.!~*'()) with
// uppercase hex digits, then encoded spaces rendered as literal '+'.
// url.QueryEscape escapes !*'()~ and so produces different digests.
func encode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case isUnreserved(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

func isUnreserved(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
