// Package payfast implements PayFast's request signing contract and a client
// for building recurring payment requests and verifying ITN callbacks.
package payfast

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Sign computes the PayFast signature over an ordered field set.
//
// Fields are signed in their declared order. A field named "signature" and
// any field whose value is the empty string are excluded. Each remaining
// value is trimmed, percent-encoded with encoded spaces as '+', and
// concatenated as key=value pairs joined by '&'; a whitespace-only value is
// therefore kept and contributes a bare "key=" pair. A non-empty passphrase
// is appended as a final passphrase parameter before hashing. The digest is
// MD5 in lowercase hex, as required by PayFast's legacy signing contract.
func Sign(fields Fields, passphrase string) string {
	return hashString(signingString(fields, passphrase))
}

// Verify recomputes the signature over all fields except the supplied
// "signature" field and compares it to the supplied value byte for byte.
// A missing signature field fails verification.
func Verify(fields Fields, passphrase string) bool {
	received, ok := fields.Get("signature")
	if !ok || received == "" {
		return false
	}
	return Sign(fields, passphrase) == received
}

func signingString(fields Fields, passphrase string) string {
	var b strings.Builder
	for _, field := range fields {
		// The emptiness check runs on the raw value, before trimming:
		// a whitespace-only field stays in the string as "key=".
		if field.Key == "signature" || field.Value == "" {
			continue
		}
		value := strings.TrimSpace(field.Value)
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(field.Key)
		b.WriteByte('=')
		b.WriteString(encode(value))
	}

	if passphrase = strings.TrimSpace(passphrase); passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(encode(passphrase))
	}
	return b.String()
}

func hashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
