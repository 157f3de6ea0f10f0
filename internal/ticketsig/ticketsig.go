// Package ticketsig signs ticket codes and verifies the QR payloads printed
// on tickets.  A payload has the exact form
//
//	TICKET:<code>:<signature>
//
// where code is 24 upper-case hex characters and signature is the first 24
// lower-case hex characters of HMAC-SHA256(secret, code).
package ticketsig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	payloadPrefix = "TICKET"
	// CodeLen and SigLen are the fixed widths of the two payload segments.
	CodeLen = 24
	SigLen  = 24
)

// ErrMissingSecret is returned when no signing key is configured.
var ErrMissingSecret = errors.New("ticketsig: signing secret is empty")

// Signer holds the HMAC key. It is safe for concurrent use.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer for secret. An empty secret is a startup
// configuration error.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{key: []byte(secret)}, nil
}

// Sign returns the truncated hex HMAC of code.
func (s *Signer) Sign(code string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))[:SigLen]
}

// BuildPayload returns the QR payload for code.
func (s *Signer) BuildPayload(code string) string {
	return payloadPrefix + ":" + code + ":" + s.Sign(code)
}

// Verify returns the embedded code when payload is well formed and carries
// a valid signature. Callers only learn whether it was valid.
func (s *Signer) Verify(payload string) (string, bool) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] != payloadPrefix {
		return "", false
	}
	code, sig := parts[1], parts[2]
	if !isHex(code, CodeLen, true) || !isHex(sig, SigLen, false) {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(s.Sign(code))) {
		return "", false
	}
	return code, true
}

// NewTicketCode returns a fresh 24 character upper-case hex code cut from a
// version 4 UUID.  The version and variant nibbles at positions 12 and 16
// are fixed, so a code carries 90 random bits.
func NewTicketCode() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(id[:]))[:CodeLen], nil
}

func isHex(s string, n int, upper bool) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case upper && c >= 'A' && c <= 'F':
		case !upper && c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
