package catalog

import (
	"strings"

	"github.com/go-faster/errors"
)

// ErrInvalidID is returned when an identifier cannot be canonicalized.
var ErrInvalidID = errors.New("invalid variant identifier")

// CanonicalID normalizes the various identifier shapes seen at the transport
// boundary into the single form the cart operates on: a lowercase hex string.
// Accepted inputs are a bare hex string, optionally wrapped in the
// "ObjectId(...)" textual form some upstream exports produce, with surrounding
// whitespace and quotes tolerated.
func CanonicalID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)

	if rest, ok := strings.CutPrefix(s, "ObjectId("); ok {
		s = strings.TrimSuffix(rest, ")")
		s = strings.Trim(s, `"'`)
	}

	s = strings.ToLower(s)
	if !isHex(s) {
		return "", errors.Wrapf(ErrInvalidID, "%q", raw)
	}
	return s, nil
}

func isHex(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
