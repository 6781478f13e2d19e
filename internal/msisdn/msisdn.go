// Package msisdn normalizes Kenyan phone numbers into the MSISDN format
// used as the RADIUS username.
package msisdn

import (
	"errors"
	"fmt"
	"strings"
)

// Length is the digit count of a valid Kenyan MSISDN (254 + 9 digits).
const Length = 12

var ErrInvalid = errors.New("msisdn: not a valid phone number")

// Normalize applies the canonical rewrite:
//
//  1. strip every non-digit character
//  2. a leading "0" becomes "254"
//  3. an existing "254" prefix is kept
//  4. otherwise, inputs of 9 digits or fewer get "254" prefixed
//  5. anything longer is left unchanged
//
// Note the rule happily produces short results for short inputs
// ("12345" → "25412345"); it does not validate. Callers must run the
// result through Validate before using it as a username or sending it
// to the backend.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case cleaned == "":
		return ""
	case strings.HasPrefix(cleaned, "0"):
		return "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "254"):
		return cleaned
	case len(cleaned) <= 9:
		return "254" + cleaned
	default:
		return cleaned
	}
}

// Validate checks that a normalized number is a plausible Kenyan MSISDN:
// exactly 12 digits starting with 254.
func Validate(normalized string) error {
	if len(normalized) != Length {
		return fmt.Errorf("%w: need %d digits, got %d", ErrInvalid, Length, len(normalized))
	}
	if !strings.HasPrefix(normalized, "254") {
		return fmt.Errorf("%w: must start with 254", ErrInvalid)
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: non-digit character", ErrInvalid)
		}
	}
	return nil
}

// NormalizeValid is the combined helper most callers want: normalize,
// then reject anything that does not come out as a full MSISDN.
func NormalizeValid(raw string) (string, error) {
	n := Normalize(raw)
	if err := Validate(n); err != nil {
		return "", err
	}
	return n, nil
}
