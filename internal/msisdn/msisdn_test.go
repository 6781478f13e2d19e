package msisdn

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},         // leading 0 swapped for 254
		{"254712345678", "254712345678"},       // already normalized
		{"712345678", "254712345678"},          // 9 digits, prefixed
		{"+254 712 345 678", "254712345678"},   // punctuation stripped
		{"0712-345-678", "254712345678"},       // dashes stripped
		{"12345", "25412345"},                  // short input: rule applies, result is short
		{"2547123456789012", "2547123456789012"}, // too long, left unchanged
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("254712345678"); err != nil {
		t.Fatalf("valid MSISDN rejected: %v", err)
	}

	bad := []string{
		"25412345",       // short output of the 5-digit edge case
		"254712345",      // 9 digits
		"0712345678",     // not normalized
		"255712345678",   // wrong country prefix
		"2547123456789",  // 13 digits
		"",
	}
	for _, in := range bad {
		if err := Validate(in); !errors.Is(err, ErrInvalid) {
			t.Errorf("Validate(%q) = %v, want ErrInvalid", in, err)
		}
	}
}

func TestNormalizeValid(t *testing.T) {
	got, err := NormalizeValid("0712345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "254712345678" {
		t.Fatalf("got %q", got)
	}

	// The short-input edge case normalizes per the rule but must fail
	// validation rather than travel to the backend.
	if _, err := NormalizeValid("12345"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for short input, got %v", err)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"0712345678", "254712345678", "712345678", "12345"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
