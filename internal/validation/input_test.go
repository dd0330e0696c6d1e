package validation

import (
	"errors"
	"testing"
)

func TestParsePositiveInt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
		err   error
	}{
		{name: "plain", input: "15", want: 15},
		{name: "surrounding spaces", input: " 7 ", want: 7},
		{name: "zero", input: "0", err: ErrNotPositive},
		{name: "negative", input: "-5", err: ErrNotANumber},
		{name: "fraction", input: "1.5", err: ErrNotANumber},
		{name: "letters", input: "12a", err: ErrNotANumber},
		{name: "overflow", input: "99999999999999999999", err: ErrNotANumber},
		{name: "empty", input: "", err: ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePositiveInt(tt.input)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("ParsePositiveInt(%q) error = %v, want %v", tt.input, err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePositiveInt(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParsePositiveInt(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseReferrer(t *testing.T) {
	if got := ParseReferrer(""); got != nil {
		t.Fatalf("empty arg: got %d, want nil", *got)
	}
	if got := ParseReferrer("abc"); got != nil {
		t.Fatalf("non-numeric arg: got %d, want nil", *got)
	}
	if got := ParseReferrer("0"); got != nil {
		t.Fatalf("zero arg: got %d, want nil", *got)
	}
	got := ParseReferrer(" 12345 ")
	if got == nil || *got != 12345 {
		t.Fatalf("numeric arg: got %v, want 12345", got)
	}
}

func TestIsValidLink(t *testing.T) {
	tests := []struct {
		link  string
		valid bool
	}{
		{"", true},
		{"#", true},
		{"https://t.me/yourchannel", true},
		{"http://example.com/path?q=1", true},
		{"ftp://example.com", false},
		{"javascript:alert(1)", false},
		{"not a link", false},
		{"https://", false},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			if got := IsValidLink(tt.link); got != tt.valid {
				t.Fatalf("IsValidLink(%q) = %v, want %v", tt.link, got, tt.valid)
			}
		})
	}
}
