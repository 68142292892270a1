package user

import (
	"errors"
	"strings"
	"testing"
)

func TestNewEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "user@example.com", want: "user@example.com"},
		{raw: "  USER@Example.COM ", want: "user@example.com"},
		{raw: "first.last+tag@sub.example.co.kr", want: "first.last+tag@sub.example.co.kr"},
		{raw: "", wantErr: true},
		{raw: "   ", wantErr: true},
		{raw: "no-at-sign", wantErr: true},
		{raw: "two@@example.com", wantErr: true},
		{raw: "Display Name <user@example.com>", wantErr: true},
		{raw: strings.Repeat("a", 250) + "@x.com", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NewEmail(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidEmail) {
				t.Errorf("NewEmail(%q): expected ErrInvalidEmail, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewEmail(%q) returned error: %v", tt.raw, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("NewEmail(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestEmail_EqualByNormalizedValue(t *testing.T) {
	t.Parallel()

	a, _ := NewEmail("A@X.com")
	b, _ := NewEmail("a@x.COM")
	if !a.Equal(b) || a != b {
		t.Fatalf("expected %q and %q to be equal", a, b)
	}

	if (Email{}).IsZero() == false {
		t.Fatalf("expected zero email to report IsZero")
	}
}
