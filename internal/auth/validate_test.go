package auth

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		ok    bool
	}{
		{"user@example.com", true},
		{"first.last+tag@sub.domain.io", true},
		{"", false},
		{"no-at-sign", false},
		{"missing@tld", false},
		{"two@@example.com", false},
		{"spaces in@example.com", false},
	}

	for _, tt := range tests {
		err := ValidateEmail(tt.email)
		if tt.ok && err != nil {
			t.Errorf("ValidateEmail(%q) = %v, want nil", tt.email, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ValidateEmail(%q) = nil, want error", tt.email)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"secret1x", true},
		{"longpassword9", true},
		{"short1", false},
		{"lettersonly", false},
		{"12345678", false},
		{"", false},
		{"pässwort1", true},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if tt.ok && err != nil {
			t.Errorf("ValidatePassword(%q) = %v, want nil", tt.password, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ValidatePassword(%q) = nil, want error", tt.password)
		}
	}
}
