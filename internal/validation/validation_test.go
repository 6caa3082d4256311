package validation

import (
	"testing"
)

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"reviewer1", true},
		{"a.b-c_d", true},
		{"ab", false},
		{"", false},
		{"has space", false},
		{"waytoolongusernamethatkeepsgoingon", false},
	}
	for _, tt := range tests {
		if got := IsValidUsername(tt.in); got != tt.want {
			t.Errorf("IsValidUsername(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"user@example.com", true},
		{"a@b.co", true},
		{"no-at-sign", false},
		{"two@@example.com", false},
		{"user@nodot", false},
	}
	for _, tt := range tests {
		if got := IsValidEmail(tt.in); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"+15551234567", true},
		{"5551234", true},
		{"12345", false},
		{"+1 555", false},
		{"abc", false},
	}
	for _, tt := range tests {
		if got := IsValidPhone(tt.in); got != tt.want {
			t.Errorf("IsValidPhone(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidEthAddress(t *testing.T) {
	if !IsValidEthAddress("0x1234567890123456789012345678901234567890") {
		t.Error("expected valid address")
	}
	if IsValidEthAddress("0x123") {
		t.Error("expected invalid address")
	}
	if IsValidEthAddress("1234567890123456789012345678901234567890") {
		t.Error("expected invalid address without 0x")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello  ", 100); got != "hello" {
		t.Errorf("expected trimmed string, got %q", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Errorf("expected truncation, got %q", got)
	}
	if got := SanitizeString("a\x00b", 100); got != "ab" {
		t.Errorf("expected null bytes removed, got %q", got)
	}
}

func TestValidate_Composition(t *testing.T) {
	errs := Validate(
		Required("username", ""),
		ValidEmail("email", "bad-email"),
		ValidRating("rating_score", 7),
	)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	if errs.Error() == "" {
		t.Error("expected non-empty error message")
	}

	errs = Validate(
		Required("username", "reviewer1"),
		ValidEmail("email", "user@example.com"),
		ValidRating("rating_score", 4),
	)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidTransactionalPassword(t *testing.T) {
	if err := ValidTransactionalPassword("transactional_password", "1234")(); err != nil {
		t.Errorf("expected 4-char password to pass, got %v", err)
	}
	if err := ValidTransactionalPassword("transactional_password", "123")(); err == nil {
		t.Error("expected 3-char password to fail")
	}
	if err := ValidTransactionalPassword("transactional_password", "12345")(); err == nil {
		t.Error("expected 5-char password to fail")
	}
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"100", true},
		{"100.50", true},
		{"0.01", true},
		{"", true}, // optional; pair with Required when mandatory
		{"0", false},
		{"0.00", false},
		{"1.234", false},
		{"-5", false},
		{"1.2.3", false},
		{".5", false},
		{"5.", false},
		{"abc", false},
	}
	for _, tt := range tests {
		err := ValidAmount("amount", tt.in)()
		if tt.wantOK && err != nil {
			t.Errorf("ValidAmount(%q) = %v, want ok", tt.in, err)
		}
		if !tt.wantOK && err == nil {
			t.Errorf("ValidAmount(%q) = ok, want error", tt.in)
		}
	}
}
