package normalize

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dr. John Smith", "JOHN SMITH"},
		{"  jane   doe  ", "JANE DOE"},
		{"O'Brien, Mary", "OBRIEN MARY"},
		{"MRS Achieng Otieno", "ACHIENG OTIENO"},
		{"", ""},
		{"Prof.", ""},
	}

	for _, tt := range tests {
		if got := Name(tt.in); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AB-123 456", "AB123456"},
		{"ab.123/456", "AB123456"},
		{"12345678", "12345678"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Identifier(tt.in); got != tt.want {
			t.Errorf("Identifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	t.Run("Idempotent", func(t *testing.T) {
		once := Identifier("ab-123 456")
		if Identifier(once) != once {
			t.Errorf("Identifier not idempotent: %q -> %q", once, Identifier(once))
		}
	})
}

func TestPhone(t *testing.T) {
	codes := []string{"254", "44", "1"}

	tests := []struct {
		in   string
		want string
	}{
		{"+254 712 345 678", "712345678"},
		{"0712345678", "712345678"},
		{"(071) 234-5678", "712345678"},
		{"254712345678", "712345678"},
		// Too short to strip the code from: stripping would leave fewer
		// than 7 digits.
		{"2547123", "2547123"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Phone(tt.in, codes); got != tt.want {
			t.Errorf("Phone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12 Main St", "12 MAIN STREET"},
		{"12 Main St, Apt 4", "12 MAIN STREET APARTMENT 4"},
		{"99 Elm Ave.", "99 ELM AVENUE"},
		{"  12   Main   Street ", "12 MAIN STREET"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Address(tt.in); got != tt.want {
			t.Errorf("Address(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
