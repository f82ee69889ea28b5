package utils

import "testing"

func TestFormatPct(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"plain", FormatPct(12.6316, 2), "12.63%"},
		{"signed positive", FormatSignedPct(3, 2), "+3.00%"},
		{"signed negative", FormatSignedPct(-0.5, 1), "-0.5%"},
		{"nil optional", FormatOptionalPct(nil, 2), "n/a"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	v := 1.234
	if got := FormatOptionalPct(&v, 1); got != "+1.2%" {
		t.Errorf("FormatOptionalPct = %q", got)
	}
}

func TestFormatUSDCompact(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{1927345, "$1.93M"},
		{2.95e12, "$2.95T"},
		{450e9, "$450.00B"},
		{-1500, "-$1.50K"},
		{12.5, "$12.50"},
	}
	for _, tt := range tests {
		if got := FormatUSDCompact(tt.amount); got != tt.expected {
			t.Errorf("FormatUSDCompact(%v) = %q, want %q", tt.amount, got, tt.expected)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4200: "-4,200"}
	for in, want := range tests {
		if got := FormatCount(in); got != want {
			t.Errorf("FormatCount(%d) = %q, want %q", in, got, want)
		}
	}
}
