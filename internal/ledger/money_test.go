package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatYuan(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10000", "¥10,000.00"},
		{"5500", "¥5,500.00"},
		{"0", "¥0.00"},
		{"999.5", "¥999.50"},
		{"1234567.891", "¥1,234,567.89"},
		{"-2500", "-¥2,500.00"},
	}
	for _, tc := range cases {
		if got := FormatYuan(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Fatalf("FormatYuan(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
