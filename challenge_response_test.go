package goLogin

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "al***@example.com"},
		{"ab@example.com", "ab@example.com"},
		{"a@example.com", "a@example.com"},
		{"charlotte@example.com", "ch*******@example.com"},
		{"ñandú@example.com", "ña***@example.com"},
		{"ñ@example.com", "ñ@example.com"},
		{"no-at-sign", "no-at-sign"},
		{"@example.com", "@example.com"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
