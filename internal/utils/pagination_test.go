package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	for _, tc := range []struct {
		s        string
		def, out int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"x", 5, 5},
		{"999999999999999999999999", -1, -1},
	} {
		if got := AtoiDefault(tc.s, tc.def); got != tc.out {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.out)
		}
	}
}

func TestLimit(t *testing.T) {
	for _, tc := range []struct {
		s   string
		out int
	}{
		{"", 50},
		{"abc", 50},
		{"0", 50},
		{"-3", 50},
		{"1", 1},
		{" 20 ", 20},
		{"200", 200},
		{"201", 200},
		{"100000", 200},
	} {
		if got := Limit(tc.s, 50, 200); got != tc.out {
			t.Fatalf("Limit(%q) = %d; want %d", tc.s, got, tc.out)
		}
	}
}
