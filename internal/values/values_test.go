package values

import (
	"fmt"
	"testing"
)

func TestParseMoney(t *testing.T) {

	tests := []struct {
		input string
		want  float64
		like  bool
	}{
		{"1.234,56", 1234.56, true},
		{"R$ 45,00", 45.0, true},
		{"R$1.500,00", 1500.0, true},
		{"1.500,00", 1500.0, true},
		{"  850,00 ", 850.0, true},
		{"30", 30.0, true},
		{"", 0, true},
		{"   ", 0, true},
		{"abc", 0, false},
		{"12,3,4", 0, false},
		{"-12,50", -12.5, true},
		{"nan", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"-Infinity", 0, false},
		{"1e3", 0, false},
		{"0x1p4", 0, false},
		{"+5", 0, false},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%q", ii, tt.input), func(t *testing.T) {
			if got, want := ParseMoney(tt.input), tt.want; got != want {
				t.Errorf("got %v want %v", got, want)
			}
			if got, want := IsMoneyLike(tt.input), tt.like; got != want {
				t.Errorf("IsMoneyLike got %t want %t", got, want)
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {

	tests := []struct {
		input string
		want  string
	}{
		{" 0,1 ", "0.1"},
		{"42", "42"},
		{"1,2,3", "1.2.3"},
		{"\t7\n", "7"},
		{"", ""},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%q", ii, tt.input), func(t *testing.T) {
			if got, want := NormalizeKey(tt.input), tt.want; got != want {
				t.Errorf("got %q want %q", got, want)
			}
		})
	}

	if !SameKey("0,5", " 0.5") {
		t.Error("expected 0,5 and 0.5 to be the same key")
	}
	if SameKey("5", "50") {
		t.Error("expected 5 and 50 to differ")
	}
}

func TestFormatReais(t *testing.T) {

	tests := []struct {
		input float64
		want  string
	}{
		{0, "R$ 0,00"},
		{2350, "R$ 2.350,00"},
		{1234567.891, "R$ 1.234.567,89"},
		{-80.5, "-R$ 80,50"},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%v", ii, tt.input), func(t *testing.T) {
			if got, want := FormatReais(tt.input), tt.want; got != want {
				t.Errorf("got %q want %q", got, want)
			}
		})
	}

	if got, want := FormatReais(ParseMoney("R$ 1.500,00")), "R$ 1.500,00"; got != want {
		t.Errorf("round trip got %q want %q", got, want)
	}
}

func TestIsDayMonth(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"01/10", true},
		{" 5/3 ", true},
		{"31/12", true},
		{"32/01", false},
		{"01/13", false},
		{"1/10/2026", false},
		{"2026-10-01", false},
	}
	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%q", ii, tt.input), func(t *testing.T) {
			if got := IsDayMonth(tt.input); got != tt.want {
				t.Errorf("got %t want %t", got, tt.want)
			}
		})
	}
}
