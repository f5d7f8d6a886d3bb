package billing

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"boletos/config"
	"boletos/table"
)

func TestClassifierPass(t *testing.T) {
	tests := []struct {
		value    string
		exact    bool
		contains bool
	}{
		{"OK", true, true},
		{"ok", true, true},
		{" Ok ", true, true},
		{"NOK", false, false},
		{"", false, false},
		{"OK - revisar data", false, true},
		{"SEM CRÉDITO", false, false},
	}
	exact := Classifier{Policy: config.PolicyExact}
	contains := Classifier{Policy: config.PolicyContains}
	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", ii, tt.value), func(t *testing.T) {
			if got := exact.Pass(tt.value); got != tt.exact {
				t.Errorf("exact got %t want %t", got, tt.exact)
			}
			if got := contains.Pass(tt.value); got != tt.contains {
				t.Errorf("contains got %t want %t", got, tt.contains)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tbl, err := table.FromGrid([][]string{
		{"Key", "Clientes", "Check A", "Check B", "Meta", "Real"},
		{"1", "Cliente", "OK", "ACIMA DO LIMITE", "500", "750"},
	}, table.ScanFor("key", "clientes"))
	if err != nil {
		t.Fatal(err)
	}

	c := Classifier{
		Policy: config.PolicyExact,
		Checks: []config.CheckConfig{
			{Label: "A", Field: config.FieldRef{Header: "Check A"}},
			{Label: "B", Field: config.FieldRef{Header: "Check B"}, Expected: config.FieldRef{Header: "Meta"}, Actual: config.FieldRef{Column: "F", Index: 5}},
			{Label: "C", Field: config.FieldRef{Header: "Check C"}},
			{Label: "D", Field: config.FieldRef{Column: "C", Index: 2}, Expected: config.FieldRef{Header: "Meta"}},
		},
	}
	want := []CheckResult{
		{Label: "A", Pass: true, Raw: "OK"},
		{Label: "B", Pass: false, Raw: "ACIMA DO LIMITE", Explanation: "expected 500, got 750"},
		{Label: "C", Pass: false, Raw: "NOK"},
		{Label: "D", Pass: true, Raw: "OK"},
	}
	if diff := cmp.Diff(want, c.Classify(tbl.Records[0])); diff != "" {
		t.Errorf("classify mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestRow(t *testing.T) {
	req := SyncRequest{
		Key:       "42",
		PlatformA: PlatformInput{Method: "PIX", Credit: "R$ 1.234,56", Date: " 05/11 ", Spend: "x"},
		PlatformB: PlatformInput{Method: "Cartão Pré", Credit: "", Date: "", Spend: "12,5"},
	}
	want := []any{"PIX", 1234.56, "05/11", 0.0, "Cartão Pré", 0.0, "", 12.5}
	if diff := cmp.Diff(want, req.Row()); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`A daily spend "x" is not a currency value and was written as 0`}, req.Warnings("A", "B")); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestWarnings(t *testing.T) {
	req := SyncRequest{
		Key:       "42",
		PlatformA: PlatformInput{Method: "PIX", Credit: "nan", Date: "1/10/2026", Spend: "10"},
		PlatformB: PlatformInput{Method: "Boleto", Credit: "5", Date: " 01/10 ", Spend: "1e3"},
	}
	want := []string{
		`Meta credit "nan" is not a currency value and was written as 0`,
		`Meta balance date "1/10/2026" is not DD/MM and was written as typed`,
		`Google daily spend "1e3" is not a currency value and was written as 0`,
	}
	if diff := cmp.Diff(want, req.Warnings("Meta", "Google")); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	// the date is written as typed
	if got, want := req.Row()[2], any("1/10/2026"); got != want {
		t.Errorf("date cell got %v want %v", got, want)
	}
}
