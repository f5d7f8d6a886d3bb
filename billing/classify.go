package billing

import (
	"fmt"
	"strings"

	"boletos/config"
	"boletos/table"
)

// missingCheck is the value assumed for a check column absent from the row.
const missingCheck = "NOK"

// CheckResult is the outcome of one diagnostic check.
type CheckResult struct {
	Label       string
	Pass        bool
	Raw         string // the cell text, the failure reason when not passing
	Explanation string // set on failure when expected and actual columns are configured
}

// Classifier classifies the check fields of a diagnostic row.
type Classifier struct {
	Policy string // config.PolicyExact or config.PolicyContains
	Checks []config.CheckConfig
}

// Pass reports whether a check value passes under the classifier's policy. The
// comparison ignores case and surrounding whitespace.
func (c Classifier) Pass(value string) bool {
	v := strings.ToUpper(strings.TrimSpace(value))
	if c.Policy == config.PolicyContains {
		return strings.Contains(v, "OK") && !strings.Contains(v, "NOK")
	}
	return v == "OK"
}

// Classify returns one result per configured check, in configuration order.
func (c Classifier) Classify(rec table.Record) []CheckResult {
	results := make([]CheckResult, 0, len(c.Checks))
	for _, ch := range c.Checks {
		raw, ok := Field(rec, ch.Field)
		if !ok {
			raw = missingCheck
		}
		res := CheckResult{Label: ch.Label, Raw: raw, Pass: c.Pass(raw)}
		if !res.Pass {
			res.Explanation = explain(rec, ch)
		}
		results = append(results, res)
	}
	return results
}

func explain(rec table.Record, ch config.CheckConfig) string {
	expected, eok := Field(rec, ch.Expected)
	actual, aok := Field(rec, ch.Actual)
	switch {
	case eok && aok:
		return fmt.Sprintf("expected %s, got %s", expected, actual)
	case eok:
		return "expected " + expected
	case aok:
		return "got " + actual
	}
	return ""
}

// Field returns the value of a field reference in rec, by header when one is named
// and by column position otherwise. The boolean is false when the field is unset or
// its header is not in the worksheet.
func Field(rec table.Record, ref config.FieldRef) (string, bool) {
	if ref.Header != "" {
		return rec.Lookup(ref.Header)
	}
	if ref.Column != "" && ref.Index >= 0 {
		return rec.At(ref.Index), true
	}
	return "", false
}
