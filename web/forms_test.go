package web

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"boletos/billing"
)

func newRequest(t *testing.T, urlString string) *http.Request {
	t.Helper()
	r, err := http.NewRequest("GET", urlString, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

var testMethods = []string{"Boleto", "PIX", "Cartão Pós", "Cartão Pré", "Sem Campanha"}

// TestHistoryForm tests the HistoryForm behaviour.
func TestHistoryForm(t *testing.T) {

	tests := []struct {
		name           string
		inputURL       string
		form           *HistoryForm
		isErr          bool
		validationErrs *Validator
		offset         int
	}{
		{
			name:           "default",
			inputURL:       "http://127.0.0.1:8080/history",
			form:           &HistoryForm{Page: 1},
			validationErrs: &Validator{Errors: map[string]string{}},
		},
		{
			name:           "search and page",
			inputURL:       "http://127.0.0.1:8080/history?search=+padaria+&page=3&unknown=1",
			form:           &HistoryForm{SearchString: "padaria", Page: 3},
			validationErrs: &Validator{Errors: map[string]string{}},
			offset:         2 * pageLen,
		},
		{
			name:           "page below 1",
			inputURL:       "http://127.0.0.1:8080/history?page=-2",
			form:           &HistoryForm{Page: 1},
			validationErrs: &Validator{Errors: map[string]string{}},
		},
		{
			name:     "invalid page",
			inputURL: "http://127.0.0.1:8080/history?page=two",
			isErr:    true,
		},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", ii, tt.name), func(t *testing.T) {
			form := NewHistoryForm()
			err := DecodeURLParams(newRequest(t, tt.inputURL), form)
			if tt.isErr {
				if err == nil {
					t.Fatal("expected decoding error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			validator := NewValidator()
			form.Validate(validator)

			if diff := cmp.Diff(tt.form, form); diff != "" {
				t.Errorf("unexpected form diff %s", diff)
			}
			if diff := cmp.Diff(tt.validationErrs, validator); diff != "" {
				t.Errorf("unexpected validation diff %s", diff)
			}
			if got, want := form.Offset(), tt.offset; got != want {
				t.Errorf("offset got %d want %d", got, want)
			}
		})
	}
}

func TestClientsForm(t *testing.T) {

	squads := []string{"Squad 1", "Squad 2"}

	tests := []struct {
		name  string
		squad string
		valid bool
	}{
		{"all squads", "", true},
		{"known squad", "Squad 2", true},
		{"known squad with spaces", " Squad 1 ", true},
		{"unknown squad", "Squad 9", false},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", ii, tt.name), func(t *testing.T) {
			form := &ClientsForm{Squad: tt.squad}
			validator := NewValidator()
			form.Validate(validator, squads)
			if got, want := validator.Valid(), tt.valid; got != want {
				t.Errorf("valid got %t want %t (%v)", got, want, validator.Errors)
			}
			if !tt.valid && !validator.FieldError("squad") {
				t.Error("expected a squad field error")
			}
		})
	}
}

func TestSyncForm(t *testing.T) {

	validPost := url.Values{
		"method-a": {"PIX"},
		"credit-a": {"R$ 1.500,00"},
		"date-a":   {"01/10"},
		"spend-a":  {"150"},
		"method-b": {"Sem Campanha"},
		"credit-b": {""},
		"date-b":   {""},
		"spend-b":  {"0"},
	}

	with := func(k, v string) url.Values {
		p := url.Values{}
		for kk, vv := range validPost {
			p[kk] = vv
		}
		p.Set(k, v)
		return p
	}

	tests := []struct {
		name      string
		post      url.Values
		vars      map[string]string
		errFields []string
	}{
		{
			name: "valid",
			post: validPost,
			vars: map[string]string{"key": "42"},
		},
		{
			name:      "unknown method",
			post:      with("method-a", "Cheque"),
			vars:      map[string]string{"key": "42"},
			errFields: []string{"method-a"},
		},
		{
			name:      "dates other than DD/MM are accepted",
			post:      with("date-b", "1/10/2026"),
			vars:      map[string]string{"key": "42"},
			errFields: nil,
		},
		{
			name:      "route key wins over posted key",
			post:      with("key", ""),
			vars:      map[string]string{"key": "42"},
			errFields: nil,
		},
		{
			name:      "empty key",
			post:      validPost,
			vars:      map[string]string{},
			errFields: []string{"key"},
		},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", ii, tt.name), func(t *testing.T) {
			form, err := CheckSyncForm(tt.post, tt.vars)
			if err != nil {
				t.Fatal(err)
			}
			validator := NewValidator()
			form.Validate(validator, testMethods)
			if got, want := len(validator.Errors), len(tt.errFields); got != want {
				t.Fatalf("got %d errors want %d: %v", got, want, validator.Errors)
			}
			for _, f := range tt.errFields {
				if !validator.FieldError(f) {
					t.Errorf("expected error for field %q", f)
				}
			}
		})
	}

	t.Run("request", func(t *testing.T) {
		form, err := CheckSyncForm(validPost, map[string]string{"key": "0,5"})
		if err != nil {
			t.Fatal(err)
		}
		want := billing.SyncRequest{
			Key:       "0,5",
			PlatformA: billing.PlatformInput{Method: "PIX", Credit: "R$ 1.500,00", Date: "01/10", Spend: "150"},
			PlatformB: billing.PlatformInput{Method: "Sem Campanha", Spend: "0"},
		}
		if diff := cmp.Diff(want, form.Request()); diff != "" {
			t.Errorf("request diff (-want +got):\n%s", diff)
		}
	})

	t.Run("nil form", func(t *testing.T) {
		var form *SyncForm
		validator := NewValidator()
		form.Validate(validator, testMethods)
		if validator.Valid() {
			t.Error("expected nil form to be invalid")
		}
	})
}

func TestNewSyncForm(t *testing.T) {
	c := &billing.Client{
		Key:       "42",
		PlatformA: billing.PlatformInput{Method: "PIX", Credit: "100"},
		PlatformB: billing.PlatformInput{Method: "Boleto", Date: "05/10"},
	}
	want := &SyncForm{Key: "42", MethodA: "PIX", CreditA: "100", MethodB: "Boleto", DateB: "05/10"}
	if diff := cmp.Diff(want, NewSyncForm(c)); diff != "" {
		t.Errorf("form diff (-want +got):\n%s", diff)
	}
}

// TestMuxVars tests the validMuxVars function.
func TestMuxVars(t *testing.T) {

	tests := []struct {
		name  string
		vars  map[string]string
		keys  []string
		isErr bool
	}{
		{"present", map[string]string{"key": "42"}, []string{"key"}, false},
		{"extra vars", map[string]string{"key": "42", "other": "x"}, []string{"key"}, false},
		{"missing", map[string]string{"other": "x"}, []string{"key"}, true},
		{"empty", map[string]string{"key": ""}, []string{"key"}, true},
	}

	for ii, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", ii, tt.name), func(t *testing.T) {
			_, err := validMuxVars(tt.vars, tt.keys...)
			if got, want := err != nil, tt.isErr; got != want {
				t.Errorf("error got %v want error %t", err, want)
			}
		})
	}
}
