package web

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/schema"

	"boletos/billing"
)

// ------------------------------------------------------------------------------
// Helpers
// ------------------------------------------------------------------------------

// Validator holds a map of validation errors, keyed by the form field name.
type Validator struct {
	Errors map[string]string
}

// NewValidator creates a new, initialized Validator.
func NewValidator() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the Errors map is empty.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error message to the map for a given field if one
// doesn't already exist for that field.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check is a helper for conditional validation. If `ok` is false, it
// calls AddError with the provided key and message.
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// FieldError is a helper to check if the specified field has triggered
// an error.
func (v *Validator) FieldError(field string) bool {
	_, ok := v.Errors[field]
	return ok
}

// ------------------------------------------------------------------------------
// URL parameter parsing, using gorilla mux.Vars
// ------------------------------------------------------------------------------

// validMuxVars checks that the required keys are in the url route variable parameters,
// such as the `key` in
//
//	"/client/{key}"
func validMuxVars(vars map[string]string, keys ...string) (map[string]string, error) {
	for _, key := range keys {
		if v, ok := vars[key]; !ok || v == "" {
			return nil, fmt.Errorf("parameter %q missing", key)
		}
	}
	return vars, nil
}

// ------------------------------------------------------------------------------
// Forms
// ------------------------------------------------------------------------------

// ClientsForm represents the URL query parameters of the client selector.
type ClientsForm struct {
	Squad string `schema:"squad"`
}

// Validate checks the squad is one of those in the spreadsheet. An empty squad
// selects all squads.
func (f *ClientsForm) Validate(v *Validator, squads []string) {
	f.Squad = strings.TrimSpace(f.Squad)
	v.Check(f.Squad == "" || slices.Contains(squads, f.Squad), "squad", fmt.Sprintf("Unknown squad %q.", f.Squad))
}

// HistoryForm represents the URL query parameters of the sync history listing.
type HistoryForm struct {
	SearchString string `schema:"search"`
	Page         int    `schema:"page"`
}

// NewHistoryForm creates a HistoryForm with defaults.
func NewHistoryForm() *HistoryForm {
	return &HistoryForm{
		Page: 1, // 1-based pagination.
	}
}

// Validate checks HistoryForm fields and populates Validator with any errors.
func (f *HistoryForm) Validate(v *Validator) {
	f.SearchString = strings.TrimSpace(f.SearchString)
	v.Check(len(f.SearchString) <= 100, "search", "Search is too long.")
	if f.Page < 1 {
		f.Page = 1
	}
}

// Offset calculates the database offset for (1-based) pagination.
func (f *HistoryForm) Offset() int {
	return (f.Page - 1) * pageLen
}

// SyncForm is the form of the eight inputs for a client, posted to
// /client/{key}/sync.
type SyncForm struct {
	Key     string `schema:"key"` // from the route
	MethodA string `schema:"method-a"`
	CreditA string `schema:"credit-a"`
	DateA   string `schema:"date-a"`
	SpendA  string `schema:"spend-a"`
	MethodB string `schema:"method-b"`
	CreditB string `schema:"credit-b"`
	DateB   string `schema:"date-b"`
	SpendB  string `schema:"spend-b"`
}

// NewSyncForm creates a SyncForm holding the inputs currently in the spreadsheet.
func NewSyncForm(c *billing.Client) *SyncForm {
	return &SyncForm{
		Key:     c.Key,
		MethodA: c.PlatformA.Method,
		CreditA: c.PlatformA.Credit,
		DateA:   c.PlatformA.Date,
		SpendA:  c.PlatformA.Spend,
		MethodB: c.PlatformB.Method,
		CreditB: c.PlatformB.Credit,
		DateB:   c.PlatformB.Date,
		SpendB:  c.PlatformB.Spend,
	}
}

// CheckSyncForm collects the postData and routeVars into a map for schema decoding.
func CheckSyncForm(postData url.Values, routeVars map[string]string) (*SyncForm, error) {
	data := url.Values{}
	for k, v := range postData {
		data[k] = v
	}
	for k, v := range routeVars {
		data[k] = []string{v}
	}

	var sf SyncForm
	decoder := newSchemaDecoder()
	if err := decoder.Decode(&sf, data); err != nil {
		return nil, fmt.Errorf("post data decoding error: %v", err)
	}
	return &sf, nil
}

// Validate checks the key and payment methods. Currency fields and balance dates
// are not rejected: a currency text that is not a value is written as zero, a date
// that is not DD/MM is written as typed, and both are reported after the sync.
func (f *SyncForm) Validate(v *Validator, methods []string) {
	if f == nil {
		v.AddError("form", "No form data received.")
		return
	}
	v.Check(f.Key != "", "key", "An empty key was provided.")

	v.Check(slices.Contains(methods, f.MethodA), "method-a", "Choose a payment method.")
	v.Check(slices.Contains(methods, f.MethodB), "method-b", "Choose a payment method.")

	f.DateA, f.DateB = strings.TrimSpace(f.DateA), strings.TrimSpace(f.DateB)
}

// Request converts the form to a billing.SyncRequest.
func (f *SyncForm) Request() billing.SyncRequest {
	return billing.SyncRequest{
		Key: f.Key,
		PlatformA: billing.PlatformInput{
			Method: f.MethodA, Credit: f.CreditA, Date: f.DateA, Spend: f.SpendA,
		},
		PlatformB: billing.PlatformInput{
			Method: f.MethodB, Credit: f.CreditB, Date: f.DateB, Spend: f.SpendB,
		},
	}
}

// ------------------------------------------------------------------------------
// General decoding funcs
// ------------------------------------------------------------------------------

// newSchemaDecoder creates a new schema.Decoder instance which ignores query or form
// keys not in the destination, such as those added by browsers.
func newSchemaDecoder() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return decoder
}

// DecodeURLParams is helper that decodes URL query parameters from a request
// into a destination struct (dst).
func DecodeURLParams(r *http.Request, dst any) error {
	decoder := newSchemaDecoder()
	if err := decoder.Decode(dst, r.URL.Query()); err != nil {
		return fmt.Errorf("url parameter decoding error: %v", err)
	}
	return nil
}
