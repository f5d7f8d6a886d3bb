// Package links builds the outbound WhatsApp and e-mail compose links offered to an
// operator after a successful sync.
package links

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/google/go-querystring/query"
)

// ErrNotRegistered reports that a contact has no usable phone number or e-mail
// address.
var ErrNotRegistered = errors.New("contact not registered")

// Default templates. They are business text and may be overridden in configuration.
const (
	DefaultWhatsAppMessage = "Olá {{.Name}}, tudo bem? Segue o boleto referente ao investimento em mídia deste mês. " +
		"Qualquer dúvida, estamos à disposição pelo e-mail {{.BillingEmail}}."
	DefaultEmailSubject = "Boleto de mídia - {{.Client}} - {{.Month}}"
	DefaultEmailBody    = "Olá {{.Name}},\n\nSegue em anexo o boleto referente ao investimento em mídia de {{.Month}}.\n\n" +
		"Qualquer dúvida, responda este e-mail ou escreva para {{.BillingEmail}}.\n\nObrigado!"
	DefaultWhatsAppBase = "https://wa.me/"
	DefaultComposeBase  = "https://mail.google.com/mail/"
)

// Templates holds the message templates, parsed with text/template. The fields
// available are Name, Client, Month (MM/YYYY) and BillingEmail.
type Templates struct {
	WhatsAppMessage string
	EmailSubject    string
	EmailBody       string
	BillingEmail    string
	CC              string
	WhatsAppBase    string
	ComposeBase     string
}

// Builder builds links from parsed Templates.
type Builder struct {
	t        Templates
	whatsapp *template.Template
	subject  *template.Template
	body     *template.Template
}

// templateData is the data passed to each template.
type templateData struct {
	Name         string
	Client       string
	Month        string
	BillingEmail string
}

// NewBuilder parses the templates, substituting defaults for empty fields.
func NewBuilder(t Templates) (*Builder, error) {
	if t.WhatsAppMessage == "" {
		t.WhatsAppMessage = DefaultWhatsAppMessage
	}
	if t.EmailSubject == "" {
		t.EmailSubject = DefaultEmailSubject
	}
	if t.EmailBody == "" {
		t.EmailBody = DefaultEmailBody
	}
	if t.WhatsAppBase == "" {
		t.WhatsAppBase = DefaultWhatsAppBase
	}
	if t.ComposeBase == "" {
		t.ComposeBase = DefaultComposeBase
	}

	b := &Builder{t: t}
	var err error
	if b.whatsapp, err = template.New("whatsapp").Parse(t.WhatsAppMessage); err != nil {
		return nil, fmt.Errorf("whatsapp message template: %w", err)
	}
	if b.subject, err = template.New("subject").Parse(t.EmailSubject); err != nil {
		return nil, fmt.Errorf("email subject template: %w", err)
	}
	if b.body, err = template.New("body").Parse(t.EmailBody); err != nil {
		return nil, fmt.Errorf("email body template: %w", err)
	}
	return b, nil
}

// WhatsApp returns a wa.me link with the templated message for the contact. A
// missing, placeholder ("-") or zero phone number yields ErrNotRegistered.
func (b *Builder) WhatsApp(phone, name string) (string, error) {
	digits := PhoneDigits(phone)
	if digits == "" {
		return "", fmt.Errorf("whatsapp: %w", ErrNotRegistered)
	}
	msg, err := execute(b.whatsapp, templateData{Name: name, BillingEmail: b.t.BillingEmail})
	if err != nil {
		return "", err
	}
	return b.t.WhatsAppBase + digits + "?text=" + escape(msg), nil
}

// compose is the query of a mail compose link.
type compose struct {
	View    string `url:"view"`
	FS      string `url:"fs"`
	To      string `url:"to"`
	CC      string `url:"cc,omitempty"`
	Subject string `url:"su"`
	Body    string `url:"body"`
}

// Email returns a mail compose link addressed to addr. An address without "@"
// yields ErrNotRegistered.
func (b *Builder) Email(addr, name, client string, now time.Time) (string, error) {
	addr = strings.TrimSpace(addr)
	if !strings.Contains(addr, "@") {
		return "", fmt.Errorf("email: %w", ErrNotRegistered)
	}
	data := templateData{
		Name:         name,
		Client:       client,
		Month:        now.Format("01/2006"),
		BillingEmail: b.t.BillingEmail,
	}
	if data.Name == "" {
		data.Name = client
	}
	subject, err := execute(b.subject, data)
	if err != nil {
		return "", err
	}
	body, err := execute(b.body, data)
	if err != nil {
		return "", err
	}

	vals, err := query.Values(compose{
		View:    "cm",
		FS:      "1",
		To:      addr,
		CC:      b.t.CC,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return "", fmt.Errorf("email link query: %w", err)
	}
	return b.t.ComposeBase + "?" + encode(vals, "view", "fs", "to", "cc", "su", "body"), nil
}

// PhoneDigits returns the digits of a phone number, or "" when the number is
// missing, a "-" placeholder or zero.
func PhoneDigits(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := sb.String()
	if strings.Trim(digits, "0") == "" {
		return ""
	}
	return digits
}

func execute(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// escape percent-encodes s per RFC 3986, so spaces become %20 rather than "+".
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// encode writes vals in the given key order, RFC 3986 encoded.
func encode(vals url.Values, order ...string) string {
	var parts []string
	for _, k := range order {
		for _, v := range vals[k] {
			parts = append(parts, k+"="+escape(v))
		}
	}
	return strings.Join(parts, "&")
}

// IsLink reports whether a precomputed spreadsheet cell holds a usable link.
func IsLink(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "mailto:")
}
