package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v2"

	"boletos/sheets"
	"boletos/table"
)

// Store backends.
const (
	BackendSheets = "sheets"
	BackendXLSX   = "xlsx"
)

// Settle strategies.
const (
	SettleFixed = "fixed"
	SettlePoll  = "poll"
)

// Check pass policies.
const (
	PolicyExact    = "exact"
	PolicyContains = "contains"
)

// Config represents the entire application configuration.
type Config struct {
	LogLevel        string              `yaml:"log_level"`
	Level           log.Level           `yaml:"-"` // parsed from LogLevel
	Store           StoreConfig         `yaml:"store"`
	Worksheets      WorksheetsConfig    `yaml:"worksheets"`
	Input           InputConfig         `yaml:"input"`
	Diagnostic      DiagnosticConfig    `yaml:"diagnostic"`
	Communication   CommunicationConfig `yaml:"communication"`
	Triggers        []TriggerConfig     `yaml:"triggers"`
	Settle          SettleConfig        `yaml:"settle"`
	AllowedStatuses []string            `yaml:"allowed_statuses"`
	PaymentMethods  []string            `yaml:"payment_methods"`
	Platforms       PlatformsConfig     `yaml:"platforms"`
	Links           LinksConfig         `yaml:"links"`
	Web             WebConfig           `yaml:"web"`
	Audit           AuditConfig         `yaml:"audit"`
}

// StoreConfig selects and configures the spreadsheet backend. The spreadsheet id
// and credentials are normally supplied by the environment.
type StoreConfig struct {
	Backend         string `yaml:"backend"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"-"` // environment only
	XLSXPath        string `yaml:"xlsx_path"`
}

// WorksheetsConfig names the three worksheets.
type WorksheetsConfig struct {
	Input         string `yaml:"input"`
	Output        string `yaml:"output"`
	Communication string `yaml:"communication"`
}

// HeaderConfig locates a worksheet's header row: by scanning for tokens, or at a
// fixed 0-based row when FixedRow is set.
type HeaderConfig struct {
	Tokens   []string `yaml:"tokens"`
	FixedRow *int     `yaml:"fixed_row"`
}

// Strategy converts the HeaderConfig into a table.HeaderStrategy.
func (h HeaderConfig) Strategy() table.HeaderStrategy {
	if h.FixedRow != nil {
		return table.FixedAt(*h.FixedRow)
	}
	return table.ScanFor(h.Tokens...)
}

// InputConfig is the column map of the client roster/input worksheet. Key and
// inputs columns are letters since writes are positional; the remaining fields are
// header names.
type InputConfig struct {
	Header          HeaderConfig `yaml:"header"`
	KeyColumn       string       `yaml:"key_column"`
	InputsColumn    string       `yaml:"inputs_column"`
	KeyHeader       string       `yaml:"key_header"`
	ClientHeader    string       `yaml:"client_header"`
	SquadHeader     string       `yaml:"squad_header"`
	StatusHeader    string       `yaml:"status_header"`
	KeyColumnIdx    int          `yaml:"-"` // parsed from KeyColumn
	InputsColumnIdx int          `yaml:"-"` // parsed from InputsColumn
}

// FieldRef names a field either by header name or by column letter. Header wins
// when both are set.
type FieldRef struct {
	Header string `yaml:"header"`
	Column string `yaml:"column"`
	Index  int    `yaml:"-"` // parsed from Column, -1 when unset
}

// IsSet reports whether the FieldRef points anywhere.
func (f FieldRef) IsSet() bool {
	return f.Header != "" || f.Column != ""
}

// CheckConfig is one diagnostic check.
type CheckConfig struct {
	Label    string   `yaml:"label"`
	Field    FieldRef `yaml:"field"`
	Expected FieldRef `yaml:"expected"`
	Actual   FieldRef `yaml:"actual"`
}

// DiagnosticConfig is the column map of the diagnostic output worksheet.
type DiagnosticConfig struct {
	Header    HeaderConfig  `yaml:"header"`
	KeyHeader string        `yaml:"key_header"`
	Policy    string        `yaml:"policy"`
	Checks    []CheckConfig `yaml:"checks"`
	Total     FieldRef      `yaml:"total"`
	Title     FieldRef      `yaml:"title"`
}

// CommunicationConfig is the column map of the communication worksheet.
type CommunicationConfig struct {
	Header       HeaderConfig `yaml:"header"`
	KeyHeaders   []string     `yaml:"key_headers"` // first present header is used
	Phone        FieldRef     `yaml:"phone"`
	Email        FieldRef     `yaml:"email"`
	Name         FieldRef     `yaml:"name"`
	WhatsAppLink FieldRef     `yaml:"whatsapp_link"`
	EmailLink    FieldRef     `yaml:"email_link"`
}

// TriggerConfig copies the value of Source into Target after inputs are written, to
// prompt the spreadsheet to recompute.
type TriggerConfig struct {
	Worksheet string `yaml:"worksheet"`
	Source    string `yaml:"source"`
	Target    string `yaml:"target"`
}

// SettleConfig configures the wait for spreadsheet recomputation.
type SettleConfig struct {
	Strategy    string        `yaml:"strategy"`
	DelayStr    string        `yaml:"delay"`
	IntervalStr string        `yaml:"interval"`
	MaxWaitStr  string        `yaml:"max_wait"`
	Delay       time.Duration `yaml:"-"` // parsed from DelayStr
	Interval    time.Duration `yaml:"-"` // parsed from IntervalStr
	MaxWait     time.Duration `yaml:"-"` // parsed from MaxWaitStr
}

// PlatformsConfig names the two ad platforms.
type PlatformsConfig struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// LinksConfig holds the outbound message templates.
type LinksConfig struct {
	BillingEmail    string `yaml:"billing_email"`
	CC              string `yaml:"cc"`
	WhatsAppMessage string `yaml:"whatsapp_message"`
	EmailSubject    string `yaml:"email_subject"`
	EmailBody       string `yaml:"email_body"`
}

// WebConfig holds settings specific to the web server.
type WebConfig struct {
	ListenAddress      string        `yaml:"listen_address"`
	TemplatesPath      string        `yaml:"templates_path"` // empty uses embedded templates
	StaticPath         string        `yaml:"static_path"`    // empty uses embedded static files
	DevelopmentMode    bool          `yaml:"development_mode"`
	SessionLifetimeStr string        `yaml:"session_lifetime"`
	SessionLifetime    time.Duration `yaml:"-"` // parsed from SessionLifetimeStr
}

// AuditConfig configures the local record of sync attempts. An empty path disables
// auditing.
type AuditConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Environment variables overriding the file.
const (
	EnvSpreadsheetID   = "SPREADSHEET_ID"
	EnvCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvCredentialsJSON = "GOOGLE_CREDENTIALS_JSON"
)

// Load loads and validates the configuration from the given file path, applying
// environment overrides.
func Load(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", filePath)
	}

	configFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(configFile)
}

// Parse parses and validates YAML configuration, applying environment overrides.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse YAML config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := validateAndPrepare(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overrides store settings from the environment.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvSpreadsheetID)); v != "" {
		c.Store.SpreadsheetID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCredentialsFile)); v != "" {
		c.Store.CredentialsFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCredentialsJSON)); v != "" {
		c.Store.CredentialsJSON = v
	}
}

// applyDefaults fills the layout of the billing spreadsheet as it stands.
func (c *Config) applyDefaults() {
	setDefault := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	setDefault(&c.LogLevel, "info")
	setDefault(&c.Store.Backend, BackendSheets)
	setDefault(&c.Worksheets.Input, "INPUT - BOLETOS")
	setDefault(&c.Worksheets.Output, "OUTPUT - BOLETOS")
	setDefault(&c.Worksheets.Communication, "COMUNICACAO - CLIENTE")

	for _, h := range []*HeaderConfig{&c.Input.Header, &c.Diagnostic.Header, &c.Communication.Header} {
		if h.FixedRow == nil && len(h.Tokens) == 0 {
			h.Tokens = []string{"key|id", "clientes"}
		}
	}

	setDefault(&c.Input.KeyColumn, "B")
	setDefault(&c.Input.InputsColumn, "I")
	setDefault(&c.Input.KeyHeader, "Key")
	setDefault(&c.Input.ClientHeader, "Clientes")
	setDefault(&c.Input.SquadHeader, "SQUAD")
	setDefault(&c.Input.StatusHeader, "Status")

	setDefault(&c.Diagnostic.KeyHeader, "Key")
	setDefault(&c.Diagnostic.Policy, PolicyExact)
	if len(c.Diagnostic.Checks) == 0 {
		c.Diagnostic.Checks = []CheckConfig{
			{Label: "Check 1: Atualização", Field: FieldRef{Header: "Preench. FB"}},
			{Label: "Check 2: Valor Mídia", Field: FieldRef{Header: "Valor Mídia"}},
			{Label: "Check 3: Limite Emissão", Field: FieldRef{Header: "Valor a Emitir"}},
			{Label: "Check 4: Saldo dia 10", Field: FieldRef{Header: "Saldo até dia 10"}},
		}
	}
	if !c.Diagnostic.Total.IsSet() {
		c.Diagnostic.Total.Header = "Valor a Emitir"
	}
	if !c.Diagnostic.Title.IsSet() {
		c.Diagnostic.Title.Header = "Nome Boleto/PIX"
	}

	if len(c.Communication.KeyHeaders) == 0 {
		c.Communication.KeyHeaders = []string{"ID", "Key"}
	}
	if !c.Communication.WhatsAppLink.IsSet() {
		c.Communication.WhatsAppLink.Header = "Envio Whatsapp"
	}
	if !c.Communication.EmailLink.IsSet() {
		c.Communication.EmailLink.Header = "Envio E-mail"
	}
	if !c.Communication.Phone.IsSet() {
		c.Communication.Phone.Header = "Telefone"
	}
	if !c.Communication.Email.IsSet() {
		c.Communication.Email.Header = "E-mail"
	}
	if !c.Communication.Name.IsSet() {
		c.Communication.Name.Header = "Contato"
	}

	setDefault(&c.Settle.Strategy, SettleFixed)
	setDefault(&c.Settle.DelayStr, "4s")
	setDefault(&c.Settle.IntervalStr, "1s")
	setDefault(&c.Settle.MaxWaitStr, "15s")

	if len(c.AllowedStatuses) == 0 {
		c.AllowedStatuses = []string{"OK", "NÃO INICIOU", "DUPLICADO", "ENCERRAR"}
	}
	if len(c.PaymentMethods) == 0 {
		c.PaymentMethods = []string{"Boleto", "PIX", "Cartão Pós", "Cartão Pré", "Sem Campanha"}
	}
	setDefault(&c.Platforms.A, "Meta Ads")
	setDefault(&c.Platforms.B, "Google Ads")

	setDefault(&c.Web.ListenAddress, "127.0.0.1:8080")
	setDefault(&c.Web.SessionLifetimeStr, "12h")
}

// placeholderMarkers identify spreadsheet ids copied from documentation.
var placeholderMarkers = []string{"<", ">", "your", "seu_", "placeholder", "xxxx", "changeme"}

// validateAndPrepare checks for required fields and sets up derived values.
func validateAndPrepare(c *Config) error {
	var err error

	if c.Level, err = log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}

	// Store
	switch c.Store.Backend {
	case BackendSheets:
		id := strings.ToLower(c.Store.SpreadsheetID)
		if id == "" {
			return fmt.Errorf("store.spreadsheet_id is missing (or set %s)", EnvSpreadsheetID)
		}
		for _, m := range placeholderMarkers {
			if strings.Contains(id, m) {
				return fmt.Errorf("store.spreadsheet_id %q looks like a placeholder", c.Store.SpreadsheetID)
			}
		}
		if c.Store.CredentialsFile == "" && c.Store.CredentialsJSON == "" {
			return fmt.Errorf("store credentials are missing (set store.credentials_file, %s or %s)", EnvCredentialsFile, EnvCredentialsJSON)
		}
	case BackendXLSX:
		if c.Store.XLSXPath == "" {
			return errors.New("store.xlsx_path is missing")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSheets, BackendXLSX, c.Store.Backend)
	}

	// Input layout
	if c.Input.KeyColumnIdx, err = sheets.ColumnIndex(c.Input.KeyColumn); err != nil {
		return fmt.Errorf("input.key_column: %w", err)
	}
	if c.Input.InputsColumnIdx, err = sheets.ColumnIndex(c.Input.InputsColumn); err != nil {
		return fmt.Errorf("input.inputs_column: %w", err)
	}

	// Diagnostic
	switch c.Diagnostic.Policy {
	case PolicyExact, PolicyContains:
	default:
		return fmt.Errorf("diagnostic.policy must be %q or %q, got %q", PolicyExact, PolicyContains, c.Diagnostic.Policy)
	}
	for i := range c.Diagnostic.Checks {
		ch := &c.Diagnostic.Checks[i]
		if ch.Label == "" {
			return fmt.Errorf("diagnostic.checks[%d].label is missing", i)
		}
		if !ch.Field.IsSet() {
			return fmt.Errorf("diagnostic check %q has no field", ch.Label)
		}
		for _, f := range []*FieldRef{&ch.Field, &ch.Expected, &ch.Actual} {
			if err := f.prepare(); err != nil {
				return fmt.Errorf("diagnostic check %q: %w", ch.Label, err)
			}
		}
	}
	for _, f := range []*FieldRef{&c.Diagnostic.Total, &c.Diagnostic.Title} {
		if err := f.prepare(); err != nil {
			return fmt.Errorf("diagnostic: %w", err)
		}
	}

	// Communication
	cc := &c.Communication
	for _, f := range []*FieldRef{&cc.Phone, &cc.Email, &cc.Name, &cc.WhatsAppLink, &cc.EmailLink} {
		if err := f.prepare(); err != nil {
			return fmt.Errorf("communication: %w", err)
		}
	}

	// Triggers
	for i, tr := range c.Triggers {
		if tr.Worksheet == "" {
			return fmt.Errorf("triggers[%d].worksheet is missing", i)
		}
		if _, _, err := sheets.ParseCell(tr.Source); err != nil {
			return fmt.Errorf("triggers[%d].source: %w", i, err)
		}
		if _, _, err := sheets.ParseCell(tr.Target); err != nil {
			return fmt.Errorf("triggers[%d].target: %w", i, err)
		}
	}

	// Settle
	s := &c.Settle
	if s.Delay, err = time.ParseDuration(s.DelayStr); err != nil {
		return fmt.Errorf("invalid settle.delay: %w", err)
	}
	if s.Interval, err = time.ParseDuration(s.IntervalStr); err != nil {
		return fmt.Errorf("invalid settle.interval: %w", err)
	}
	if s.MaxWait, err = time.ParseDuration(s.MaxWaitStr); err != nil {
		return fmt.Errorf("invalid settle.max_wait: %w", err)
	}
	switch s.Strategy {
	case SettleFixed:
	case SettlePoll:
		if s.Interval <= 0 {
			return errors.New("settle.interval must be positive for the poll strategy")
		}
		if s.MaxWait < s.Interval {
			return errors.New("settle.max_wait must be at least settle.interval")
		}
	default:
		return fmt.Errorf("settle.strategy must be %q or %q, got %q", SettleFixed, SettlePoll, s.Strategy)
	}

	if len(c.PaymentMethods) < 1 {
		return errors.New("at least one payment method should be supplied")
	}

	// Web
	if c.Web.SessionLifetime, err = time.ParseDuration(c.Web.SessionLifetimeStr); err != nil {
		return fmt.Errorf("invalid web.session_lifetime: %w", err)
	}

	return nil
}

// prepare parses the column letter of a FieldRef.
func (f *FieldRef) prepare() error {
	f.Index = -1
	if f.Column == "" {
		return nil
	}
	idx, err := sheets.ColumnIndex(f.Column)
	if err != nil {
		return err
	}
	f.Index = idx
	return nil
}

// AllowedStatus reports whether a client status is eligible for operator action.
func (c *Config) AllowedStatus(status string) bool {
	for _, s := range c.AllowedStatuses {
		if strings.EqualFold(strings.TrimSpace(status), s) {
			return true
		}
	}
	return false
}
