// Package billing implements the sync of an operator's ad-spend inputs into the
// billing spreadsheet and the diagnostic read back once the spreadsheet has
// recomputed.
package billing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"boletos/config"
	"boletos/internal/settle"
	"boletos/internal/values"
	"boletos/links"
	"boletos/sheets"
	"boletos/table"
)

// Client is a row of the input worksheet.
type Client struct {
	Key       string
	Name      string
	Squad     string
	Status    string
	Row       int
	PlatformA PlatformInput // inputs currently in the sheet
	PlatformB PlatformInput
}

// Link is an outbound contact link. URL is empty when the contact is not
// registered.
type Link struct {
	URL        string
	Registered bool
}

// SyncResult is the outcome of a sync or diagnose.
type SyncResult struct {
	Key      string
	Client   string
	Row      int
	Checks   []CheckResult
	Total    string  // as displayed by the spreadsheet
	TotalNum float64 // Total as a number
	Title    string
	WhatsApp Link
	Email    Link
	Stale    bool // the diagnostic was still changing when read
	Warnings []string
}

// Passed reports whether every check passed.
func (r *SyncResult) Passed() bool {
	for _, c := range r.Checks {
		if !c.Pass {
			return false
		}
	}
	return true
}

// Recorder records sync attempts. It may be nil.
type Recorder interface {
	RecordSync(ctx context.Context, a Attempt) error
}

// Attempt describes one sync attempt for a Recorder.
type Attempt struct {
	Request  SyncRequest
	Client   string
	Squad    string
	Result   *SyncResult // nil on failure
	Err      error
	Started  time.Time
	Finished time.Time
}

// snapshot is the diagnostic and communication rows of one key.
type snapshot struct {
	diag     table.Record
	comm     table.Record
	hasComm  bool
	commWarn string
}

func (s snapshot) equal(o snapshot) bool {
	return maps.Equal(s.diag.Map(), o.diag.Map()) &&
		s.hasComm == o.hasComm &&
		maps.Equal(s.comm.Map(), o.comm.Map())
}

// Syncer runs syncs against a store.
type Syncer struct {
	store      sheets.Store
	cfg        *config.Config
	classifier Classifier
	links      *links.Builder
	settler    settle.Settler[snapshot]
	recorder   Recorder
	log        *log.Logger
	now        func() time.Time
}

// NewSyncer returns a Syncer for the store and configuration. recorder may be nil.
func NewSyncer(store sheets.Store, cfg *config.Config, recorder Recorder, logger *log.Logger) (*Syncer, error) {
	lb, err := links.NewBuilder(links.Templates{
		WhatsAppMessage: cfg.Links.WhatsAppMessage,
		EmailSubject:    cfg.Links.EmailSubject,
		EmailBody:       cfg.Links.EmailBody,
		BillingEmail:    cfg.Links.BillingEmail,
		CC:              cfg.Links.CC,
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	var settler settle.Settler[snapshot]
	switch cfg.Settle.Strategy {
	case config.SettlePoll:
		settler = settle.Poll[snapshot]{
			Initial:  cfg.Settle.Delay,
			Interval: cfg.Settle.Interval,
			MaxWait:  cfg.Settle.MaxWait,
			Equal:    snapshot.equal,
		}
	default:
		settler = settle.Fixed[snapshot]{Delay: cfg.Settle.Delay}
	}

	return &Syncer{
		store:      store,
		cfg:        cfg,
		classifier: Classifier{Policy: cfg.Diagnostic.Policy, Checks: cfg.Diagnostic.Checks},
		links:      lb,
		settler:    settler,
		recorder:   recorder,
		log:        logger,
		now:        time.Now,
	}, nil
}

// Sync writes the request's inputs into the client's row, fires the recompute
// triggers, waits for the spreadsheet to settle and returns the diagnostic.
func (s *Syncer) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	attempt := Attempt{Request: req, Started: s.now()}
	res, err := s.sync(ctx, req, &attempt)
	attempt.Result, attempt.Err, attempt.Finished = res, err, s.now()

	if s.recorder != nil {
		if rerr := s.recorder.RecordSync(ctx, attempt); rerr != nil {
			s.log.Warn("audit record failed", "key", req.Key, "err", rerr)
		}
	}
	if err != nil {
		s.log.Error("sync failed", "key", req.Key, "err", err)
		return nil, err
	}
	s.log.Info("sync complete", "key", req.Key, "client", res.Client, "passed", res.Passed(), "stale", res.Stale,
		"elapsed", attempt.Finished.Sub(attempt.Started).Round(time.Millisecond))
	return res, nil
}

func (s *Syncer) sync(ctx context.Context, req SyncRequest, attempt *Attempt) (*SyncResult, error) {
	if err := req.Validate(s.cfg.PaymentMethods); err != nil {
		return nil, err
	}

	ws, err := s.store.Worksheet(ctx, s.cfg.Worksheets.Input)
	if err != nil {
		return nil, err
	}
	grid, err := ws.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	row, err := locateIn(grid, s.cfg.Input.KeyColumnIdx, req.Key, ws.Name())
	if err != nil {
		return nil, err
	}
	if t, err := table.FromGrid(grid, s.cfg.Input.Header.Strategy()); err == nil {
		for _, r := range t.Records {
			if r.Row == row {
				attempt.Client = r.Get(s.cfg.Input.ClientHeader)
				attempt.Squad = r.Get(s.cfg.Input.SquadHeader)
			}
		}
	}

	s.log.Debug("writing inputs", "key", req.Key, "row", row)
	if err := WriteInputs(ctx, ws, s.cfg.Input.InputsColumnIdx, row, req); err != nil {
		return nil, err
	}
	if err := FireTriggers(ctx, s.store, s.cfg.Triggers); err != nil {
		return nil, err
	}

	res, err := s.diagnose(ctx, req.Key, true)
	if err != nil {
		markWritten(err)
		return nil, err
	}
	res.Row = row
	if res.Client == "" {
		res.Client = attempt.Client
	}
	res.Warnings = append(req.Warnings(s.cfg.Platforms.A, s.cfg.Platforms.B), res.Warnings...)
	return res, nil
}

// Diagnose reads the diagnostic for key without writing or waiting.
func (s *Syncer) Diagnose(ctx context.Context, key string) (*SyncResult, error) {
	return s.diagnose(ctx, key, false)
}

func (s *Syncer) diagnose(ctx context.Context, key string, settled bool) (*SyncResult, error) {
	var (
		snap  snapshot
		stale bool
		err   error
	)
	if settled {
		snap, stale, err = s.settler.Settle(ctx, func(ctx context.Context) (snapshot, error) {
			return s.read(ctx, key)
		})
	} else {
		snap, err = s.read(ctx, key)
	}
	if err != nil {
		return nil, err
	}

	d := s.cfg.Diagnostic
	res := &SyncResult{
		Key:    key,
		Checks: s.classifier.Classify(snap.diag),
		Stale:  stale,
	}
	res.Total, _ = Field(snap.diag, d.Total)
	res.TotalNum = values.ParseMoney(res.Total)
	res.Title, _ = Field(snap.diag, d.Title)
	res.Client = snap.diag.Get(s.cfg.Input.ClientHeader)
	if stale {
		res.Warnings = append(res.Warnings, "the spreadsheet was still recomputing when the diagnostic was read")
	}
	if snap.commWarn != "" {
		res.Warnings = append(res.Warnings, snap.commWarn)
	}
	if snap.hasComm {
		res.WhatsApp, res.Email = s.contactLinks(snap.comm, res.Client)
	}
	return res, nil
}

// read reads the diagnostic and communication rows for key. A key missing from the
// diagnostic worksheet is a NotFoundError; one missing from the communication
// worksheet only leaves the contact links unregistered.
func (s *Syncer) read(ctx context.Context, key string) (snapshot, error) {
	var snap snapshot

	diag, err := s.readTable(ctx, s.cfg.Worksheets.Output, s.cfg.Diagnostic.Header)
	if err != nil {
		return snap, err
	}
	snap.diag, err = findByKey(diag, []string{s.cfg.Diagnostic.KeyHeader}, key, s.cfg.Worksheets.Output)
	if err != nil {
		return snap, err
	}

	comm, err := s.readTable(ctx, s.cfg.Worksheets.Communication, s.cfg.Communication.Header)
	if err != nil {
		return snap, err
	}
	snap.comm, err = findByKey(comm, s.cfg.Communication.KeyHeaders, key, s.cfg.Worksheets.Communication)
	var nf *NotFoundError
	switch {
	case errors.As(err, &nf):
		snap.commWarn = fmt.Sprintf("no contact row for key %q", key)
	case err != nil:
		return snap, err
	default:
		snap.hasComm = true
	}
	return snap, nil
}

func (s *Syncer) readTable(ctx context.Context, worksheet string, h config.HeaderConfig) (*table.Table, error) {
	ws, err := s.store.Worksheet(ctx, worksheet)
	if err != nil {
		return nil, err
	}
	grid, err := ws.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	t, err := table.FromGrid(grid, h.Strategy())
	if err != nil {
		return nil, &SchemaError{Worksheet: worksheet, Err: err}
	}
	return t, nil
}

// findByKey returns the single record whose key, under the first of keyHeaders
// present in t, matches key after normalization.
func findByKey(t *table.Table, keyHeaders []string, key, worksheet string) (table.Record, error) {
	header := ""
	for _, h := range keyHeaders {
		if t.HasColumn(h) {
			header = h
			break
		}
	}
	if header == "" {
		return table.Record{}, &SchemaError{Worksheet: worksheet, Err: fmt.Errorf("no key column %v", keyHeaders)}
	}
	matches := t.Filter(func(r table.Record) bool {
		return values.SameKey(r.Get(header), key)
	})
	switch len(matches) {
	case 0:
		return table.Record{}, &NotFoundError{Key: key, Worksheet: worksheet}
	case 1:
		return matches[0], nil
	default:
		rows := make([]int, len(matches))
		for i, m := range matches {
			rows[i] = m.Row
		}
		return table.Record{}, &AmbiguousKeyError{Key: key, Worksheet: worksheet, Rows: rows}
	}
}

// contactLinks prefers links precomputed by the spreadsheet and builds them from the
// contact fields otherwise.
func (s *Syncer) contactLinks(rec table.Record, client string) (Link, Link) {
	c := s.cfg.Communication
	name, _ := Field(rec, c.Name)

	var wa, em Link
	if v, _ := Field(rec, c.WhatsAppLink); links.IsLink(v) {
		wa = Link{URL: v, Registered: true}
	} else {
		phone, _ := Field(rec, c.Phone)
		if u, err := s.links.WhatsApp(phone, name); err == nil {
			wa = Link{URL: u, Registered: true}
		} else if !errors.Is(err, links.ErrNotRegistered) {
			s.log.Warn("whatsapp link", "err", err)
		}
	}

	if v, _ := Field(rec, c.EmailLink); links.IsLink(v) {
		em = Link{URL: v, Registered: true}
	} else {
		addr, _ := Field(rec, c.Email)
		if u, err := s.links.Email(addr, name, client, s.now()); err == nil {
			em = Link{URL: u, Registered: true}
		} else if !errors.Is(err, links.ErrNotRegistered) {
			s.log.Warn("email link", "err", err)
		}
	}
	return wa, em
}

// Squads returns the distinct squads of the input worksheet, sorted, excluding
// empty and "-" entries.
func (s *Syncer) Squads(ctx context.Context) ([]string, error) {
	clients, err := s.roster(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, c := range clients {
		if c.Squad == "" || c.Squad == "-" {
			continue
		}
		seen[c.Squad] = true
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Clients returns the clients of a squad, all squads when squad is empty, whose
// status is allowed for operator action.
func (s *Syncer) Clients(ctx context.Context, squad string) ([]Client, error) {
	clients, err := s.roster(ctx)
	if err != nil {
		return nil, err
	}
	var out []Client
	for _, c := range clients {
		if squad != "" && c.Squad != squad {
			continue
		}
		if !s.cfg.AllowedStatus(c.Status) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Client returns the client with the raw key.
func (s *Syncer) Client(ctx context.Context, key string) (*Client, error) {
	clients, err := s.roster(ctx)
	if err != nil {
		return nil, err
	}
	var found []Client
	for _, c := range clients {
		if c.Key == key {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return nil, &NotFoundError{Key: key, Worksheet: s.cfg.Worksheets.Input}
	case 1:
		return &found[0], nil
	default:
		rows := make([]int, len(found))
		for i, c := range found {
			rows[i] = c.Row
		}
		return nil, &AmbiguousKeyError{Key: key, Worksheet: s.cfg.Worksheets.Input, Rows: rows}
	}
}

// roster reads the input worksheet, dropping rows without a client name.
func (s *Syncer) roster(ctx context.Context) ([]Client, error) {
	in := s.cfg.Input
	t, err := s.readTable(ctx, s.cfg.Worksheets.Input, in.Header)
	if err != nil {
		return nil, err
	}
	recs := t.Filter(func(r table.Record) bool {
		return r.Get(in.ClientHeader) != ""
	})
	clients := make([]Client, 0, len(recs))
	for _, r := range recs {
		c := Client{
			Key:    r.At(in.KeyColumnIdx),
			Name:   r.Get(in.ClientHeader),
			Squad:  r.Get(in.SquadHeader),
			Status: strings.ToUpper(r.Get(in.StatusHeader)),
			Row:    r.Row,
		}
		i := in.InputsColumnIdx
		c.PlatformA = PlatformInput{Method: r.At(i), Credit: r.At(i + 1), Date: r.At(i + 2), Spend: r.At(i + 3)}
		c.PlatformB = PlatformInput{Method: r.At(i + 4), Credit: r.At(i + 5), Date: r.At(i + 6), Spend: r.At(i + 7)}
		clients = append(clients, c)
	}
	return clients, nil
}
