package db

// audit.go records sync attempts and lists them for the history page.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"boletos/billing"
	"boletos/sheets"
)

// Outcomes of a sync attempt.
const (
	OutcomePassed     = "passed"
	OutcomeFailed     = "checks_failed"
	OutcomeNotFound   = "not_found"
	OutcomeAmbiguous  = "ambiguous"
	OutcomeConnection = "connection_error"
	OutcomeInvalid    = "invalid_input"
	OutcomeError      = "error"
)

// timeFormat sorts lexically in UTC.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Sync is the concrete type of each row returned by SyncsGet.
type Sync struct {
	ID           string `db:"id"`
	Key          string `db:"sync_key"`
	Client       string `db:"client"`
	Squad        string `db:"squad"`
	Inputs       string `db:"inputs"`
	Outcome      string `db:"outcome"`
	ChecksPassed int    `db:"checks_passed"`
	ChecksTotal  int    `db:"checks_total"`
	Total        string `db:"total"`
	Stale        bool   `db:"stale"`
	Error        string `db:"error"`
	StartedAt    string `db:"started_at"`
	FinishedAt   string `db:"finished_at"`
	RowCount     int    `db:"row_count"`
}

// Started returns the start time of the attempt.
func (s Sync) Started() time.Time {
	t, _ := time.Parse(timeFormat, s.StartedAt)
	return t
}

// Duration returns the time the attempt took.
func (s Sync) Duration() time.Duration {
	f, _ := time.Parse(timeFormat, s.FinishedAt)
	return f.Sub(s.Started())
}

// Succeeded reports whether the inputs were written and the diagnostic read.
func (s Sync) Succeeded() bool {
	return s.Outcome == OutcomePassed || s.Outcome == OutcomeFailed
}

// inputs is the json form of the inputs of an attempt.
type inputs struct {
	PlatformA platformInputs `json:"platform_a"`
	PlatformB platformInputs `json:"platform_b"`
}

type platformInputs struct {
	Method string `json:"method"`
	Credit string `json:"credit"`
	Date   string `json:"date"`
	Spend  string `json:"spend"`
}

func toPlatformInputs(p billing.PlatformInput) platformInputs {
	return platformInputs{Method: p.Method, Credit: p.Credit, Date: p.Date, Spend: p.Spend}
}

// outcome classifies an attempt.
func outcome(a billing.Attempt) string {
	var ie *billing.InputError
	switch {
	case a.Err == nil && a.Result != nil && a.Result.Passed():
		return OutcomePassed
	case a.Err == nil && a.Result != nil:
		return OutcomeFailed
	case billing.IsNotFound(a.Err):
		return OutcomeNotFound
	case billing.IsAmbiguous(a.Err):
		return OutcomeAmbiguous
	case sheets.IsConnectionError(a.Err):
		return OutcomeConnection
	case errors.As(a.Err, &ie):
		return OutcomeInvalid
	}
	return OutcomeError
}

// RecordSync inserts a sync attempt. It implements billing.Recorder.
func (db *DB) RecordSync(ctx context.Context, a billing.Attempt) error {

	in, err := json.Marshal(inputs{
		PlatformA: toPlatformInputs(a.Request.PlatformA),
		PlatformB: toPlatformInputs(a.Request.PlatformB),
	})
	if err != nil {
		return fmt.Errorf("sync inputs encoding error: %w", err)
	}

	namedArgs := map[string]any{
		"ID":           uuid.NewString(),
		"SyncKey":      a.Request.Key,
		"Client":       a.Client,
		"Squad":        a.Squad,
		"Inputs":       string(in),
		"Outcome":      outcome(a),
		"ChecksPassed": 0,
		"ChecksTotal":  0,
		"Total":        "",
		"Stale":        false,
		"Error":        "",
		"StartedAt":    a.Started.UTC().Format(timeFormat),
		"FinishedAt":   a.Finished.UTC().Format(timeFormat),
	}
	if r := a.Result; r != nil {
		passed := 0
		for _, c := range r.Checks {
			if c.Pass {
				passed++
			}
		}
		namedArgs["ChecksPassed"] = passed
		namedArgs["ChecksTotal"] = len(r.Checks)
		namedArgs["Total"] = r.Total
		namedArgs["Stale"] = r.Stale
		if r.Client != "" {
			namedArgs["Client"] = r.Client
		}
	}
	if a.Err != nil {
		namedArgs["Error"] = a.Err.Error()
	}

	stmt := db.syncInsertStmt
	if err := stmt.verifyArgs(namedArgs); err != nil {
		return fmt.Errorf("sync insert verify arguments error: %w", err)
	}
	_, err = stmt.ExecContext(ctx, namedArgs)
	if err != nil {
		db.logQuery("sync insert", stmt, namedArgs, err)
		return fmt.Errorf("failed to insert sync for key %q: %w", a.Request.Key, err)
	}
	return nil
}

// SyncsGet lists sync attempts, most recent first. A non-empty search restricts the
// list to attempts whose key, client or squad contains it, ignoring case. It returns
// sql.ErrNoRows when nothing matches.
func (db *DB) SyncsGet(ctx context.Context, search string, limit, offset int) ([]Sync, error) {

	stmt := db.syncsGetStmt

	pattern := ""
	if s := strings.TrimSpace(search); s != "" {
		pattern = "(?i)" + regexp.QuoteMeta(s)
	}
	namedArgs := map[string]any{
		"TextSearch": pattern,
		"HereLimit":  limit,
		"HereOffset": offset,
	}
	if err := stmt.verifyArgs(namedArgs); err != nil {
		return nil, fmt.Errorf("syncs verify args error: %w", err)
	}

	var syncs []Sync
	err := stmt.SelectContext(ctx, &syncs, namedArgs)
	db.logQuery("syncs", stmt, namedArgs, err)
	if err != nil {
		db.logger.Warn("syncs select error", "err", err)
		return nil, fmt.Errorf("syncs select error: %w", err)
	}

	if len(syncs) == 0 {
		return nil, sql.ErrNoRows
	}
	return syncs, nil
}
