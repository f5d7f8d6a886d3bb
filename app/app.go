// Package app is the central orchestrator of the command line and web server. It
// loads configuration, opens the spreadsheet store and the audit log, and wires them
// to the billing syncer.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"boletos/billing"
	"boletos/config"
	"boletos/db"
	"boletos/internal/mounts"
	"boletos/sheets"
	"boletos/sheets/gsheets"
	"boletos/sheets/xlsx"
	"boletos/web"
)

// ErrChecksFailed is returned by Sync and Check when one or more diagnostic checks
// failed, so that scripts can tell a failed diagnostic from a clean run.
var ErrChecksFailed = errors.New("diagnostic checks failed")

// App is the central orchestrator for the application's business logic.
type App struct {
	logger *log.Logger
	out    io.Writer
	debug  bool
}

// New creates an App logging to logger and printing results to out.
func New(logger *log.Logger, out io.Writer) *App {
	if out == nil {
		out = os.Stdout
	}
	return &App{logger: logger, out: out}
}

// SetDebug forces debug logging regardless of the configured log level.
func (a *App) SetDebug(debug bool) {
	a.debug = debug
	if debug {
		a.logger.SetLevel(log.DebugLevel)
	}
}

// session holds the resources opened for one command.
type session struct {
	cfg     *config.Config
	audit   *db.DB // nil when the audit log is disabled
	syncer  *billing.Syncer
	closers []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// open loads the configuration and opens the store and audit log. A store that
// cannot be reached is fatal for the command.
func (a *App) open(ctx context.Context, cfgPath string) (*session, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if !a.debug {
		a.logger.SetLevel(cfg.Level)
	}

	s := &session{cfg: cfg}

	var store sheets.Store
	switch cfg.Store.Backend {
	case config.BackendSheets:
		client, err := gsheets.NewClient(ctx, cfg.Store.SpreadsheetID, gsheets.Credentials{
			JSON: []byte(cfg.Store.CredentialsJSON),
			File: cfg.Store.CredentialsFile,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		store = client
	case config.BackendXLSX:
		wb, err := xlsx.Open(cfg.Store.XLSXPath, a.logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, wb.Close)
		store = wb
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	a.logger.Debug("store opened", "backend", cfg.Store.Backend)

	var recorder billing.Recorder
	if cfg.Audit.DatabasePath != "" {
		s.audit, err = db.NewConnection(cfg.Audit.DatabasePath, db.SQLFS, a.logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		s.closers = append(s.closers, s.audit.Close)
		recorder = s.audit
	}

	s.syncer, err = billing.NewSyncer(store, cfg, recorder, a.logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Serve runs the web server until ctx is cancelled.
func (a *App) Serve(ctx context.Context, cfgPath string, development bool) error {
	s, err := a.open(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if development {
		s.cfg.Web.DevelopmentMode = true
	}
	staticFS, templatesFS, err := web.Mounts(s.cfg.Web.StaticPath, s.cfg.Web.TemplatesPath)
	if err != nil {
		return err
	}

	var auditLog web.AuditLog
	if s.audit != nil {
		auditLog = s.audit
	}
	webApp, err := web.New(a.logger, s.cfg, s.syncer, auditLog, staticFS, templatesFS)
	if err != nil {
		return err
	}
	return webApp.StartServer(ctx)
}

// Sync writes the inputs of a client, waits for the spreadsheet to settle and
// prints the diagnostic.
func (a *App) Sync(ctx context.Context, cfgPath string, req billing.SyncRequest) error {
	s, err := a.open(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.syncer.Sync(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, renderResult(res, true))
	if !res.Passed() {
		return ErrChecksFailed
	}
	return nil
}

// Check prints the diagnostic of a client without writing to the spreadsheet.
func (a *App) Check(ctx context.Context, cfgPath, key string) error {
	s, err := a.open(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.syncer.Diagnose(ctx, key)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, renderResult(res, false))
	if !res.Passed() {
		return ErrChecksFailed
	}
	return nil
}

// Clients lists the squads and the clients of squad, or of all squads when squad
// is empty.
func (a *App) Clients(ctx context.Context, cfgPath, squad string) error {
	s, err := a.open(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer s.Close()

	squads, err := s.syncer.Squads(ctx)
	if err != nil {
		return err
	}
	clients, err := s.syncer.Clients(ctx, squad)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, renderClients(squads, clients))
	return nil
}

// History prints the most recent sync attempts matching search.
func (a *App) History(ctx context.Context, cfgPath, search string, limit int) error {
	s, err := a.open(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.audit == nil {
		return errors.New("the audit log is disabled (set audit.database_path)")
	}
	syncs, err := s.audit.SyncsGet(ctx, search, limit, 0)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	fmt.Fprint(a.out, renderHistory(syncs))
	return nil
}

// Templates writes the embedded templates and static files to dir for editing. The
// web.templates_path and web.static_path settings then serve the edited copies.
func (a *App) Templates(dir string) error {
	staticFS, templatesFS, err := web.Mounts("", "")
	if err != nil {
		return err
	}
	for _, m := range []*mounts.FileMount{templatesFS, staticFS} {
		if err := m.Materialize(dir); err != nil {
			return err
		}
	}
	a.logger.Info("templates written", "dir", dir)
	return nil
}
