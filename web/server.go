package web

// This file describes the web server for this project.
//
// Modules called by this server provide self-describing errors. Store and lookup
// errors are mapped to a status and an error page by storeError; anything else is
// sent to the internal server error func:
//
//	web.ServerError(w, r, err)
//
// Each endpoint handler is set out as a HandlerFunc, which allows the router to
// provide arguments to the handler and lets each endpoint parse only the templates it
// needs, so that template errors are caught per endpoint.
//
// Helper functions, such as `ServerError` and `clientError` are at the end of the file.

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"boletos/billing"
	"boletos/config"
	"boletos/db"
	"boletos/sheets"
)

// pageLen is the number of items to show in a page listing.
const pageLen = 15

// Session keys.
const (
	sessionSquad = "squad"
	sessionFlash = "flash"
)

// Syncer is the billing functionality used by the web server, provided by
// *billing.Syncer.
type Syncer interface {
	Squads(ctx context.Context) ([]string, error)
	Clients(ctx context.Context, squad string) ([]billing.Client, error)
	Client(ctx context.Context, key string) (*billing.Client, error)
	Sync(ctx context.Context, req billing.SyncRequest) (*billing.SyncResult, error)
	Diagnose(ctx context.Context, key string) (*billing.SyncResult, error)
}

// AuditLog lists recorded sync attempts, provided by *db.DB.
type AuditLog interface {
	SyncsGet(ctx context.Context, search string, limit, offset int) ([]db.Sync, error)
}

// WebApp is the configuration object for the web server.
type WebApp struct {
	log        *log.Logger
	cfg        *config.Config
	syncer     Syncer
	audit      AuditLog // nil when the audit log is disabled
	sessions   *scs.SessionManager
	staticFS   fs.FS // the fs holding the static web resources.
	templateFS fs.FS // the fs holding the web templates.
	handler    atomic.Pointer[http.Handler]
	server     *http.Server
}

// New initialises a WebApp. A nil audit disables the /history page.
func New(
	logger *log.Logger,
	cfg *config.Config,
	syncer Syncer,
	audit AuditLog,
	staticFS fs.FS,
	templateFS fs.FS,
) (*WebApp, error) {
	if syncer == nil {
		return nil, errors.New("nil syncer provided to web.New")
	}

	server := &http.Server{
		Addr:              cfg.Web.ListenAddress,
		ReadHeaderTimeout: 30 * time.Second,
		// The sync endpoint waits for the spreadsheet to settle.
		WriteTimeout:   30*time.Second + cfg.Settle.Delay + cfg.Settle.MaxWait,
		MaxHeaderBytes: 1 << 19,
		ErrorLog:       logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}),
	}

	sessions := scs.New()
	sessions.Lifetime = cfg.Web.SessionLifetime
	sessions.Cookie.SameSite = http.SameSiteLaxMode

	webApp := &WebApp{
		log:        logger,
		cfg:        cfg,
		syncer:     syncer,
		audit:      audit,
		sessions:   sessions,
		staticFS:   staticFS,
		templateFS: templateFS,
		server:     server,
	}
	if err := webApp.reload(); err != nil {
		return nil, err
	}
	return webApp, nil
}

// reload parses the templates and swaps in a new router.
func (web *WebApp) reload() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("template error: %v", r)
		}
	}()
	h := web.routes()
	web.handler.Store(&h)
	return nil
}

// Handler returns the server's http.Handler.
func (web *WebApp) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		(*web.handler.Load()).ServeHTTP(w, r)
	})
}

// StartServer starts a WebApp, returning when the context is cancelled or the
// server fails. In development mode, templates are re-parsed when a template file
// on disk is written.
func (web *WebApp) StartServer(ctx context.Context) error {
	web.server.Handler = web.Handler()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		web.log.Info("starting server", "address", web.cfg.Web.ListenAddress)
		err := web.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return web.server.Shutdown(shutdownCtx)
	})

	if dir, ok := web.templateWatchDir(); ok {
		fcn, err := NewFileChangeNotifier([]DirFilesDescriptor{
			{Dir: dir, FileSuffixes: []string{"html"}},
		})
		if err != nil {
			return fmt.Errorf("template watcher error: %w", err)
		}
		g.Go(func() error {
			err := fcn.Watch(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			for range fcn.Update() {
				if err := web.reload(); err != nil {
					web.log.Error("template reload failed", "err", err)
					continue
				}
				web.log.Info("templates reloaded")
			}
			return nil
		})
	}

	return g.Wait()
}

// templateWatchDir returns the directory to watch for template changes in
// development mode. The embedded templates cannot change, so development mode
// without web.templates_path reloads nothing.
func (web *WebApp) templateWatchDir() (string, bool) {
	if !web.cfg.Web.DevelopmentMode {
		return "", false
	}
	if web.cfg.Web.TemplatesPath == "" {
		web.log.Warn("development mode: templates are embedded and will not reload; set web.templates_path to edit them on disk")
		return "", false
	}
	return web.cfg.Web.TemplatesPath, true
}

// routes connects all of the endpoints and provides middleware.
func (web *WebApp) routes() http.Handler {

	r := mux.NewRouter()

	static := http.FileServerFS(web.staticFS)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", static))

	r.Handle("/", web.handleRoot()) // redirect to /clients

	r.Handle("/clients", web.handleClients()).Methods("GET")
	r.Handle("/client/{key}", web.handleClient()).Methods("GET")
	r.Handle("/client/{key}/sync", web.handleSync()).Methods("POST")
	r.Handle("/client/{key}/check", web.handleCheck()).Methods("GET")
	r.Handle("/history", web.handleHistory()).Methods("GET")

	errPage := template.Must(parseTemplates(web.templateFS, "error.html"))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.errorPage(w, r, errPage, http.StatusNotFound, "Page not found", "")
	})

	stdLog := web.log.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel})
	errLog := web.log.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})

	var h http.Handler = r
	h = enforceCSRF(web.log, h)
	h = web.sessions.LoadAndSave(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(errLog), handlers.PrintRecoveryStack(true))(h)
	h = handlers.LoggingHandler(stdLog.Writer(), h)
	return h
}

// handleRoot deals with http calls to "/" by redirecting to "/clients".
func (web *WebApp) handleRoot() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/clients", http.StatusFound)
	})
}

// handleClients serves the /clients selector, listing the clients of a squad. The
// selected squad is kept in the session.
func (web *WebApp) handleClients() http.Handler {

	name := "clients.html"
	templates := template.Must(parseTemplates(web.templateFS, name))
	errPage := template.Must(parseTemplates(web.templateFS, "error.html"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		form := &ClientsForm{}
		if err := DecodeURLParams(r, form); err != nil {
			web.clientError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !r.URL.Query().Has("squad") {
			form.Squad = web.sessions.GetString(ctx, sessionSquad)
		}

		squads, err := web.syncer.Squads(ctx)
		if err != nil {
			web.storeError(w, r, errPage, err)
			return
		}

		validator := NewValidator()
		form.Validate(validator, squads)

		data := struct {
			PageTitle   string
			Squads      []string
			Clients     []billing.Client
			Form        *ClientsForm
			Validator   *Validator
			Flash       string
			CurrentPage string
		}{
			PageTitle:   "Clients",
			Squads:      squads,
			Form:        form,
			Validator:   validator,
			Flash:       web.sessions.PopString(ctx, sessionFlash),
			CurrentPage: "clients",
		}

		if !validator.Valid() {
			web.sessions.Remove(ctx, sessionSquad)
			web.render(w, r, templates, name, data)
			return
		}
		web.sessions.Put(ctx, sessionSquad, form.Squad)

		data.Clients, err = web.syncer.Clients(ctx, form.Squad)
		if err != nil {
			web.storeError(w, r, errPage, err)
			return
		}
		web.render(w, r, templates, name, data)
	})
}

// clientPage is the template data for the input form of a client.
type clientPage struct {
	PageTitle   string
	Client      *billing.Client
	Form        *SyncForm
	Validator   *Validator
	Methods     []string
	PlatformA   string
	PlatformB   string
	CurrentPage string
}

func (web *WebApp) newClientPage(c *billing.Client, form *SyncForm, v *Validator) clientPage {
	return clientPage{
		PageTitle:   c.Name,
		Client:      c,
		Form:        form,
		Validator:   v,
		Methods:     web.cfg.PaymentMethods,
		PlatformA:   web.cfg.Platforms.A,
		PlatformB:   web.cfg.Platforms.B,
		CurrentPage: "clients",
	}
}

// handleClient serves the /client/{key} input form, filled with the values
// currently in the spreadsheet.
func (web *WebApp) handleClient() http.Handler {

	name := "client.html"
	templates := template.Must(parseTemplates(web.templateFS, name))
	errPage := template.Must(parseTemplates(web.templateFS, "error.html"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		vars, err := validMuxVars(mux.Vars(r), "key")
		if err != nil {
			web.clientError(w, err.Error(), http.StatusBadRequest)
			return
		}

		client, err := web.syncer.Client(r.Context(), vars["key"])
		if err != nil {
			web.storeError(w, r, errPage, err)
			return
		}

		web.render(w, r, templates, name, web.newClientPage(client, NewSyncForm(client), NewValidator()))
	})
}

// resultPage is the template data for a sync or check result.
type resultPage struct {
	PageTitle   string
	Result      *viewResult
	Synced      bool // false for a read-only check
	PlatformA   string
	PlatformB   string
	CurrentPage string
}

// handleSync serves POST /client/{key}/sync. The inputs are written to the
// spreadsheet and the recomputed diagnostic is shown.
func (web *WebApp) handleSync() http.Handler {

	name := "result.html"
	templates := template.Must(parseTemplates(web.templateFS, name))
	formTemplates := template.Must(parseTemplates(web.templateFS, "client.html"))
	errPage := template.Must(parseTemplates(web.templateFS, "error.html"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := r.ParseForm(); err != nil {
			web.clientError(w, "invalid form data", http.StatusBadRequest)
			return
		}
		vars, err := validMuxVars(mux.Vars(r), "key")
		if err != nil {
			web.clientError(w, err.Error(), http.StatusBadRequest)
			return
		}
		form, err := CheckSyncForm(r.PostForm, vars)
		if err != nil {
			web.clientError(w, err.Error(), http.StatusBadRequest)
			return
		}

		validator := NewValidator()
		form.Validate(validator, web.cfg.PaymentMethods)
		if !validator.Valid() {
			client, err := web.syncer.Client(ctx, form.Key)
			if err != nil {
				web.storeError(w, r, errPage, err)
				return
			}
			web.renderStatus(w, r, formTemplates, "client.html", web.newClientPage(client, form, validator), http.StatusUnprocessableEntity)
			return
		}

		result, err := web.syncer.Sync(ctx, form.Request())
		if err != nil {
			web.storeError(w, r, errPage, err)
			return
		}
		web.sessions.Put(ctx, sessionFlash, fmt.Sprintf("Last sync: %s (%s).", result.Client, result.Key))

		web.render(w, r, templates, name, resultPage{
			PageTitle:   result.Client,
			Result:      newViewResult(result),
			Synced:      true,
			PlatformA:   web.cfg.Platforms.A,
			PlatformB:   web.cfg.Platforms.B,
			CurrentPage: "clients",
		})
	})
}

// handleCheck serves /client/{key}/check, showing the diagnostic without writing
// to the spreadsheet.
func (web *WebApp) handleCheck() http.Handler {

	name := "result.html"
	templates := template.Must(parseTemplates(web.templateFS, name))
	errPage := template.Must(parseTemplates(web.templateFS, "error.html"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		vars, err := validMuxVars(mux.Vars(r), "key")
		if err != nil {
			web.clientError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := web.syncer.Diagnose(r.Context(), vars["key"])
		if err != nil {
			web.storeError(w, r, errPage, err)
			return
		}

		web.render(w, r, templates, name, resultPage{
			PageTitle:   result.Client,
			Result:      newViewResult(result),
			PlatformA:   web.cfg.Platforms.A,
			PlatformB:   web.cfg.Platforms.B,
			CurrentPage: "clients",
		})
	})
}

// handleHistory serves the /history listing of recorded sync attempts.
func (web *WebApp) handleHistory() http.Handler {

	name := "history.html"
	templates := template.Must(parseTemplates(web.templateFS, name))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		if web.audit == nil {
			web.notFound(w, r, "the audit log is not enabled")
			return
		}

		form := NewHistoryForm()
		if err := DecodeURLParams(r, form); err != nil {
			web.clientError(w, err.Error(), http.StatusBadRequest)
			return
		}

		validator := NewValidator()
		form.Validate(validator)

		pagination, _ := NewPagination(pageLen, 0, 1, r.URL.Query())

		data := struct {
			PageTitle   string
			Syncs       []viewSync
			Form        *HistoryForm
			Validator   *Validator
			Pagination  *Pagination
			CurrentPage string
		}{
			PageTitle:   "History",
			Form:        form,
			Validator:   validator,
			Pagination:  pagination,
			CurrentPage: "history",
		}

		if !validator.Valid() {
			web.render(w, r, templates, name, data)
			return
		}

		syncs, err := web.audit.SyncsGet(r.Context(), form.SearchString, pageLen, form.Offset())
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			web.ServerError(w, r, err)
			return
		}
		data.Syncs = newViewSyncs(syncs, time.Now())

		// Each row carries the row count of the search.
		total := 0
		if len(syncs) > 0 {
			total = syncs[0].RowCount
		}
		data.Pagination, err = NewPagination(pageLen, total, form.Page, r.URL.Query())
		if err != nil {
			web.notFound(w, r, err.Error())
			return
		}

		web.render(w, r, templates, name, data)
	})
}

/* -------------------------------------------------------------------------- */
// Helpers
/* -------------------------------------------------------------------------- */

// parseTemplates parses a page template with the base template it extends.
func parseTemplates(fsys fs.FS, page string) (*template.Template, error) {
	return template.ParseFS(fsys, "base.html", page)
}

// render renders the specified template.
func (web *WebApp) render(w http.ResponseWriter, r *http.Request, template *template.Template, filename string, data any) {
	web.renderStatus(w, r, template, filename, data, http.StatusOK)
}

// renderStatus renders the specified template with a status code.
func (web *WebApp) renderStatus(w http.ResponseWriter, r *http.Request, template *template.Template, filename string, data any, status int) {
	buf := new(bytes.Buffer)
	err := template.ExecuteTemplate(buf, filename, data)
	if err != nil {
		web.log.Error("template rendering error", "template", filename, "err", err)
		web.ServerError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// errorPage renders an error page.
func (web *WebApp) errorPage(w http.ResponseWriter, r *http.Request, tpl *template.Template, status int, title, message string) {
	data := struct {
		PageTitle   string
		Status      int
		Message     string
		CurrentPage string
	}{
		PageTitle: title,
		Status:    status,
		Message:   message,
	}
	web.renderStatus(w, r, tpl, "error.html", data, status)
}

// inputsWritten is appended to error messages raised after a sync wrote its inputs.
const inputsWritten = " The inputs were written to the spreadsheet before the error."

// storeError maps the errors of a Syncer to an error page. An unreachable
// spreadsheet is reported to the operator without taking the process down.
func (web *WebApp) storeError(w http.ResponseWriter, r *http.Request, tpl *template.Template, err error) {
	var (
		notFound  *billing.NotFoundError
		ambiguous *billing.AmbiguousKeyError
		input     *billing.InputError
		schema    *billing.SchemaError
	)
	switch {
	case errors.As(err, &notFound):
		msg := fmt.Sprintf("No row with key %q was found in the %q worksheet.", notFound.Key, notFound.Worksheet)
		if notFound.Written {
			msg += inputsWritten
		}
		web.errorPage(w, r, tpl, http.StatusNotFound, "Client not found", msg)
	case errors.As(err, &schema):
		web.log.Error("worksheet layout mismatch", "worksheet", schema.Worksheet, "uri", r.URL.RequestURI(), "err", schema.Err)
		msg := fmt.Sprintf("The %q worksheet does not match the configured layout: %v.", schema.Worksheet, schema.Err)
		if schema.Written {
			msg += inputsWritten
		}
		web.errorPage(w, r, tpl, http.StatusBadGateway, "Spreadsheet layout mismatch", msg)
	case errors.As(err, &ambiguous):
		web.errorPage(w, r, tpl, http.StatusConflict, "Duplicate key", err.Error())
	case errors.As(err, &input):
		web.errorPage(w, r, tpl, http.StatusBadRequest, "Invalid input", err.Error())
	case sheets.IsConnectionError(err):
		web.log.Error("spreadsheet error", "method", r.Method, "uri", r.URL.RequestURI(), "err", err)
		web.errorPage(w, r, tpl, http.StatusBadGateway, "Spreadsheet unavailable", err.Error())
	default:
		web.ServerError(w, r, err)
	}
}

// ServerError logs and return an internal server error. The error should contain the
// information needed for logging.
func (web *WebApp) ServerError(w http.ResponseWriter, r *http.Request, errs ...error) {
	err := errors.Join(errs...)
	web.log.Error(err, "method", r.Method, "uri", r.URL.RequestURI())
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// clientError returns a client error.
func (web *WebApp) clientError(w http.ResponseWriter, message string, status int) {
	if message == "" {
		message = http.StatusText(status)
	}
	http.Error(w, message, status)
}

// notfound raises a 404 clientError.
func (web *WebApp) notFound(w http.ResponseWriter, r *http.Request, message string) {
	web.clientError(w, message, http.StatusNotFound)
}
