// Package db provides the audit log of the billing tool: a local record of every
// attempt to sync an operator's inputs to the billing spreadsheet.
//
// The database backend is sqlite, which keeps the tool a single binary with a single
// local file. Each query is held in an sql file in the embedded `sql` directory, and
// each file can be run as-is on the sqlite command line.
//
// The use of external, runnable sql files also as Go prepared statements is made
// possible through the parameterization scheme set out in parameterize.go.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx" // helper library
	_ "modernc.org/sqlite"    // pure go sqlite driver
)

//go:embed sql/*.sql
var embeddedSQL embed.FS

// SQLFS is the embedded sql directory.
var SQLFS fs.FS = func() fs.FS {
	f, err := fs.Sub(embeddedSQL, "sql")
	if err != nil {
		panic(err)
	}
	return f
}()

// schemaFile is the idempotent schema, run by InitSchema.
const schemaFile = "schema.sql"

// parameterizedStmt describes an sql file parsed into an sqlx NamedStmt expecting the
// provided args.
type parameterizedStmt struct {
	sqlFile string
	args    []string
	*sqlx.NamedStmt
}

// verifyArgs determines if the arguments provided to a parameterizedStmt are those
// the sql file declares.
func (p *parameterizedStmt) verifyArgs(args map[string]any) error {
	if got, want := len(args), len(p.args); got != want {
		return fmt.Errorf(
			"argument length to named statement from %q incorrect: got %d want %d",
			p.sqlFile,
			got,
			want,
		)
	}
	for _, a := range p.args {
		if _, ok := args[a]; !ok {
			return fmt.Errorf("named statement from %q missing argument %q", p.sqlFile, a)
		}
	}
	return nil
}

// DB provides a wrapper around the sqlx connection for audit operations.
type DB struct {
	*sqlx.DB
	sqlFS  fs.FS
	logger *log.Logger

	// Prepared statements.
	syncInsertStmt *parameterizedStmt
	syncsGetStmt   *parameterizedStmt
}

// NewConnection opens the sqlite database at dbPath, creates the schema if needed
// and prepares the statements held in sqlDir. In-memory databases must use a shared
// cache, for example "file::memory:?cache=shared".
func NewConnection(dbPath string, sqlDir fs.FS, logger *log.Logger) (*DB, error) {

	// dataSource is the default setting for file-based databases.
	dataSource := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	// for in-memory test databases, check the necessary cached setting is used.
	if strings.Contains(dbPath, ":memory:") {
		if !strings.Contains(dbPath, "cache=shared") {
			return nil, fmt.Errorf("in-memory connection %q should contain '?cache=shared'", dbPath)
		}
		dataSource = dbPath
	}
	dbDB, err := sql.Open("sqlite", dataSource)
	if err != nil {
		return nil, err
	}

	// RegisterFunctions registers the custom REGEXP function used by searches. It is
	// a singleton using sync.Once.
	RegisterFunctions()

	if err := dbDB.Ping(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}
	db := &DB{
		DB:     sqlx.NewDb(dbDB, "sqlite"),
		sqlFS:  sqlDir,
		logger: logger.WithPrefix("db"),
	}

	if err := db.InitSchema(sqlDir, schemaFile); err != nil {
		return nil, err
	}
	if err := db.prepareNamedStatements(); err != nil {
		return nil, fmt.Errorf("could not prepare named statements: %w", err)
	}
	return db, nil
}

// prepareNamedStatements prepares all the named statements for this database connection.
func (db *DB) prepareNamedStatements() error {
	var err error

	db.syncInsertStmt, err = db.prepNamedStatement(db.sqlFS, "sync_insert.sql")
	if err != nil {
		return fmt.Errorf("sync insert statement error: %w", err)
	}
	db.syncsGetStmt, err = db.prepNamedStatement(db.sqlFS, "syncs.sql")
	if err != nil {
		return fmt.Errorf("get syncs statement error: %w", err)
	}
	return nil
}

// prepNamedStatement prepares the SQL query held in filePath.
func (db *DB) prepNamedStatement(fileFS fs.FS, filePath string) (*parameterizedStmt, error) {
	query, err := ParameterizeFile(fileFS, filePath)
	if err != nil {
		return nil, fmt.Errorf("could not parameterize %q: %w", filePath, err)
	}

	pQuery, err := db.PrepareNamed(string(query.Body))
	if err != nil {
		return nil, fmt.Errorf("could not prepare statement %q: %w", filePath, err)
	}
	return &parameterizedStmt{
		filePath,
		query.Parameters,
		pQuery,
	}, nil
}

// InitSchema creates the necessary tables if they don't already exist. The schema file
// can be run idempotently.
func (db *DB) InitSchema(fileFS fs.FS, filePath string) error {

	schema, err := fs.ReadFile(fileFS, filePath)
	if err != nil {
		return fmt.Errorf("could not read schema file at %q: %w", filePath, err)
	}

	_, err = db.ExecContext(context.Background(), string(schema))
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// logQuery is for helping debug SQL issues.
func (db *DB) logQuery(name string, stmt *parameterizedStmt, args map[string]any, err error) {
	db.logger.Debug("sql",
		"name", name,
		"query", stmt.QueryString,
		"args", args,
		"err", err,
	)
}
