package db

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

// setupTestDB sets up a test database connection.
func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	testDB, err := NewConnection("file::memory:?cache=shared", SQLFS, log.New(io.Discard))
	if err != nil {
		t.Fatalf("in-memory test database opening error: %v", err)
	}

	// closeDBFunc is a closure for running by the function consumer.
	closeDBFunc := func() {
		if _, err := testDB.Exec("DELETE FROM syncs"); err != nil {
			t.Errorf("unexpected cleanup error: %v", err)
		}
		err := testDB.Close()
		if err != nil {
			t.Fatalf("unexpected db close error: %v", err)
		}
	}

	return testDB, closeDBFunc
}

func TestNewConnection(t *testing.T) {
	_, err := NewConnection("file::memory:", SQLFS, nil)
	if err == nil {
		t.Error("expected error for in-memory database without a shared cache")
	}

	dbPath := t.TempDir() + "/audit.db"
	fileDB, err := NewConnection(dbPath, SQLFS, nil)
	if err != nil {
		t.Fatalf("file database opening error: %v", err)
	}
	t.Cleanup(func() { _ = fileDB.Close() })

	// schema initialisation is idempotent
	if err := fileDB.InitSchema(SQLFS, schemaFile); err != nil {
		t.Errorf("unexpected second schema initialisation error: %v", err)
	}
}
