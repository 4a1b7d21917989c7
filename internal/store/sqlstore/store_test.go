package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/store"
)

var testStore *SQLStore

func SetupTestDB(t *testing.T) {
	t.Helper()
	var err error
	testStore, err = New("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if _, err := testStore.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
}

func TeardownTestDB() {
	_ = testStore.Close()
}

func mustCreateUser(t *testing.T, username string, balance int64) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "pass", Balance: balance}
	if err := testStore.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return u
}

func TestMigrateIsIdempotent(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	result, err := testStore.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New("mysql", "x"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &conn{driverName: "postgres"}
	if got := pg.rebind("SELECT 1 WHERE a = ? AND b = ?"); got != "SELECT 1 WHERE a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := &conn{driverName: "sqlite3"}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind = %q", got)
	}
}

func TestSqliteDSNAddsMissingPragmas(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"app.db", "app.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate"},
		{"app.db?cache=shared", "app.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&cache=shared"},
		{"app.db?_fk=off&_txlock=deferred", "app.db?_busy_timeout=5000&_fk=off&_journal_mode=WAL&_txlock=deferred"},
	}
	for _, tt := range tests {
		got, err := sqliteDSN(tt.dsn)
		if err != nil {
			t.Fatalf("sqliteDSN(%q): %v", tt.dsn, err)
		}
		if got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestNewEnablesForeignKeysWithCustomOptions(t *testing.T) {
	st, err := New("sqlite3", filepath.Join(t.TempDir(), "test.db")+"?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st.Close() }()

	var on int
	if err := st.DB().QueryRow("PRAGMA foreign_keys").Scan(&on); err != nil {
		t.Fatal(err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}

func TestForUpdateOnlyLocksPostgresTransactions(t *testing.T) {
	tests := []struct {
		c    *conn
		want string
	}{
		{&conn{driverName: "postgres", inTx: true}, " FOR UPDATE"},
		{&conn{driverName: "postgres"}, ""},
		{&conn{driverName: "sqlite3", inTx: true}, ""},
	}
	for _, tt := range tests {
		if got := tt.c.forUpdate(); got != tt.want {
			t.Errorf("forUpdate(%s, inTx=%v) = %q, want %q", tt.c.driverName, tt.c.inTx, got, tt.want)
		}
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	owner := mustCreateUser(t, "owner", 50)
	boom := errors.New("boom")

	err := testStore.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.AdjustBalance(ctx, owner.ID, -20); err != nil {
			return err
		}
		if err := tx.CreateTask(ctx, &models.Task{OwnerID: owner.ID, Title: "t", Bounty: 20}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, apperr.ErrTransactionAborted) {
		t.Fatalf("expected transaction aborted, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected cause to be kept, got %v", err)
	}

	u, _ := testStore.GetUser(ctx, owner.ID)
	if u.Balance != 50 {
		t.Errorf("balance = %d, want 50 after rollback", u.Balance)
	}
	tasks, _ := testStore.ListTasksByOwner(ctx, owner.ID)
	if len(tasks) != 0 {
		t.Errorf("expected no tasks after rollback, got %d", len(tasks))
	}
}

func TestInTxPassesTaxonomyErrors(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	err := testStore.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetTask(ctx, "missing")
		return err
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
