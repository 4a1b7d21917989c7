// Package storetest opens migrated SQLite stores for tests in other packages.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/store/sqlstore"
)

// New returns a migrated store backed by a file in t.TempDir. It is closed
// when the test ends.
func New(t testing.TB) *sqlstore.SQLStore {
	t.Helper()
	st, err := sqlstore.New("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if _, err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

// User creates a user with the given balance.
func User(t testing.TB, st *sqlstore.SQLStore, username string, balance int64) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hash",
		Balance:  balance,
	}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// Balance reads the current balance of userID.
func Balance(t testing.TB, st *sqlstore.SQLStore, userID string) int64 {
	t.Helper()
	u, err := st.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user %s: %v", userID, err)
	}
	return u.Balance
}
