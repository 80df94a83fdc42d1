// Package testutil provides shared test helpers for setting up profile
// trees and pending-notification databases.
package testutil

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/renshaw/taskwire/internal/models"
	"github.com/renshaw/taskwire/internal/pending"
	"github.com/renshaw/taskwire/internal/profiles"
)

// TestDB creates a temporary SQLite mailbox that is automatically cleaned up.
func TestDB(t *testing.T) *pending.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "taskwire-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := pending.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestProfiles creates a temporary profiles root with an FS provider.
func TestProfiles(t *testing.T) (string, *profiles.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := profiles.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteDashboard writes a dashboard file for identity with the given tasks.
func WriteDashboard(t *testing.T, store *profiles.FS, identity string, tasks []models.Task) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"tasks": tasks})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(identity, data); err != nil {
		t.Fatal(err)
	}
}
