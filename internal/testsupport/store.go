package testsupport

import (
	"context"
	"testing"

	"reencode/internal/config"
	"reencode/internal/database"
	"reencode/internal/queue"
	"reencode/internal/rewrite"
)

// MustOpenDatabase opens the config's database for tests and registers cleanup.
func MustOpenDatabase(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenQueue opens a queue.Store on a fresh session and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	db := MustOpenDatabase(t, cfg)
	session := db.NewSession()
	t.Cleanup(func() {
		_ = session.Close()
	})
	return queue.NewStore(session)
}

// AddJob upserts and commits a job, failing the test on error.
func AddJob(t testing.TB, store *queue.Store, job *queue.Job) *queue.Job {
	t.Helper()

	saved, err := store.Upsert(context.Background(), job)
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	if err := store.Session().Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return saved
}

// MustOpenRules opens a rewrite.Store on a fresh session and registers cleanup.
func MustOpenRules(t testing.TB, cfg *config.Config) *rewrite.Store {
	t.Helper()

	db := MustOpenDatabase(t, cfg)
	session := db.NewSession()
	t.Cleanup(func() {
		_ = session.Close()
	})
	return rewrite.NewStore(session)
}
