package testsupport

import (
	"context"
	"testing"

	"reframe/internal/config"
	"reframe/internal/ffmpeg"
	"reframe/internal/queue"
)

// MustOpenStore opens a job store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a job record for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, req ffmpeg.Request) *queue.Record {
	t.Helper()

	record, err := store.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return record
}
