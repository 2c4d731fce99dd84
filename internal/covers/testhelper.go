package covers

import (
	"context"
	"testing"
)

// TestStore creates a cover store backed by gofakes3 for testing. The fake
// server is cleaned up when the test completes.
func TestStore(t testing.TB, bucketName string) *Store {
	t.Helper()

	store, shutdown, err := NewInMemory(context.Background(), bucketName)
	if err != nil {
		t.Fatalf("failed to create in-memory cover store: %v", err)
	}
	t.Cleanup(shutdown)
	return store
}
