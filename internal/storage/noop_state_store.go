package storage

import (
	"context"
	"time"
)

// NoopStateStore is a state store that does nothing. Used for local and
// dry-run invocations where no SSM parameter is configured.
type NoopStateStore struct{}

// NewNoopStateStore creates a new NoopStateStore.
func NewNoopStateStore() *NoopStateStore {
	return &NoopStateStore{}
}

// LastSyncTime returns the zero time.
func (s *NoopStateStore) LastSyncTime(_ context.Context) (time.Time, error) {
	return time.Time{}, nil
}

// SetLastSyncTime does nothing.
func (s *NoopStateStore) SetLastSyncTime(_ context.Context, _ time.Time) error {
	return nil
}
