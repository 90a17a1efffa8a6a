package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface. It is the durable side of the
// tracker: the poll loop owns all records in memory and writes through to a
// Store after each mutation, and the full contents are loaded back exactly
// once at startup.
type Store interface {
	Close() error
	Accruals() AccrualStore
	Groups() GroupStore
}

// AccrualStore persists per-identity accrual records, keyed by
// (group ID, member ID).
type AccrualStore interface {
	Upsert(ctx context.Context, record AccrualRecord) error
	Get(ctx context.Context, groupID, memberID string) (*AccrualRecord, error)
	List(ctx context.Context) ([]AccrualRecord, error)
	Delete(ctx context.Context, groupID, memberID string) error
}

// GroupStore persists per-group report configuration, keyed by group ID.
type GroupStore interface {
	Upsert(ctx context.Context, config GroupReportConfig) error
	Get(ctx context.Context, groupID string) (*GroupReportConfig, error)
	List(ctx context.Context) ([]GroupReportConfig, error)
	Delete(ctx context.Context, groupID string) error
}
