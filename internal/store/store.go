package store

import (
	"context"
	"encoding/json"
	"time"
)

// ParseRecord is the persisted result of one parse call: the structured
// deliverable as JSON plus enough metadata to query it later.
type ParseRecord struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"` // workflow | checklist
	Mode        string          `json:"mode,omitempty"`
	Layout      string          `json:"layout,omitempty"`
	SourceChars int             `json:"source_chars"`
	Result      json.RawMessage `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RecordFilter narrows ListRecords results.
type RecordFilter struct {
	Kind  string
	Since time.Time
	Limit int
}

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	SaveRecord(ctx context.Context, rec *ParseRecord) error
	GetRecord(ctx context.Context, id string) (*ParseRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]*ParseRecord, error)
	DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
