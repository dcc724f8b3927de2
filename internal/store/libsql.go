package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/deliverable/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// SaveRecord inserts a parse record. Records are immutable once written.
func (s *LibSQLStore) SaveRecord(ctx context.Context, rec *ParseRecord) error {
	if rec.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "parse record id is empty")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parse_records (id, kind, mode, layout, source_chars, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Mode, rec.Layout, rec.SourceChars, string(rec.Result), created,
	)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "save parse record").WithCause(err)
	}
	return nil
}

// GetRecord returns a parse record by ID.
func (s *LibSQLStore) GetRecord(ctx context.Context, id string) (*ParseRecord, error) {
	rec := &ParseRecord{}
	var result string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, mode, layout, source_chars, result, created_at
		 FROM parse_records WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Kind, &rec.Mode, &rec.Layout, &rec.SourceChars, &result, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "parse record %q not found", id)
	}
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "get parse record").WithCause(err)
	}
	rec.Result = []byte(result)
	return rec, nil
}

// ListRecords returns parse records matching the filter, newest first.
func (s *LibSQLStore) ListRecords(ctx context.Context, filter RecordFilter) ([]*ParseRecord, error) {
	query := `SELECT id, kind, mode, layout, source_chars, result, created_at FROM parse_records`
	var conds []string
	var args []any

	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, filter.Kind)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list parse records").WithCause(err)
	}
	defer rows.Close()

	var out []*ParseRecord
	for rows.Next() {
		rec := &ParseRecord{}
		var result string
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Mode, &rec.Layout, &rec.SourceChars, &result, &rec.CreatedAt); err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "scan parse record").WithCause(err)
		}
		rec.Result = []byte(result)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "iterate parse records").WithCause(err)
	}
	return out, nil
}

// DeleteRecordsBefore removes records created before the cutoff and
// reports how many were deleted.
func (s *LibSQLStore) DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM parse_records WHERE created_at < ?`, cutoff,
	)
	if err != nil {
		return 0, schema.NewError(schema.ErrCodeStore, "delete parse records").WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, schema.NewError(schema.ErrCodeStore, "count deleted parse records").WithCause(err)
	}
	return n, nil
}

var _ Store = (*LibSQLStore)(nil)
