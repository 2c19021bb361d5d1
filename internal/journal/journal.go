package journal

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the schema for the lifecycle_events table, suitable
// for database.DB.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err) // embedded path is fixed at build time
	}
	return sub
}

// Kind classifies a lifecycle event.
type Kind string

const (
	KindConnectRequested Kind = "connect_requested"
	KindConnected        Kind = "connected"
	KindSetupStage       Kind = "setup_stage"
	KindArmed            Kind = "armed"
	KindShutdown         Kind = "shutdown"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Entry is one recorded lifecycle event.
type Entry struct {
	ID        string
	Kind      Kind
	DeviceID  string
	Detail    map[string]any
	Error     string
	CreatedAt time.Time
}

// Filter selects entries for List. Zero values match everything.
type Filter struct {
	Kind  Kind
	Limit int // default 50, max 500
}

// Recorder is the write side used by the orchestrator.
type Recorder interface {
	Record(ctx context.Context, kind Kind, detail map[string]any, cause error) error
}

// Multi fans one event out to every non-nil recorder. All recorders are
// tried; their errors are joined. It returns nil when given no recorders.
func Multi(recorders ...Recorder) Recorder {
	var rs multiRecorder
	for _, r := range recorders {
		if r != nil {
			rs = append(rs, r)
		}
	}
	if len(rs) == 0 {
		return nil
	}
	return rs
}

type multiRecorder []Recorder

func (m multiRecorder) Record(ctx context.Context, kind Kind, detail map[string]any, cause error) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, kind, detail, cause); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SQLiteJournal stores lifecycle events in SQLite.
type SQLiteJournal struct {
	db       *sql.DB
	deviceID string
	now      func() time.Time
}

// NewSQLiteJournal creates a journal over an open database whose schema
// has been migrated with Migrations.
func NewSQLiteJournal(db *sql.DB, deviceID string) *SQLiteJournal {
	return &SQLiteJournal{
		db:       db,
		deviceID: deviceID,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record inserts one event. cause may be nil.
func (j *SQLiteJournal) Record(ctx context.Context, kind Kind, detail map[string]any, cause error) error {
	e := Entry{
		ID:        "evt-" + uuid.NewString()[:8],
		Kind:      kind,
		DeviceID:  j.deviceID,
		Detail:    detail,
		CreatedAt: j.now(),
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	return j.insert(ctx, e)
}

func (j *SQLiteJournal) insert(ctx context.Context, e Entry) error {
	var detailJSON *string
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshalling event detail: %w", err)
		}
		s := string(b)
		detailJSON = &s
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO lifecycle_events (id, kind, device_id, detail, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.DeviceID, detailJSON, nullableString(e.Error),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting lifecycle event: %w", err)
	}
	return nil
}

// List returns entries matching the filter, oldest first.
func (j *SQLiteJournal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	query := `SELECT id, kind, device_id, detail, error, created_at FROM lifecycle_events`
	var args []any
	if filter.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(filter.Kind))
	}
	// rowid breaks ties between events recorded within the same instant.
	query += ` ORDER BY created_at, rowid LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lifecycle events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind, createdAt string
		var detail, cause sql.NullString
		if err := rows.Scan(&e.ID, &kind, &e.DeviceID, &detail, &cause, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning lifecycle event: %w", err)
		}
		e.Kind = Kind(kind)
		if cause.Valid {
			e.Error = cause.String
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("decoding detail of %s: %w", e.ID, err)
			}
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lifecycle events: %w", err)
	}
	return entries, nil
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
