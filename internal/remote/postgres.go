package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/observability"
)

// PostgresStore writes field records straight into a crew server's Postgres
// database. Used on LAN deployments where the hosted API is not in the path.
type PostgresStore struct {
	db *observability.TraceDB
}

// NewPostgresStore connects to the crew database and ensures its tables exist
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createRemoteTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: observability.NewTraceDB(db, "postgresql")}, nil
}

func createRemoteTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		end_time TIMESTAMPTZ,
		payload JSONB NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_one_active
		ON time_entries(user_id) WHERE end_time IS NULL;

	CREATE INDEX IF NOT EXISTS idx_time_entries_user_id ON time_entries(user_id);

	CREATE TABLE IF NOT EXISTS field_records (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload JSONB NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_field_records_kind ON field_records(kind);
	`

	_, err := db.Exec(schema)
	return err
}

// Insert writes one record. ON CONFLICT (id) DO NOTHING makes the write
// idempotent on the client-generated id, so a retried submission after a
// partial failure is a no-op rather than a duplicate.
func (s *PostgresStore) Insert(ctx context.Context, kind models.EntityKind, payload json.RawMessage, idempotencyKey string) (string, error) {
	if kind == models.KindTimeEntry {
		return s.insertTimeEntry(ctx, payload, idempotencyKey)
	}
	if !models.ValidEntityKind(kind) {
		return "", Rejected("unknown entity kind", models.ErrUnknownEntityKind)
	}

	query := `
		INSERT INTO field_records (id, kind, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, idempotencyKey, string(kind), []byte(payload)); err != nil {
		return "", classifyPQ(err)
	}
	return idempotencyKey, nil
}

func (s *PostgresStore) insertTimeEntry(ctx context.Context, payload json.RawMessage, idempotencyKey string) (string, error) {
	var entry models.TimeEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return "", Rejected("time entry payload is not valid JSON", err)
	}
	if entry.UserID == "" {
		return "", Rejected("time entry payload is missing userId", nil)
	}

	var endTime interface{}
	if entry.EndTime != nil {
		endTime = *entry.EndTime
	}

	query := `
		INSERT INTO time_entries (id, user_id, end_time, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, idempotencyKey, entry.UserID, endTime, []byte(payload)); err != nil {
		return "", classifyPQ(err)
	}
	return idempotencyKey, nil
}

// FindActiveEntry returns the user's open entry, if any
func (s *PostgresStore) FindActiveEntry(ctx context.Context, userID string) (*models.TimeEntry, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM time_entries WHERE user_id = $1 AND end_time IS NULL`, userID,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyPQ(err)
	}

	var entry models.TimeEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, Rejected("stored active entry is not valid JSON", err)
	}
	return &entry, nil
}

// Ping checks database reachability
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.DB().PingContext(ctx); err != nil {
		return Transient("crew database unreachable", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.DB().Close()
}

// classifyPQ maps Postgres errors onto the retry taxonomy: integrity and
// data errors cannot succeed on retry, everything else is assumed transient
func classifyPQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := string(pqErr.Code.Class())
		if strings.HasPrefix(class, "22") || strings.HasPrefix(class, "23") {
			return Rejected(pqErr.Message, err)
		}
	}
	return Transient("crew database write failed", err)
}
