// Package audit records lock commands and monitor outcomes in the
// audit_logs table.
//
// The trail is history only; lock state is always re-read from the remote
// service.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the trail.
const (
	ActionLock    = "lock"
	ActionUnlock  = "unlock"
	ActionOpen    = "open"
	ActionSync    = "sync"
	ActionMonitor = "monitor"
)

// Sources a command can arrive from.
const (
	SourceAPI     = "api"
	SourceMQTT    = "mqtt"
	SourceMonitor = "monitor"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one audit trail row.
type Entry struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	Action     string         `json:"action"`
	Source     string         `json:"source"`
	Outcome    string         `json:"outcome"`
	MessageKey string         `json:"message_key,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects entries. Zero values match everything.
type Filter struct {
	DeviceID string
	Action   string
	Outcome  string
	Limit    int // default 50, max 200
	Offset   int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository is the audit store.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an already migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts e, generating ID and CreatedAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.DeviceID == "" || e.Action == "" {
		return fmt.Errorf("audit: device_id and action are required")
	}
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var detail *string
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshalling audit detail: %w", err)
		}
		s := string(b)
		detail = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, device_id, action, source, outcome, message_key, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeviceID, e.Action, e.Source, e.Outcome,
		nullableString(e.MessageKey), detail, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		conditions []string
		args       []any
	)
	for _, c := range []struct{ column, value string }{
		{"device_id", filter.DeviceID},
		{"action", filter.Action},
		{"outcome", filter.Outcome},
	} {
		if c.value != "" {
			conditions = append(conditions, c.column+" = ?")
			args = append(args, c.value)
		}
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_logs " + where //nolint:gosec // columns are fixed, values are parameters
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := "SELECT id, device_id, action, source, outcome, message_key, detail, created_at FROM audit_logs " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	result := &ListResult{Entries: []Entry{}, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for rows.Next() {
		var (
			e          Entry
			messageKey sql.NullString
			detail     sql.NullString
			createdAt  int64
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Action, &e.Source, &e.Outcome, &messageKey, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.MessageKey = messageKey.String
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		if detail.Valid {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("decoding audit detail %s: %w", e.ID, err)
			}
		}
		result.Entries = append(result.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return result, nil
}
