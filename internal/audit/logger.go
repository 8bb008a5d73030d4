// Package audit records and queries the audit trail for entity
// mutations. Every create, update, and delete on the management API
// produces one audit_logs row capturing the before and after state.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/home-sentry/core/internal/userctx"
)

// Actions recorded in the audit trail.
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Entry describes a mutation to record. RecordID accepts any scalar
// and is coerced to text, so callers can pass entity IDs directly.
type Entry struct {
	TableName string
	Action    string
	RecordID  any
	UserID    string
	OldValue  any
	NewValue  any
}

// Record is a stored audit trail row. OldValue and NewValue hold the
// JSON snapshot exactly as written, or nil where no state existed.
type Record struct {
	ID        int64     `json:"id"`
	TableName string    `json:"tableName"`
	Action    string    `json:"action"`
	RecordID  string    `json:"recordId"`
	Timestamp time.Time `json:"timestamp"`
	UserID    *string   `json:"userId"`
	OldValue  *string   `json:"oldValue"`
	NewValue  *string   `json:"newValue"`
}

// Filter controls which audit records to return.
type Filter struct {
	TableName string // optional: filter by entity table (homes, rooms, devices, signals)
	Action    string // optional: filter by action (INSERT, UPDATE, DELETE)
	RecordID  string // optional: filter by specific record ID
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated audit records.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Logger writes and queries audit records in SQLite.
//
// Writes are synchronous: a failed audit insert fails the mutation
// that triggered it, so the trail never silently diverges from the
// entity tables.
type Logger struct {
	db *sql.DB
}

// NewLogger creates an audit logger backed by the given database.
func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Log records a single mutation. The user is taken from the entry, or
// from the request context when the entry leaves it empty. Old and new
// values are serialised to JSON; nil stays NULL.
func (l *Logger) Log(ctx context.Context, e Entry) error {
	userID := e.UserID
	if userID == "" {
		if username, ok := userctx.FromContext(ctx); ok {
			userID = username
		}
	}

	oldJSON, err := marshalSnapshot(e.OldValue)
	if err != nil {
		return fmt.Errorf("marshalling old value: %w", err)
	}
	newJSON, err := marshalSnapshot(e.NewValue)
	if err != nil {
		return fmt.Errorf("marshalling new value: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_logs (table_name, action, record_id, timestamp, user_id, old_value, new_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TableName, e.Action, coerceRecordID(e.RecordID),
		time.Now().UTC().Format(time.RFC3339),
		nullableString(userID), oldJSON, newJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	return nil
}

// coerceRecordID converts an entity ID of any scalar type to its text form.
func coerceRecordID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// marshalSnapshot serialises an entity snapshot, preserving NULL for nil.
func marshalSnapshot(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns audit records matching the filter, ordered by most recent first.
func (l *Logger) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for audit queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.TableName != "" {
		conditions = append(conditions, "table_name = ?")
		args = append(args, filter.TableName)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.RecordID != "" {
		conditions = append(conditions, "record_id = ?")
		args = append(args, filter.RecordID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := l.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit records: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, table_name, action, record_id, timestamp, user_id, old_value, new_value FROM audit_logs %s ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var userID, oldValue, newValue sql.NullString
		var timestamp string

		if err := rows.Scan(&rec.ID, &rec.TableName, &rec.Action, &rec.RecordID,
			&timestamp, &userID, &oldValue, &newValue); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}

		if userID.Valid {
			rec.UserID = &userID.String
		}
		if oldValue.Valid {
			rec.OldValue = &oldValue.String
		}
		if newValue.Valid {
			rec.NewValue = &newValue.String
		}

		t, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", timestamp, err)
		}
		rec.Timestamp = t

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}

	if records == nil {
		records = []Record{}
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
