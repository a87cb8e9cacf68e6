package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel lifecycle events recorded in the audit trail.
const (
	AuditRequested = "requested"
	AuditEnabled   = "enabled"
	AuditDisabled  = "disabled"
	AuditReleased  = "released"
)

// AuditEntry is one channel lifecycle transition.
type AuditEntry struct {
	ID         string    `json:"id"`
	Device     string    `json:"device"`
	Line       uint32    `json:"line"`
	Label      string    `json:"label"`
	Event      string    `json:"event"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AuditFilter controls which audit entries to return.
type AuditFilter struct {
	Device string // optional: filter by provider device name
	Event  string // optional: filter by event type
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// AuditListResult contains the paginated audit results.
type AuditListResult struct {
	Entries []AuditEntry `json:"entries"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// Audit defines the interface for the channel lifecycle audit trail.
type Audit interface {
	Record(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) (*AuditListResult, error)
}

// Page size limits for audit queries.
const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// SQLiteAudit stores the channel audit trail in SQLite.
type SQLiteAudit struct {
	db *sql.DB
}

// NewSQLiteAudit creates a new audit repository.
func NewSQLiteAudit(db *sql.DB) *SQLiteAudit {
	return &SQLiteAudit{db: db}
}

// Record inserts a lifecycle entry. The ID and OccurredAt are generated if empty.
func (r *SQLiteAudit) Record(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = "evt-" + uuid.NewString()[:8]
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO channel_audit (id, device, line, label, event, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Device, entry.Line, entry.Label,
		entry.Event, nullableString(entry.Detail),
		entry.OccurredAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns audit entries matching the filter, newest first.
func (r *SQLiteAudit) List(ctx context.Context, filter AuditFilter) (*AuditListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditLimit
	}
	if filter.Limit > maxAuditLimit {
		filter.Limit = maxAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Device != "" {
		conditions = append(conditions, "device = ?")
		args = append(args, filter.Device)
	}
	if filter.Event != "" {
		conditions = append(conditions, "event = ?")
		args = append(args, filter.Event)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM channel_audit %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, device, line, label, event, detail, occurred_at FROM channel_audit %s ORDER BY occurred_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var detail sql.NullString
		var occurredAt string

		if err := rows.Scan(&entry.ID, &entry.Device, &entry.Line, &entry.Label,
			&entry.Event, &detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if detail.Valid {
			entry.Detail = detail.String
		}

		t, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", occurredAt, err)
		}
		entry.OccurredAt = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}

	return &AuditListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
