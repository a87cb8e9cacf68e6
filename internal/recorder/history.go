package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// HistoryRecord is one drained timestamp persisted to the ts_history table.
type HistoryRecord struct {
	ID         int64     `json:"id"`
	Device     string    `json:"device"`
	Line       uint32    `json:"line"`
	Label      string    `json:"label"`
	Value      uint64    `json:"value"`
	Seq        uint64    `json:"seq"`
	Direction  string    `json:"direction"`
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryFilter controls which history records to return.
type HistoryFilter struct {
	Device string // optional: filter by provider device name
	Label  string // optional: filter by channel label
	Limit  int    // default 50, max 500
	Offset int    // pagination offset
}

// HistoryListResult contains the paginated history results.
type HistoryListResult struct {
	Records []HistoryRecord `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// History defines the interface for timestamp history storage.
type History interface {
	Insert(ctx context.Context, rec *HistoryRecord) error
	List(ctx context.Context, filter HistoryFilter) (*HistoryListResult, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Default and maximum page sizes for history queries.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SQLiteHistory stores timestamp history in SQLite.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory creates a new history repository.
func NewSQLiteHistory(db *sql.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

// Insert persists one drained timestamp. RecordedAt defaults to now.
func (r *SQLiteHistory) Insert(ctx context.Context, rec *HistoryRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	// uint64 counters are stored in signed columns; values beyond int64
	// range wrap on the way in and are unwrapped on the way out.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ts_history (device, line, label, value, seq, direction, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Device, rec.Line, rec.Label,
		int64(rec.Value), int64(rec.Seq), rec.Direction,
		rec.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting history record: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}

	return nil
}

// List returns history records matching the filter, newest first.
func (r *SQLiteHistory) List(ctx context.Context, filter HistoryFilter) (*HistoryListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Device != "" {
		conditions = append(conditions, "device = ?")
		args = append(args, filter.Device)
	}
	if filter.Label != "" {
		conditions = append(conditions, "label = ?")
		args = append(args, filter.Label)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ts_history %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting history records: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, device, line, label, value, seq, direction, recorded_at FROM ts_history %s ORDER BY id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history records: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var value, seq int64
		var recordedAt string

		if err := rows.Scan(&rec.ID, &rec.Device, &rec.Line, &rec.Label,
			&value, &seq, &rec.Direction, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning history record: %w", err)
		}

		rec.Value = uint64(value)
		rec.Seq = uint64(seq)

		t, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing history timestamp %q: %w", recordedAt, err)
		}
		rec.RecordedAt = t

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history records: %w", err)
	}

	if records == nil {
		records = []HistoryRecord{}
	}

	return &HistoryListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes history records older than the cutoff.
// Returns the number of rows removed.
func (r *SQLiteHistory) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM ts_history WHERE recorded_at < ?",
		before.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning history records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning history records: %w", err)
	}
	return n, nil
}
