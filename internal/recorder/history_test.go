package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the recorder schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	// Matches the initial migration
	schema := `
		CREATE TABLE ts_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			device      TEXT    NOT NULL,
			line        INTEGER NOT NULL,
			label       TEXT    NOT NULL,
			value       INTEGER NOT NULL,
			seq         INTEGER NOT NULL,
			direction   TEXT    NOT NULL,
			recorded_at TEXT    NOT NULL
		);

		CREATE TABLE channel_audit (
			id          TEXT    PRIMARY KEY,
			device      TEXT    NOT NULL,
			line        INTEGER NOT NULL,
			label       TEXT    NOT NULL,
			event       TEXT    NOT NULL,
			detail      TEXT,
			occurred_at TEXT    NOT NULL
		);`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testRecord creates a history record for the given device and sequence.
func testRecord(device string, line uint32, seq uint64) *HistoryRecord {
	return &HistoryRecord{
		Device:    device,
		Line:      line,
		Label:     fmt.Sprintf("%s_line_%d", device, line),
		Value:     1_000_000 * seq,
		Seq:       seq,
		Direction: "rising",
	}
}

func TestSQLiteHistory_Insert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistory(db)
	ctx := context.Background()

	rec := testRecord("sim0", 3, 1)
	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if rec.ID == 0 {
		t.Error("ID not assigned after insert")
	}
	if rec.RecordedAt.IsZero() {
		t.Error("RecordedAt not set")
	}

	// Second insert gets a later rowid
	rec2 := testRecord("sim0", 3, 2)
	if err := repo.Insert(ctx, rec2); err != nil {
		t.Fatalf("Insert second: %v", err)
	}
	if rec2.ID <= rec.ID {
		t.Errorf("expected increasing IDs, got %d then %d", rec.ID, rec2.ID)
	}
}

func TestSQLiteHistory_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistory(db)
	ctx := context.Background()

	for seq := uint64(1); seq <= 5; seq++ {
		if err := repo.Insert(ctx, testRecord("sim0", 0, seq)); err != nil {
			t.Fatalf("seeding sim0: %v", err)
		}
	}
	for seq := uint64(1); seq <= 3; seq++ {
		if err := repo.Insert(ctx, testRecord("sim1", 2, seq)); err != nil {
			t.Fatalf("seeding sim1: %v", err)
		}
	}

	t.Run("all records", func(t *testing.T) {
		result, err := repo.List(ctx, HistoryFilter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Total != 8 {
			t.Errorf("expected total 8, got %d", result.Total)
		}
		if len(result.Records) != 8 {
			t.Errorf("expected 8 records, got %d", len(result.Records))
		}
		// Newest first
		if result.Records[0].Device != "sim1" || result.Records[0].Seq != 3 {
			t.Errorf("expected newest record first, got %s seq %d",
				result.Records[0].Device, result.Records[0].Seq)
		}
	})

	t.Run("filter by device", func(t *testing.T) {
		result, err := repo.List(ctx, HistoryFilter{Device: "sim1"})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Total != 3 {
			t.Errorf("expected total 3, got %d", result.Total)
		}
		for _, rec := range result.Records {
			if rec.Device != "sim1" {
				t.Errorf("unexpected device %q in filtered results", rec.Device)
			}
		}
	})

	t.Run("filter by label", func(t *testing.T) {
		result, err := repo.List(ctx, HistoryFilter{Label: "sim0_line_0"})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Total != 5 {
			t.Errorf("expected total 5, got %d", result.Total)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := repo.List(ctx, HistoryFilter{Limit: 3, Offset: 6})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Total != 8 {
			t.Errorf("expected total 8, got %d", result.Total)
		}
		if len(result.Records) != 2 {
			t.Errorf("expected 2 records on last page, got %d", len(result.Records))
		}
		if result.Limit != 3 || result.Offset != 6 {
			t.Errorf("filter not echoed: limit %d offset %d", result.Limit, result.Offset)
		}
	})

	t.Run("limit clamped to maximum", func(t *testing.T) {
		result, err := repo.List(ctx, HistoryFilter{Limit: 10_000})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Limit != maxHistoryLimit {
			t.Errorf("expected limit clamped to %d, got %d", maxHistoryLimit, result.Limit)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		result, err := repo.List(ctx, HistoryFilter{Device: "absent"})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Total != 0 || len(result.Records) != 0 {
			t.Errorf("expected empty result, got total %d len %d",
				result.Total, len(result.Records))
		}
	})
}

func TestSQLiteHistory_Prune(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistory(db)
	ctx := context.Background()

	old := testRecord("sim0", 0, 1)
	old.RecordedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := repo.Insert(ctx, old); err != nil {
		t.Fatalf("inserting old record: %v", err)
	}

	fresh := testRecord("sim0", 0, 2)
	if err := repo.Insert(ctx, fresh); err != nil {
		t.Fatalf("inserting fresh record: %v", err)
	}

	removed, err := repo.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned row, got %d", removed)
	}

	result, err := repo.List(ctx, HistoryFilter{})
	if err != nil {
		t.Fatalf("List after prune: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("expected 1 surviving record, got %d", result.Total)
	}
	if result.Records[0].Seq != 2 {
		t.Errorf("wrong record survived: seq %d", result.Records[0].Seq)
	}
}

func TestSQLiteHistory_Insert_PreservesLargeValues(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteHistory(db)
	ctx := context.Background()

	// Counter values above 2^63 round-trip through the signed column.
	rec := testRecord("sim0", 0, 1)
	rec.Value = ^uint64(0) - 41

	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	result, err := repo.List(ctx, HistoryFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := result.Records[0].Value; got != rec.Value {
		t.Errorf("value did not round-trip: want %d, got %d", rec.Value, got)
	}
}
