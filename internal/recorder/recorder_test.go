package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hwts/hwts-core/internal/hte"
	"github.com/hwts/hwts-core/internal/infrastructure/config"
	"github.com/hwts/hwts-core/internal/providers/sim"
)

// newTestEngine builds a registry with one attached sim provider.
func newTestEngine(t *testing.T, name string, lines uint32) (*hte.Registry, *sim.Provider) {
	t.Helper()

	registry := hte.NewRegistry()
	p := sim.New(sim.Options{Name: name, Lines: lines})
	dev, err := registry.Register(p)
	if err != nil {
		t.Fatalf("registering provider: %v", err)
	}
	p.Attach(dev)
	return registry, p
}

// newTestRecorder builds a started recorder backed by in-memory SQLite.
func newTestRecorder(t *testing.T, registry *hte.Registry, cfgs []config.MonitorConfig) (*Recorder, History, Audit) {
	t.Helper()

	db := setupTestDB(t)
	history := NewSQLiteHistory(db)
	audit := NewSQLiteAudit(db)

	rec, err := New(registry, cfgs, Deps{History: history, Audit: audit})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(rec.Stop)
	return rec, history, audit
}

// waitForHistory polls until the history table holds want rows or the
// deadline passes. The drain worker is asynchronous, so tests cannot
// assert row counts immediately after Fire.
func waitForHistory(t *testing.T, history History, filter HistoryFilter, want int) *HistoryListResult {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		result, err := history.List(context.Background(), filter)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Total >= want {
			return result
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d history rows, have %d", want, result.Total)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecorder_PersistsFiredEvents(t *testing.T) {
	registry, p := newTestEngine(t, "sim0", 4)
	_, history, _ := newTestRecorder(t, registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 1, Label: "pps_in"},
	})

	for i := 0; i < 3; i++ {
		if _, err := p.Fire(1, hte.DirRising); err != nil {
			t.Fatalf("Fire: %v", err)
		}
	}

	result := waitForHistory(t, history, HistoryFilter{}, 3)

	for _, rec := range result.Records {
		if rec.Device != "sim0" || rec.Line != 1 {
			t.Errorf("record attributed to %s line %d, want sim0 line 1", rec.Device, rec.Line)
		}
		if rec.Label != "pps_in" {
			t.Errorf("record label %q, want pps_in", rec.Label)
		}
		if rec.Direction != "rising" {
			t.Errorf("record direction %q, want rising", rec.Direction)
		}
	}

	// Newest first: sequences descend 3, 2, 1.
	for i, want := range []uint64{3, 2, 1} {
		if result.Records[i].Seq != want {
			t.Errorf("record %d seq = %d, want %d", i, result.Records[i].Seq, want)
		}
	}
}

func TestRecorder_MultipleMonitors(t *testing.T) {
	registry, p := newTestEngine(t, "sim0", 4)
	_, history, _ := newTestRecorder(t, registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 0, Label: "line_a"},
		{Provider: "sim0", Line: 2, Label: "line_b"},
	})

	if _, err := p.Fire(0, hte.DirRising); err != nil {
		t.Fatalf("Fire line 0: %v", err)
	}
	if _, err := p.Fire(2, hte.DirFalling); err != nil {
		t.Fatalf("Fire line 2: %v", err)
	}

	waitForHistory(t, history, HistoryFilter{}, 2)

	a := waitForHistory(t, history, HistoryFilter{Label: "line_a"}, 1)
	if a.Records[0].Direction != "rising" {
		t.Errorf("line_a direction %q, want rising", a.Records[0].Direction)
	}
	b := waitForHistory(t, history, HistoryFilter{Label: "line_b"}, 1)
	if b.Records[0].Direction != "falling" {
		t.Errorf("line_b direction %q, want falling", b.Records[0].Direction)
	}
}

func TestRecorder_AuditTrail(t *testing.T) {
	registry, _ := newTestEngine(t, "sim0", 2)

	db := setupTestDB(t)
	history := NewSQLiteHistory(db)
	audit := NewSQLiteAudit(db)

	rec, err := New(registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 0, Label: "pulse"},
	}, Deps{History: history, Audit: audit})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.Stop()

	result, err := audit.List(context.Background(), AuditFilter{Device: "sim0"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 4 {
		t.Fatalf("expected 4 lifecycle entries, got %d", result.Total)
	}

	seen := make(map[string]bool)
	for _, e := range result.Entries {
		seen[e.Event] = true
	}
	for _, want := range []string{AuditRequested, AuditEnabled, AuditDisabled, AuditReleased} {
		if !seen[want] {
			t.Errorf("missing %q audit entry", want)
		}
	}
}

func TestRecorder_StartFailureReleasesEarlierChannels(t *testing.T) {
	registry, _ := newTestEngine(t, "sim0", 2)

	db := setupTestDB(t)
	history := NewSQLiteHistory(db)

	// Line 5 is out of range, so the second request fails.
	rec, err := New(registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 0},
		{Provider: "sim0", Line: 5},
	}, Deps{History: history})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := rec.Start(context.Background()); err == nil {
		t.Fatal("Start should fail when a monitor's line cannot be requested")
	}

	// Line 0 must have been released: a fresh request succeeds.
	ch, err := registry.Request("sim0", 0,
		func(hte.Timestamp, any) hte.CallbackReturn { return hte.Handled },
		hte.RequestOptions{})
	if err != nil {
		t.Fatalf("line 0 still held after failed Start: %v", err)
	}
	ch.Release()
}

func TestRecorder_DropsWhenRingFull(t *testing.T) {
	registry, p := newTestEngine(t, "sim0", 1)

	db := setupTestDB(t)
	history := &blockingHistory{inner: NewSQLiteHistory(db), gate: make(chan struct{})}

	rec, err := New(registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 0, Buffer: 2},
	}, Deps{History: history})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rec.Stop()

	// With the sink blocked, the ring can absorb its capacity plus the
	// one entry the worker has already pulled out; everything past that
	// is dropped on the push path.
	var sawDrop bool
	for i := 0; i < 10; i++ {
		outcome, err := p.Fire(0, hte.DirRising)
		if err != nil {
			t.Fatalf("Fire: %v", err)
		}
		if outcome == hte.OutcomeDropped {
			sawDrop = true
		}
	}
	if !sawDrop {
		t.Error("expected at least one dropped event with the sink blocked")
	}

	stats := rec.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected 1 monitor, got %d", len(stats))
	}
	if stats[0].Dropped == 0 {
		t.Error("monitor drop counter not incremented")
	}
	if stats[0].Seq != 10 {
		t.Errorf("seq = %d, want 10: sequence advances for dropped events too", stats[0].Seq)
	}

	// Unblock the sink so Stop can flush the ring.
	close(history.gate)
	waitForHistory(t, history, HistoryFilter{}, int(stats[0].Received))
}

func TestRecorder_StatsAndChannel(t *testing.T) {
	registry, p := newTestEngine(t, "sim0", 4)
	rec, history, _ := newTestRecorder(t, registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 3, Label: "irq"},
	})

	ch, ok := rec.Channel("sim0", 3)
	if !ok {
		t.Fatal("Channel(sim0, 3) not found")
	}
	if !ch.Enabled() {
		t.Error("channel should be enabled after Start")
	}

	if _, ok := rec.Channel("sim0", 1); ok {
		t.Error("Channel should not find unmonitored lines")
	}

	if _, err := p.Fire(3, hte.DirRising); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	waitForHistory(t, history, HistoryFilter{}, 1)

	stats := rec.Stats()
	if len(stats) != 1 {
		t.Fatalf("expected 1 monitor, got %d", len(stats))
	}
	s := stats[0]
	if s.Device != "sim0" || s.Line != 3 || s.Label != "irq" {
		t.Errorf("stats identity wrong: %+v", s)
	}
	if s.Received != 1 || s.Seq != 1 {
		t.Errorf("received = %d seq = %d, want 1 and 1", s.Received, s.Seq)
	}

	// Runtime disable through the exposed channel gates delivery at the
	// provider, so the fire is suppressed before it reaches dispatch.
	if err := ch.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if _, err := p.Fire(3, hte.DirFalling); err != nil {
		t.Fatalf("Fire while disabled: %v", err)
	}

	stats = rec.Stats()
	if stats[0].Received != 1 {
		t.Errorf("received = %d after disabled fire, want 1", stats[0].Received)
	}
	if got := p.Stats().Suppressed; got != 1 {
		t.Errorf("provider suppressed = %d after disabled fire, want 1", got)
	}
}

func TestRecorder_Broadcast(t *testing.T) {
	registry, p := newTestEngine(t, "sim0", 2)

	db := setupTestDB(t)
	history := NewSQLiteHistory(db)

	var mu sync.Mutex
	var events []HistoryRecord

	rec, err := New(registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 0, Label: "pulse"},
	}, Deps{
		History: history,
		Broadcast: func(r HistoryRecord) {
			mu.Lock()
			events = append(events, r)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := p.Fire(0, hte.DirRising); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	// Stop joins the drain worker, so the broadcast is delivered by the
	// time it returns.
	rec.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected 1 broadcast event, got %d", len(events))
	}
	if events[0].Label != "pulse" || events[0].Seq != 1 {
		t.Errorf("unexpected broadcast event: %+v", events[0])
	}
}

func TestRecorder_AutoLabelFixedAtConstruction(t *testing.T) {
	registry, p := newTestEngine(t, "sim0", 4)

	db := setupTestDB(t)
	history := NewSQLiteHistory(db)

	rec, err := New(registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 2},
	}, Deps{History: history})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The label is final before any channel exists, so nothing the drain
	// worker reads is mutated once delivery can begin.
	if got := rec.Stats()[0].Label; got != "ts_2" {
		t.Fatalf("label before Start = %q, want ts_2", got)
	}

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rec.Stop()

	ch, _ := rec.Channel("sim0", 2)
	if ch.Label() != "ts_2" {
		t.Errorf("engine label = %q, want ts_2", ch.Label())
	}

	if _, err := p.Fire(2, hte.DirRising); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	result := waitForHistory(t, history, HistoryFilter{}, 1)
	if result.Records[0].Label != "ts_2" {
		t.Errorf("recorded label = %q, want ts_2", result.Records[0].Label)
	}
}

func TestRecorder_ChannelStatsPublishedOnDrops(t *testing.T) {
	registry, p := newTestEngine(t, "sim0", 1)

	db := setupTestDB(t)
	history := &blockingHistory{inner: NewSQLiteHistory(db), gate: make(chan struct{})}
	writer := &captureStatsWriter{}

	rec, err := New(registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 0, Label: "pulse", Buffer: 2},
	}, Deps{History: history, TS: []TimestampWriter{writer}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := p.Fire(0, hte.DirRising); err != nil {
			t.Fatalf("Fire: %v", err)
		}
	}

	// Unblock the sink; Stop joins the drain worker, which emits the
	// counters once the ring is empty.
	close(history.gate)
	rec.Stop()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.stats) == 0 {
		t.Fatal("no channel stats written after drops")
	}
	last := writer.stats[len(writer.stats)-1]
	if last.device != "sim0" || last.line != 0 || last.label != "pulse" {
		t.Errorf("stats identity wrong: %+v", last)
	}
	if last.dropped == 0 {
		t.Error("stats dropped counter is zero after drops")
	}
	if last.seq != 10 {
		t.Errorf("stats seq = %d, want 10", last.seq)
	}
}

func TestRecorder_NoChannelStatsWithoutDrops(t *testing.T) {
	registry, p := newTestEngine(t, "sim0", 1)

	writer := &captureStatsWriter{}
	db := setupTestDB(t)

	rec, err := New(registry, []config.MonitorConfig{
		{Provider: "sim0", Line: 0},
	}, Deps{History: NewSQLiteHistory(db), TS: []TimestampWriter{writer}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := p.Fire(0, hte.DirRising); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	rec.Stop()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.timestamps == 0 {
		t.Error("timestamp writer not invoked")
	}
	if len(writer.stats) != 0 {
		t.Errorf("stats written without drops: %+v", writer.stats)
	}
}

func TestRecorder_RequiresHistory(t *testing.T) {
	registry, _ := newTestEngine(t, "sim0", 1)
	if _, err := New(registry, nil, Deps{}); err == nil {
		t.Error("New should fail without a history sink")
	}
	if _, err := New(nil, nil, Deps{History: NewSQLiteHistory(setupTestDB(t))}); err == nil {
		t.Error("New should fail without a registry")
	}
}

// captureStatsWriter records WriteTimestamp and WriteChannelStats calls.
type captureStatsWriter struct {
	mu         sync.Mutex
	timestamps int
	stats      []capturedStats
}

type capturedStats struct {
	device       string
	line         uint32
	label        string
	seq, dropped uint64
}

func (w *captureStatsWriter) WriteTimestamp(string, uint32, string, uint64, uint64, string) {
	w.mu.Lock()
	w.timestamps++
	w.mu.Unlock()
}

func (w *captureStatsWriter) WriteChannelStats(device string, line uint32, label string, seq, dropped uint64) {
	w.mu.Lock()
	w.stats = append(w.stats, capturedStats{device, line, label, seq, dropped})
	w.mu.Unlock()
}

// blockingHistory delays Insert until its gate closes, simulating a
// slow sink so the ring fills.
type blockingHistory struct {
	inner *SQLiteHistory
	gate  chan struct{}
}

func (b *blockingHistory) Insert(ctx context.Context, rec *HistoryRecord) error {
	<-b.gate
	return b.inner.Insert(ctx, rec)
}

func (b *blockingHistory) List(ctx context.Context, filter HistoryFilter) (*HistoryListResult, error) {
	return b.inner.List(ctx, filter)
}

func (b *blockingHistory) Prune(ctx context.Context, before time.Time) (int64, error) {
	return b.inner.Prune(ctx, before)
}
