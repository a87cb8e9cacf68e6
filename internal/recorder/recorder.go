package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hwts/hwts-core/internal/hte"
	"github.com/hwts/hwts-core/internal/infrastructure/config"
	"github.com/hwts/hwts-core/internal/infrastructure/mqtt"
)

// defaultRingCapacity is the per-monitor buffer between the push path
// and the drain worker when the config does not specify one.
const defaultRingCapacity = 64

// sinkTimeout bounds each SQLite insert performed by the drain worker.
const sinkTimeout = 5 * time.Second

// Logger is the minimal logging interface the recorder needs.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TimestampWriter is the subset of the time-series clients the recorder
// uses. Both influxdb.Client and tsdb.Client satisfy it.
type TimestampWriter interface {
	WriteTimestamp(device string, line uint32, label string, value, seq uint64, direction string)
}

// StatsWriter is implemented by timestamp writers that can also record
// per-channel counters. Checked by type assertion so a TimestampWriter
// without stats support still works.
type StatsWriter interface {
	WriteChannelStats(device string, line uint32, label string, seq, dropped uint64)
}

// Deps carries the sinks a Recorder fans out to. History is required;
// everything else is optional and skipped when nil.
type Deps struct {
	History   History
	Audit     Audit
	MQTT      *mqtt.Client
	TS        []TimestampWriter
	Broadcast func(HistoryRecord)
	Logger    Logger
}

// Recorder owns the configured monitors: it requests their channels at
// startup, drains delivered timestamps to the sinks, and releases the
// channels on shutdown.
type Recorder struct {
	registry *hte.Registry
	deps     Deps
	topics   mqtt.Topics

	// broadcast is read by every drain worker and may be swapped at
	// runtime, so it lives behind an atomic pointer rather than r.mu.
	broadcast atomic.Pointer[func(HistoryRecord)]

	mu       sync.Mutex
	monitors []*monitor
	started  bool
}

// monitor is one recorded channel and its ring buffer.
type monitor struct {
	rec    *Recorder
	device string
	line   uint32
	label  string

	ch *hte.Channel

	// Ring buffer between the push path and the drain worker. The
	// primary callback appends under mu; the worker drains under mu.
	ringMu sync.Mutex
	ring   []hte.Timestamp
	head   int
	count  int

	received atomic.Uint64
	dropped  atomic.Uint64

	// lastDrops is the drop count as of the last stats publication.
	// Owned by the drain worker; never touched on the push path.
	lastDrops uint64
}

// MonitorStats is a point-in-time snapshot of one monitor.
type MonitorStats struct {
	Device   string `json:"device"`
	Line     uint32 `json:"line"`
	Label    string `json:"label"`
	Enabled  bool   `json:"enabled"`
	Seq      uint64 `json:"seq"`
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
	Pending  int    `json:"pending"`
}

// New creates a Recorder for the configured monitors.
//
// Parameters:
//   - registry: Engine registry to request channels from
//   - cfgs: Monitor definitions from config.yaml
//   - deps: Output sinks (History is required)
//
// Returns:
//   - *Recorder: Ready to Start
//   - error: If deps are incomplete
func New(registry *hte.Registry, cfgs []config.MonitorConfig, deps Deps) (*Recorder, error) {
	if registry == nil {
		return nil, fmt.Errorf("recorder: registry is required")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("recorder: history sink is required")
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	r := &Recorder{
		registry: registry,
		deps:     deps,
	}
	if deps.Broadcast != nil {
		r.broadcast.Store(&deps.Broadcast)
	}

	for _, cfg := range cfgs {
		buffer := cfg.Buffer
		if buffer <= 0 {
			buffer = defaultRingCapacity
		}
		// The drain worker reads label without holding r.mu, so it must
		// be final before the channel is registered. Mirror the engine's
		// auto-label here rather than reading it back after Request.
		label := cfg.Label
		if label == "" {
			label = fmt.Sprintf("ts_%d", cfg.Line)
		}
		r.monitors = append(r.monitors, &monitor{
			rec:    r,
			device: cfg.Provider,
			line:   cfg.Line,
			label:  label,
			ring:   make([]hte.Timestamp, buffer),
		})
	}

	return r, nil
}

// Start requests and enables every configured channel.
//
// Channels requested before a failure are released again, so Start
// either brings up all monitors or none.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("recorder: already started")
	}

	for i, m := range r.monitors {
		ch, err := r.registry.Request(m.device, m.line, monitorPrimary, hte.RequestOptions{
			Label:        m.label,
			Secondary:    monitorSecondary,
			ConsumerData: m,
		})
		if err != nil {
			r.teardownLocked(r.monitors[:i])
			return fmt.Errorf("recorder: requesting %s line %d: %w", m.device, m.line, err)
		}
		m.ch = ch
		r.audit(ctx, m, AuditRequested, "")

		if err := ch.Enable(); err != nil {
			r.teardownLocked(r.monitors[:i+1])
			return fmt.Errorf("recorder: enabling %s line %d: %w", m.device, m.line, err)
		}
		r.audit(ctx, m, AuditEnabled, "")
	}

	r.started = true
	r.listenCommands()
	r.deps.Logger.Info("recorder started", "monitors", len(r.monitors))
	return nil
}

// Stop disables and releases every channel. Release joins each
// monitor's drain worker, so buffered timestamps are flushed before
// Stop returns.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}

	r.stopCommands()
	r.teardownLocked(r.monitors)
	r.started = false
	r.deps.Logger.Info("recorder stopped")
}

// teardownLocked releases the given monitors. Caller holds r.mu.
func (r *Recorder) teardownLocked(monitors []*monitor) {
	for _, m := range monitors {
		if m.ch == nil {
			continue
		}
		if err := m.ch.Disable(); err != nil {
			r.deps.Logger.Warn("disabling channel",
				"device", m.device, "line", m.line, "error", err)
		} else {
			r.audit(context.Background(), m, AuditDisabled, "")
		}
		if err := m.ch.Release(); err != nil {
			r.deps.Logger.Warn("releasing channel",
				"device", m.device, "line", m.line, "error", err)
			r.audit(context.Background(), m, AuditReleased, err.Error())
		} else {
			r.audit(context.Background(), m, AuditReleased, "")
		}
		m.ch = nil
	}
}

// audit records a lifecycle entry in the audit trail and mirrors it to
// the channel's MQTT lifecycle topic.
func (r *Recorder) audit(ctx context.Context, m *monitor, event, detail string) {
	if r.deps.Audit != nil {
		ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := r.deps.Audit.Record(ctx, &AuditEntry{
			Device: m.device,
			Line:   m.line,
			Label:  m.label,
			Event:  event,
			Detail: detail,
		})
		cancel()
		if err != nil {
			r.deps.Logger.Warn("recording audit entry",
				"device", m.device, "line", m.line, "event", event, "error", err)
		}
	}

	r.publishLifecycle(m, event, detail)
}

// Stats returns a snapshot of every monitor.
func (r *Recorder) Stats() []MonitorStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]MonitorStats, 0, len(r.monitors))
	for _, m := range r.monitors {
		s := MonitorStats{
			Device:   m.device,
			Line:     m.line,
			Label:    m.label,
			Received: m.received.Load(),
			Dropped:  m.dropped.Load(),
		}
		if m.ch != nil {
			s.Enabled = m.ch.Enabled()
			s.Seq = m.ch.Seq()
		}
		m.ringMu.Lock()
		s.Pending = m.count
		m.ringMu.Unlock()
		stats = append(stats, s)
	}
	return stats
}

// SetBroadcast installs or replaces the per-event broadcast hook. Safe to
// call while the recorder is running.
func (r *Recorder) SetBroadcast(fn func(HistoryRecord)) {
	if fn == nil {
		r.broadcast.Store(nil)
		return
	}
	r.broadcast.Store(&fn)
}

// Channel returns the engine channel for a monitored device/line pair.
// Used by the API to enable/disable monitors at runtime.
func (r *Recorder) Channel(device string, line uint32) (*hte.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.monitors {
		if m.device == device && m.line == line && m.ch != nil {
			return m.ch, true
		}
	}
	return nil, false
}

// monitorPrimary runs on the provider's push path. It copies the
// timestamp into the ring and defers all real work to the drain worker.
func monitorPrimary(ts hte.Timestamp, data any) hte.CallbackReturn {
	m := data.(*monitor)

	m.ringMu.Lock()
	if m.count == len(m.ring) {
		m.ringMu.Unlock()
		m.dropped.Add(1)
		return hte.TSDropped
	}
	m.ring[(m.head+m.count)%len(m.ring)] = ts
	m.count++
	m.ringMu.Unlock()

	m.received.Add(1)
	return hte.RunDeferred
}

// monitorSecondary drains the ring outside the push path and fans each
// entry out to the sinks.
func monitorSecondary(data any) error {
	m := data.(*monitor)

	var firstErr error
	for {
		m.ringMu.Lock()
		if m.count == 0 {
			m.ringMu.Unlock()
			m.publishDrops()
			return firstErr
		}
		ts := m.ring[m.head]
		m.head = (m.head + 1) % len(m.ring)
		m.count--
		m.ringMu.Unlock()

		if err := m.deliver(ts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
}

// deliver writes one timestamp to every configured sink.
func (m *monitor) deliver(ts hte.Timestamp) error {
	rec := HistoryRecord{
		Device:     m.device,
		Line:       m.line,
		Label:      m.label,
		Value:      ts.Value,
		Seq:        ts.Seq,
		Direction:  ts.Dir.String(),
		RecordedAt: time.Now().UTC(),
	}

	r := m.rec

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	err := r.deps.History.Insert(ctx, &rec)
	cancel()
	if err != nil {
		return fmt.Errorf("recorder: persisting timestamp for %s line %d: %w", m.device, m.line, err)
	}

	if r.deps.MQTT != nil && r.deps.MQTT.IsConnected() {
		payload, merr := json.Marshal(rec)
		if merr == nil {
			topic := r.topics.ChannelTimestamp(m.device, m.line)
			if perr := r.deps.MQTT.Publish(topic, payload, 1, false); perr != nil {
				r.deps.Logger.Warn("publishing timestamp",
					"device", m.device, "line", m.line, "error", perr)
			}
		}
	}

	for _, w := range r.deps.TS {
		w.WriteTimestamp(m.device, m.line, m.label, ts.Value, ts.Seq, ts.Dir.String())
	}

	if fn := r.broadcast.Load(); fn != nil {
		(*fn)(rec)
	}

	return nil
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
