package recorder

import (
	"encoding/json"
	"time"
)

// LifecycleEvent is the payload published on a channel's lifecycle
// topic whenever its state transitions.
type LifecycleEvent struct {
	Device     string    `json:"device"`
	Line       uint32    `json:"line"`
	Label      string    `json:"label"`
	Event      string    `json:"event"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DropsEvent is the payload published on a channel's drops topic when
// its drop counter moves.
type DropsEvent struct {
	Device  string `json:"device"`
	Line    uint32 `json:"line"`
	Label   string `json:"label"`
	Seq     uint64 `json:"seq"`
	Dropped uint64 `json:"dropped"`
}

// publishLifecycle mirrors a lifecycle transition to MQTT. Best effort:
// a broker outage must not affect channel state changes.
func (r *Recorder) publishLifecycle(m *monitor, event, detail string) {
	if r.deps.MQTT == nil || !r.deps.MQTT.IsConnected() {
		return
	}

	payload, err := json.Marshal(LifecycleEvent{
		Device:     m.device,
		Line:       m.line,
		Label:      m.label,
		Event:      event,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	topic := r.topics.ChannelLifecycle(m.device, m.line)
	if err := r.deps.MQTT.Publish(topic, payload, 1, false); err != nil {
		r.deps.Logger.Warn("publishing lifecycle event",
			"device", m.device, "line", m.line, "event", event, "error", err)
	}
}

// publishDrops emits the channel counters when the drop count has moved
// since the last drain pass. Runs on the drain worker, so counter reads
// here never contend with the push path.
func (m *monitor) publishDrops() {
	dropped := m.dropped.Load()
	if dropped == m.lastDrops {
		return
	}
	m.lastDrops = dropped

	var seq uint64
	if m.ch != nil {
		seq = m.ch.Seq()
	}

	r := m.rec
	for _, w := range r.deps.TS {
		if sw, ok := w.(StatsWriter); ok {
			sw.WriteChannelStats(m.device, m.line, m.label, seq, dropped)
		}
	}

	if r.deps.MQTT == nil || !r.deps.MQTT.IsConnected() {
		return
	}
	payload, err := json.Marshal(DropsEvent{
		Device:  m.device,
		Line:    m.line,
		Label:   m.label,
		Seq:     seq,
		Dropped: dropped,
	})
	if err != nil {
		return
	}
	topic := r.topics.ChannelDrops(m.device, m.line)
	if err := r.deps.MQTT.Publish(topic, payload, 1, false); err != nil {
		r.deps.Logger.Warn("publishing drop counters",
			"device", m.device, "line", m.line, "error", err)
	}
}
