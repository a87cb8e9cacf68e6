// Package recorder hosts the resident timestamp consumers.
//
// Each configured monitor requests a channel on a provider device and
// records every delivered timestamp. The primary callback runs on the
// provider's push path, so it does the minimum possible work: it copies
// the timestamp into a bounded ring and asks the engine to schedule the
// deferred worker. The worker drains the ring outside the push path and
// fans each entry out to the configured sinks:
//
//   - SQLite history (ts_history table) — always on
//   - MQTT (hwts/ts/{device}/{line}) — optional
//   - InfluxDB / VictoriaMetrics — optional
//   - In-process broadcast hook (WebSocket streaming) — optional
//
// When the ring is full the primary callback reports the timestamp as
// dropped; the engine accounts for it in the channel's drop counter and
// the monitor keeps its own tally.
//
// Channel lifecycle transitions (requested, enabled, disabled, released)
// are written to the channel_audit table for diagnostics.
package recorder
