// Package tsdb exports drained channel timestamps to VictoriaMetrics.
//
// VictoriaMetrics ingests InfluxDB line protocol natively, so the
// client is a thin batcher over net/http: samples accumulate in memory
// and go out as one newline-delimited POST to /write when the batch
// fills or the flush timer fires. Two measurements are written:
//
//   - hw_timestamp: one sample per drained event (value, seq), tagged
//     by device, line, label, and edge direction
//   - channel_stats: per-channel seq/dropped counters, written when the
//     drop counter moves
//
// Writes never block and never return errors; flush failures reach the
// caller through the SetOnError callback. The heavier batching SDK is
// reserved for the influxdb package — for plain line protocol an HTTP
// POST is the whole job.
package tsdb
