// Package influxdb exports drained channel timestamps to InfluxDB v2.
//
// It wraps the official influxdb-client-go SDK's non-blocking write
// API. Two measurements are written:
//
//   - hw_timestamp: one point per drained event (value, seq), tagged by
//     device, line, label, and edge direction
//   - channel_stats: per-channel seq/dropped counters, written when the
//     drop counter moves
//
// Points batch inside the SDK per the configured batch_size and
// flush_interval; write failures surface through the SetOnError
// callback rather than the write calls, which never block.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTimestamp("sim0", 3, "pps_in", 123456789, 41, "rising")
package influxdb
