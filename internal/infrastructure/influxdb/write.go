package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTimestamp queues one drained channel event as an hw_timestamp
// point. Non-blocking; the SDK batches delivery.
//
// Parameters:
//   - device: provider device name (e.g. "sim0")
//   - line: logical line id on the device
//   - label: channel label (e.g. "pps_in")
//   - value: raw counter value of the timestamp
//   - seq: sequence number assigned on the push path
//   - direction: edge direction ("rising", "falling", or "none")
func (c *Client) WriteTimestamp(device string, line uint32, label string, value, seq uint64, direction string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"hw_timestamp",
		map[string]string{
			"device":    device,
			"line":      strconv.FormatUint(uint64(line), 10),
			"label":     label,
			"direction": direction,
		},
		map[string]interface{}{
			// Influx fields are signed; values beyond int64 range wrap,
			// which downstream queries must tolerate.
			"value": int64(value),
			"seq":   int64(seq),
		},
		time.Now(),
	))
}

// WriteChannelStats queues the per-channel delivery counters as a
// channel_stats point. The recorder publishes these whenever the drop
// counter moves.
func (c *Client) WriteChannelStats(device string, line uint32, label string, seq, dropped uint64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"channel_stats",
		map[string]string{
			"device": device,
			"line":   strconv.FormatUint(uint64(line), 10),
			"label":  label,
		},
		map[string]interface{}{
			"seq":     int64(seq),
			"dropped": int64(dropped),
		},
		time.Now(),
	))
}
