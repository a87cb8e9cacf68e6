package tsdb

import (
	"strconv"
	"strings"
	"time"
)

// WriteTimestamp queues one drained channel event as an hw_timestamp
// sample. Non-blocking; delivery is batched.
//
// Parameters:
//   - device: provider device name (e.g. "sim0")
//   - line: logical line id on the device
//   - label: channel label (e.g. "pps_in")
//   - value: raw counter value of the timestamp
//   - seq: sequence number assigned on the push path
//   - direction: edge direction ("rising", "falling", or "none")
func (c *Client) WriteTimestamp(device string, line uint32, label string, value, seq uint64, direction string) {
	var b strings.Builder
	b.WriteString("hw_timestamp,device=")
	b.WriteString(escapeTag(device))
	b.WriteString(",line=")
	b.WriteString(strconv.FormatUint(uint64(line), 10))
	b.WriteString(",label=")
	b.WriteString(escapeTag(label))
	b.WriteString(",direction=")
	b.WriteString(escapeTag(direction))
	// Line protocol integers are signed; values beyond int64 range
	// wrap, which downstream queries must tolerate.
	b.WriteString(" value=")
	b.WriteString(strconv.FormatInt(int64(value), 10))
	b.WriteString("i,seq=")
	b.WriteString(strconv.FormatInt(int64(seq), 10))
	b.WriteString("i ")
	b.WriteString(strconv.FormatInt(time.Now().UnixNano(), 10))

	c.enqueue(b.String())
}

// WriteChannelStats queues the per-channel delivery counters as a
// channel_stats sample. The recorder publishes these whenever the drop
// counter moves, so drop bursts show up in dashboards.
func (c *Client) WriteChannelStats(device string, line uint32, label string, seq, dropped uint64) {
	var b strings.Builder
	b.WriteString("channel_stats,device=")
	b.WriteString(escapeTag(device))
	b.WriteString(",line=")
	b.WriteString(strconv.FormatUint(uint64(line), 10))
	b.WriteString(",label=")
	b.WriteString(escapeTag(label))
	b.WriteString(" seq=")
	b.WriteString(strconv.FormatInt(int64(seq), 10))
	b.WriteString("i,dropped=")
	b.WriteString(strconv.FormatInt(int64(dropped), 10))
	b.WriteString("i ")
	b.WriteString(strconv.FormatInt(time.Now().UnixNano(), 10))

	c.enqueue(b.String())
}

// escapeTag backslash-escapes the characters line protocol treats as
// delimiters and strips newlines so a hostile label cannot inject extra
// samples into the batch.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}
