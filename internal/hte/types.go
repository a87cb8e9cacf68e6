package hte

import "time"

// Direction describes the signal edge that produced a timestamp.
type Direction int

// Signal edge directions.
const (
	// DirRising indicates a rising-edge event.
	DirRising Direction = iota

	// DirFalling indicates a falling-edge event.
	DirFalling

	// DirNone indicates the provider does not report edge direction.
	DirNone
)

// String returns a human-readable direction name.
func (d Direction) String() string {
	switch d {
	case DirRising:
		return "rising"
	case DirFalling:
		return "falling"
	default:
		return "none"
	}
}

// Timestamp is one hardware timestamp as delivered to a consumer.
//
// The provider fills Value and Dir; the engine assigns Seq during dispatch.
type Timestamp struct {
	// Value is the raw counter value in nanoseconds.
	Value uint64 `json:"value"`

	// Seq is the per-channel sequence number, assigned by the engine.
	// It counts physical events seen by dispatch, not delivered events:
	// it advances even when the channel is disabled.
	Seq uint64 `json:"seq"`

	// Dir is the signal edge that produced the event.
	Dir Direction `json:"dir"`
}

// CallbackReturn is returned by a consumer's primary callback to tell the
// engine what to do next with the just-delivered timestamp.
type CallbackReturn int

const (
	// Handled means the consumer fully processed the timestamp.
	Handled CallbackReturn = iota

	// RunDeferred means the consumer needs further processing outside the
	// push context; the engine wakes the channel's worker goroutine.
	RunDeferred

	// TSDropped means the consumer could not store the timestamp.
	// The engine increments the channel's dropped counter.
	TSDropped

	// CallbackError means something went wrong consumer-side. The engine
	// logs it; no channel state changes.
	CallbackError
)

// Outcome is the result of a single Device.Push dispatch.
type Outcome int

const (
	// OutcomeHandled: the primary callback consumed the timestamp.
	OutcomeHandled Outcome = iota

	// OutcomeDeferred: the worker was woken (or a wake was already pending).
	OutcomeDeferred

	// OutcomeDropped: the consumer reported it dropped the timestamp.
	OutcomeDropped

	// OutcomeError: the consumer reported a callback error.
	OutcomeError

	// OutcomeIgnored: the channel was not registered or was disabled.
	// Not an error — providers may legitimately push after release has
	// logically begun.
	OutcomeIgnored
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeDropped:
		return "dropped"
	case OutcomeError:
		return "error"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// PrimaryCallback is invoked synchronously from the push path for every
// dispatched timestamp.
//
// The callback runs with the channel's push-path lock held: it must not
// block, must not allocate on hot paths where avoidable, and must not
// re-enter the engine for the same channel.
type PrimaryCallback func(ts Timestamp, data any) CallbackReturn

// SecondaryCallback runs on the channel's worker goroutine after the primary
// callback returns RunDeferred. The returned error is logged and otherwise
// ignored.
//
// Wakes are coalesced, so one invocation may correspond to several pushes.
type SecondaryCallback func(data any) error

// ClockInfo describes the clock a provider timestamps against.
type ClockInfo struct {
	// RateHz is the counter rate in Hz.
	RateHz uint64 `json:"rate_hz"`

	// Clock identifies the clock domain the counter follows.
	Clock ClockID `json:"clock"`
}

// ClockID identifies a provider's clock domain.
type ClockID int

// Clock domains.
const (
	ClockMonotonic ClockID = iota
	ClockRealtime
)

// String returns a human-readable clock domain name.
func (c ClockID) String() string {
	if c == ClockRealtime {
		return "realtime"
	}
	return "monotonic"
}

// ChannelInfo is a point-in-time snapshot of one channel's counters,
// exposed for the observability surface. It has no behavioural feedback
// into the engine.
type ChannelInfo struct {
	TranslatedID uint32 `json:"translated_id"`
	Label        string `json:"label,omitempty"`
	Registered   bool   `json:"registered"`
	Disabled     bool   `json:"disabled"`
	Seq          uint64 `json:"seq"`
	Dropped      uint64 `json:"dropped"`
}

// DeviceInfo is a point-in-time snapshot of one registered device.
type DeviceInfo struct {
	Name      string    `json:"name"`
	Lines     uint32    `json:"lines"`
	Requested int       `json:"requested"`
	SeenAt    time.Time `json:"seen_at"`
}

// Logger is the logging interface used by the engine. It matches the slog
// call shape so logging.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
