package hte

import (
	"fmt"
	"sync"
)

// channel is the per-line lifecycle record. One exists for every line of a
// device, allocated with the device and individually activated by Request.
type channel struct {
	dev          *Device
	translatedID uint32

	// reqMu serialises Request/Release/Enable/Disable against each other.
	// It is never taken by the push path.
	reqMu sync.Mutex

	// pushMu guards the fields the push path touches. Held only for
	// bounded, non-blocking sections.
	pushMu     sync.Mutex
	registered bool
	disabled   bool
	seq        uint64
	dropped    uint64

	cb   PrimaryCallback
	tcb  SecondaryCallback
	data any
	wk   *worker

	label     string
	autoLabel bool
}

// info samples the channel's counters under the push-path lock.
func (c *channel) info() ChannelInfo {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	return ChannelInfo{
		TranslatedID: c.translatedID,
		Label:        c.label,
		Registered:   c.registered,
		Disabled:     c.disabled,
		Seq:          c.seq,
		Dropped:      c.dropped,
	}
}

// Channel is a consumer's descriptor for one active registration, returned
// by Device.Request. All methods are safe for concurrent use, serialised
// against each other by the channel's blocking-path lock.
type Channel struct {
	ch        *channel
	logicalID uint32
}

// Release tears the registration down.
//
// It stops and joins the channel's worker (if any) before returning, so no
// secondary callback invocation can observe consumer state torn down after
// Release completes. Local engine state is freed even when the provider's
// release call fails; the provider error is still returned so the caller
// can report it.
//
// Returns:
//   - error: ErrNotRegistered on a double release, or the provider's
//     release error (state is freed regardless)
func (c *Channel) Release() error {
	ch := c.ch
	dev := ch.dev

	ch.reqMu.Lock()
	defer ch.reqMu.Unlock()

	if !ch.registered {
		return fmt.Errorf("%w: line %d on %q", ErrNotRegistered, c.logicalID, dev.name)
	}

	// A provider failing to release hardware state must not leak engine
	// state, so the error is remembered rather than acted on.
	relErr := dev.provider.Release(ch.translatedID)
	if relErr != nil {
		dev.logger.Error("provider release failed",
			"device", dev.name, "line", c.logicalID, "error", relErr)
	}

	ch.pushMu.Lock()
	ch.seq = 0
	ch.dropped = 0
	ch.registered = false
	ch.disabled = false
	ch.pushMu.Unlock()

	dev.requestedMu.Lock()
	dev.requested--
	dev.requestedMu.Unlock()

	// Stop-and-join outside the push-path lock: the worker may be mid
	// secondary callback, and a concurrent Push may hold pushMu.
	if ch.wk != nil {
		ch.wk.stop()
		ch.wk = nil
	}

	ch.cb = nil
	ch.tcb = nil
	ch.data = nil
	ch.label = ""
	ch.autoLabel = false

	// Unpin last so the provider cannot disappear mid-release.
	dev.unpin()

	dev.logger.Debug("channel released", "device", dev.name, "line", c.logicalID)

	if relErr != nil {
		return fmt.Errorf("provider release for line %d: %w", c.logicalID, relErr)
	}
	return nil
}

// Enable resumes timestamp delivery on the channel. Enabling an already
// enabled channel is a no-op, not an error.
func (c *Channel) Enable() error {
	return c.setDisabled(false)
}

// Disable pauses timestamp delivery on the channel without releasing any
// resources. Pushes arriving while disabled still advance the sequence
// counter but return OutcomeIgnored. Disabling an already disabled channel
// is a no-op, not an error.
func (c *Channel) Disable() error {
	return c.setDisabled(true)
}

// setDisabled flips the disabled flag through the provider. The provider
// call happens with the push-path lock released — it may need its own
// hardware-serialisation locks — and the flag is only flipped on success.
func (c *Channel) setDisabled(target bool) error {
	ch := c.ch
	dev := ch.dev

	ch.reqMu.Lock()
	defer ch.reqMu.Unlock()

	if !ch.registered {
		return fmt.Errorf("%w: line %d on %q", ErrNotRegistered, c.logicalID, dev.name)
	}

	ch.pushMu.Lock()
	current := ch.disabled
	ch.pushMu.Unlock()

	if current == target {
		return nil
	}

	var err error
	if target {
		err = dev.provider.Disable(ch.translatedID)
	} else {
		err = dev.provider.Enable(ch.translatedID)
	}
	if err != nil {
		dev.logger.Warn("provider enable/disable failed",
			"device", dev.name, "line", c.logicalID, "disable", target, "error", err)
		return fmt.Errorf("provider enable/disable for line %d: %w", c.logicalID, err)
	}

	ch.pushMu.Lock()
	ch.disabled = target
	ch.pushMu.Unlock()

	return nil
}

// Enabled reports whether the channel is currently delivering timestamps.
func (c *Channel) Enabled() bool {
	c.ch.pushMu.Lock()
	defer c.ch.pushMu.Unlock()
	return c.ch.registered && !c.ch.disabled
}

// Seq returns the channel's current sequence counter.
func (c *Channel) Seq() uint64 {
	c.ch.pushMu.Lock()
	defer c.ch.pushMu.Unlock()
	return c.ch.seq
}

// Dropped returns the number of timestamps the consumer reported dropping.
func (c *Channel) Dropped() uint64 {
	c.ch.pushMu.Lock()
	defer c.ch.pushMu.Unlock()
	return c.ch.dropped
}

// Label returns the channel's human-readable name. It may have been
// synthesised by the engine when the consumer supplied none.
func (c *Channel) Label() string {
	c.ch.reqMu.Lock()
	defer c.ch.reqMu.Unlock()
	return c.ch.label
}

// LogicalID returns the consumer-facing line id used at request time.
func (c *Channel) LogicalID() uint32 {
	return c.logicalID
}

// TranslatedID returns the provider-local line id, stable for the lifetime
// of the registration.
func (c *Channel) TranslatedID() uint32 {
	return c.ch.translatedID
}

// ClockInfo reports the owning provider's clock source information.
func (c *Channel) ClockInfo() (ClockInfo, error) {
	return c.ch.dev.provider.ClockInfo()
}

// Device returns the owning device.
func (c *Channel) Device() *Device {
	return c.ch.dev
}
