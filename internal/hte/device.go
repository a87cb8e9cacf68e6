package hte

import (
	"fmt"
	"sync"
	"time"
)

// Device is the engine-side representation of one registered provider.
//
// It owns a fixed table of channels sized to the provider's line count.
// The table is allocated once at registration and never resized, so Push
// can index it without taking any device-wide lock.
type Device struct {
	provider  Provider
	name      string
	nlines    uint32
	channels  []channel
	translate func(logicalID uint32) (uint32, error)

	// requested counts channels with registered == true. Guarded by the
	// owning channel's push-path lock at each transition.
	requestedMu sync.Mutex
	requested   int

	// Liveness guard standing in for module pinning: a channel request
	// pins the device, release unpins it, and unregistration marks it
	// closing so new pins fail with ErrDeviceGone.
	guardMu sync.Mutex
	pins    int
	closing bool

	registeredAt time.Time
	logger       Logger
}

func newDevice(p Provider, logger Logger) *Device {
	d := &Device{
		provider:     p,
		name:         p.Name(),
		nlines:       p.Lines(),
		channels:     make([]channel, p.Lines()),
		registeredAt: time.Now().UTC(),
		logger:       logger,
	}

	for i := range d.channels {
		d.channels[i].dev = d
		d.channels[i].translatedID = uint32(i)
	}

	// Install the identity translation when the provider has no internal
	// mapping of its own.
	if tr, ok := p.(Translator); ok {
		d.translate = tr.Translate
	} else {
		d.translate = d.identityTranslate
	}

	return d
}

// identityTranslate maps a logical id straight onto the translated id,
// bounded by the line count.
func (d *Device) identityTranslate(logicalID uint32) (uint32, error) {
	if logicalID >= d.nlines {
		return 0, fmt.Errorf("%w: line %d out of range (device has %d)",
			ErrInvalidArgument, logicalID, d.nlines)
	}
	return logicalID, nil
}

// pin takes a liveness reference on the device. It fails once the provider
// is mid-teardown, so a consumer can never complete a request against a
// device whose unregistration has begun.
func (d *Device) pin() error {
	d.guardMu.Lock()
	defer d.guardMu.Unlock()

	if d.closing {
		return fmt.Errorf("%w: provider %q is shutting down", ErrDeviceGone, d.name)
	}
	d.pins++
	return nil
}

// unpin drops a liveness reference.
func (d *Device) unpin() {
	d.guardMu.Lock()
	d.pins--
	d.guardMu.Unlock()
}

// markClosing flags the device so further pins fail.
func (d *Device) markClosing() {
	d.guardMu.Lock()
	d.closing = true
	d.guardMu.Unlock()
}

// RequestOptions holds the optional parts of a channel request.
type RequestOptions struct {
	// Label is a human-readable channel name. If empty, the engine
	// synthesises one from the logical id ("ts_<id>").
	Label string

	// Secondary, when set, causes the engine to create a worker goroutine
	// for the channel. The worker runs Secondary after the primary
	// callback returns RunDeferred.
	Secondary SecondaryCallback

	// ConsumerData is opaque consumer state passed back on every callback
	// invocation. Its lifetime is the consumer's responsibility, bounded
	// between a successful Request and the completion of Release.
	ConsumerData any
}

// Request registers a consumer on the channel identified by logicalID.
//
// Exactly one registration may be active per channel: a second Request for
// the same line fails with ErrAlreadyInUse until the first is released.
//
// Parameters:
//   - logicalID: consumer-facing line id, resolved through the provider's
//     translation before use
//   - cb: required primary callback, invoked synchronously on every push
//   - opts: label, optional secondary callback, opaque consumer data
//
// Returns:
//   - *Channel: descriptor for the active registration
//   - error: ErrInvalidArgument, ErrDeviceGone, ErrAlreadyInUse, or the
//     provider's request error
func (d *Device) Request(logicalID uint32, cb PrimaryCallback, opts RequestOptions) (*Channel, error) {
	if cb == nil {
		return nil, fmt.Errorf("%w: primary callback is required", ErrInvalidArgument)
	}

	xlated, err := d.translate(logicalID)
	if err != nil {
		return nil, fmt.Errorf("translating line %d: %w", logicalID, err)
	}
	if xlated >= d.nlines {
		return nil, fmt.Errorf("%w: translated id %d out of range (device has %d)",
			ErrInvalidArgument, xlated, d.nlines)
	}

	if err := d.pin(); err != nil {
		return nil, err
	}

	ch := &d.channels[xlated]

	ch.reqMu.Lock()
	defer ch.reqMu.Unlock()

	if ch.registered {
		d.unpin()
		return nil, fmt.Errorf("%w: line %d on %q", ErrAlreadyInUse, logicalID, d.name)
	}

	label := opts.Label
	autoLabel := false
	if label == "" {
		label = fmt.Sprintf("ts_%d", logicalID)
		autoLabel = true
	}

	ch.cb = cb
	ch.tcb = opts.Secondary
	ch.data = opts.ConsumerData
	if opts.Secondary != nil {
		ch.wk = startWorker(opts.Secondary, opts.ConsumerData, label, d.logger)
	}

	if reqErr := d.provider.Request(xlated); reqErr != nil {
		// Unwind: the worker must not outlive a failed request.
		if ch.wk != nil {
			ch.wk.stop()
			ch.wk = nil
		}
		ch.cb = nil
		ch.tcb = nil
		ch.data = nil
		d.unpin()
		return nil, fmt.Errorf("provider request for line %d: %w", logicalID, reqErr)
	}

	ch.label = label
	ch.autoLabel = autoLabel

	ch.pushMu.Lock()
	ch.registered = true
	ch.disabled = false
	ch.seq = 0
	ch.dropped = 0
	ch.pushMu.Unlock()

	d.requestedMu.Lock()
	d.requested++
	d.requestedMu.Unlock()

	d.logger.Debug("channel requested",
		"device", d.name, "line", logicalID, "xlated", xlated, "label", label)

	return &Channel{ch: ch, logicalID: logicalID}, nil
}

// Name returns the provider identity this device was registered under.
func (d *Device) Name() string {
	return d.name
}

// Lines returns the number of lines the device supports.
func (d *Device) Lines() uint32 {
	return d.nlines
}

// Requested returns the number of currently registered channels.
func (d *Device) Requested() int {
	d.requestedMu.Lock()
	defer d.requestedMu.Unlock()
	return d.requested
}

// Info returns a snapshot of the device's counters.
func (d *Device) Info() DeviceInfo {
	return DeviceInfo{
		Name:      d.name,
		Lines:     d.nlines,
		Requested: d.Requested(),
		SeenAt:    d.registeredAt,
	}
}

// Channels returns a snapshot of every channel's counters. Each channel is
// sampled under its own push-path lock; the snapshot as a whole is not
// atomic across channels.
func (d *Device) Channels() []ChannelInfo {
	infos := make([]ChannelInfo, len(d.channels))
	for i := range d.channels {
		infos[i] = d.channels[i].info()
	}
	return infos
}

// ClockInfo reports the provider's clock source information.
func (d *Device) ClockInfo() (ClockInfo, error) {
	return d.provider.ClockInfo()
}
