package sim

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hwts/hwts-core/internal/hte"
)

// Logger is the logging interface used by the provider.
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

// Options configures a simulated provider.
type Options struct {
	// Name is the provider identity used for registry lookups.
	Name string

	// Lines is the number of logical lines exposed to consumers.
	Lines uint32

	// Reserved lists logical lines with no backing slot. Translation of a
	// reserved line fails, the way hardware providers leave holes in
	// their line maps.
	Reserved []uint32

	// Logger is an optional structured logger.
	Logger Logger
}

// lineState is the provider-side bookkeeping for one slot.
type lineState struct {
	requested bool
	enabled   bool
}

// Provider is a software timestamping provider.
//
// Logical lines are translated to provider-local slots through a table
// built at construction: slots are assigned sequentially, skipping reserved
// lines, so translated ids are dense even when the logical space has holes.
type Provider struct {
	name    string
	nlines  uint32
	logger  Logger
	started time.Time

	// slots maps logical line → slot id; reserved lines are absent.
	slots    map[uint32]uint32
	numSlots uint32

	mu    sync.Mutex
	lines []lineState

	dev atomic.Pointer[hte.Device]

	events     atomic.Uint64
	suppressed atomic.Uint64
}

// Stats holds provider event counters.
type Stats struct {
	// Events is the number of events pushed into the engine.
	Events uint64

	// Suppressed is the number of events gated off before dispatch
	// because the slot was not requested or not enabled.
	Suppressed uint64
}

// New creates a simulated provider. Call Attach after registering it so
// Fire knows which device to push into.
func New(opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	reserved := make(map[uint32]bool, len(opts.Reserved))
	for _, l := range opts.Reserved {
		reserved[l] = true
	}

	// Assign slots sequentially, skipping reserved logical lines.
	slots := make(map[uint32]uint32)
	var next uint32
	for l := uint32(0); l < opts.Lines; l++ {
		if reserved[l] {
			continue
		}
		slots[l] = next
		next++
	}

	return &Provider{
		name:     opts.Name,
		nlines:   opts.Lines,
		logger:   logger,
		started:  time.Now(),
		slots:    slots,
		numSlots: next,
		lines:    make([]lineState, next),
	}
}

// Attach binds the provider to its registered device. Must be called once,
// before the first Fire.
func (p *Provider) Attach(dev *hte.Device) {
	p.dev.Store(dev)
}

// Name returns the provider identity.
func (p *Provider) Name() string { return p.name }

// Lines returns the number of usable slots. This is what the engine sizes
// its channel table to, so translated ids always index it directly.
func (p *Provider) Lines() uint32 { return p.numSlots }

// Translate maps a logical line to its slot id. Reserved and out-of-range
// lines are rejected.
func (p *Provider) Translate(logicalID uint32) (uint32, error) {
	slot, ok := p.slots[logicalID]
	if !ok {
		return 0, fmt.Errorf("sim: logical line %d is not mapped", logicalID)
	}
	return slot, nil
}

// Request reserves the slot. The engine serialises Request/Release per
// channel, so the bookkeeping here only guards against provider misuse.
func (p *Provider) Request(translatedID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if translatedID >= p.numSlots {
		return fmt.Errorf("sim: slot %d out of range", translatedID)
	}
	if p.lines[translatedID].requested {
		return fmt.Errorf("sim: slot %d already requested", translatedID)
	}
	p.lines[translatedID].requested = true
	p.lines[translatedID].enabled = true
	return nil
}

// Release frees the slot.
func (p *Provider) Release(translatedID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if translatedID >= p.numSlots {
		return fmt.Errorf("sim: slot %d out of range", translatedID)
	}
	p.lines[translatedID].requested = false
	p.lines[translatedID].enabled = false
	return nil
}

// Enable opens the slot's event gate.
func (p *Provider) Enable(translatedID uint32) error {
	return p.setEnabled(translatedID, true)
}

// Disable closes the slot's event gate. Events fired while disabled are
// suppressed provider-side and never reach the engine.
func (p *Provider) Disable(translatedID uint32) error {
	return p.setEnabled(translatedID, false)
}

func (p *Provider) setEnabled(translatedID uint32, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if translatedID >= p.numSlots {
		return fmt.Errorf("sim: slot %d out of range", translatedID)
	}
	if !p.lines[translatedID].requested {
		return fmt.Errorf("sim: slot %d not requested", translatedID)
	}
	p.lines[translatedID].enabled = enabled
	return nil
}

// ClockInfo reports the provider clock: monotonic nanoseconds since
// provider construction.
func (p *Provider) ClockInfo() (hte.ClockInfo, error) {
	return hte.ClockInfo{
		RateHz: 1_000_000_000,
		Clock:  hte.ClockMonotonic,
	}, nil
}

// Fire injects one event on a logical line and pushes its timestamp into
// the engine. This is the provider's hardware interrupt equivalent.
//
// Returns:
//   - hte.Outcome: dispatch outcome; OutcomeIgnored when the slot gate is
//     closed and the event never reached the engine
//   - error: translation failure, or the engine's push error
func (p *Provider) Fire(logicalID uint32, dir hte.Direction) (hte.Outcome, error) {
	slot, err := p.Translate(logicalID)
	if err != nil {
		return hte.OutcomeIgnored, err
	}

	// Timestamp at event observation, before any gating, the way hardware
	// latches the counter in the FIFO.
	value := uint64(time.Since(p.started).Nanoseconds())

	p.mu.Lock()
	open := p.lines[slot].requested && p.lines[slot].enabled
	p.mu.Unlock()

	if !open {
		p.suppressed.Add(1)
		return hte.OutcomeIgnored, nil
	}

	dev := p.dev.Load()
	if dev == nil {
		return hte.OutcomeIgnored, fmt.Errorf("sim: provider %q not attached", p.name)
	}

	outcome, err := dev.Push(slot, value, dir)
	if err != nil {
		return outcome, fmt.Errorf("pushing slot %d: %w", slot, err)
	}
	p.events.Add(1)
	return outcome, nil
}

// Stats returns current provider counters.
func (p *Provider) Stats() Stats {
	return Stats{
		Events:     p.events.Load(),
		Suppressed: p.suppressed.Load(),
	}
}
