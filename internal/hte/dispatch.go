package hte

import "fmt"

// Push delivers one timestamp from the provider into the engine.
//
// This is the hot path: it takes only the channel's push-path lock, never
// blocks, and is safe to call from any goroutine concurrently with
// lifecycle operations on the same channel. The sequence counter advances
// unconditionally — it reflects physical events seen by dispatch, not
// delivered events — so a disabled channel still consumes sequence numbers.
//
// The primary callback is invoked while the push-path lock is held, which
// fully serialises dispatch per channel: for a single channel, callbacks
// observe pushes in issue order and never run concurrently.
//
// Parameters:
//   - translatedID: provider-local line id
//   - value: raw counter value in nanoseconds
//   - dir: signal edge, DirNone if the provider does not report it
//
// Returns:
//   - Outcome: what happened to this one timestamp
//   - error: ErrInvalidArgument on a bounds violation; consumer-side
//     outcomes (Dropped, Error) are terminal and never surface as errors
func (d *Device) Push(translatedID uint32, value uint64, dir Direction) (Outcome, error) {
	if translatedID >= d.nlines {
		return OutcomeIgnored, fmt.Errorf("%w: translated id %d out of range (device has %d)",
			ErrInvalidArgument, translatedID, d.nlines)
	}

	ch := &d.channels[translatedID]

	ch.pushMu.Lock()
	defer ch.pushMu.Unlock()

	ts := Timestamp{
		Value: value,
		Seq:   ch.seq,
		Dir:   dir,
	}
	ch.seq++

	if !ch.registered || ch.disabled {
		// Not an error: a provider may push after release has logically
		// begun, or while the consumer has the channel disabled.
		return OutcomeIgnored, nil
	}

	switch ch.cb(ts, ch.data) {
	case RunDeferred:
		if ch.wk == nil {
			// No secondary callback was supplied; nothing to defer to.
			return OutcomeHandled, nil
		}
		ch.wk.wakeup()
		return OutcomeDeferred, nil
	case TSDropped:
		ch.dropped++
		return OutcomeDropped, nil
	case CallbackError:
		d.logger.Debug("primary callback reported error",
			"device", d.name, "xlated", translatedID, "seq", ts.Seq)
		return OutcomeError, nil
	default:
		return OutcomeHandled, nil
	}
}
