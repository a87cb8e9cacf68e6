// Package hte implements the hardware timestamp engine for HWTS Core.
//
// The engine mediates between timestamping providers (components that can
// timestamp the state change of a monitored line, signal or bus) and
// consumers that want low-latency notification when a new timestamp becomes
// available on a specific channel.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                        Timestamp Engine                              │
//	│                                                                      │
//	│  ┌───────────────┐    ┌───────────────┐    ┌───────────────────┐    │
//	│  │   Registry    │    │    Device     │    │     channel       │    │
//	│  │ (registry.go) │───▶│  (device.go)  │───▶│   (channel.go)    │    │
//	│  │               │    │               │    │                   │    │
//	│  │ • by name     │    │ • line table  │    │ • request/release │    │
//	│  │ • add/remove  │    │ • pin/unpin   │    │ • enable/disable  │    │
//	│  └───────────────┘    │ • Push        │    │ • seq, dropped    │    │
//	│                       └───────────────┘    │ • worker          │    │
//	│                                            └───────────────────┘    │
//	└──────────────────────────────────────────────────────────────────────┘
//
// # Dispatch model
//
// A provider delivers each physical event by calling Device.Push with the
// translated line id and the raw counter value. Push assigns the sequence
// number and invokes the consumer's primary callback synchronously. The
// primary callback must not block and must not re-enter the engine for the
// same channel; if it needs heavier processing it returns RunDeferred, which
// wakes the channel's worker goroutine. Wakes are coalesced: several
// RunDeferred outcomes before the worker runs collapse into a single worker
// invocation, so secondary callbacks must derive pending work themselves.
//
// # Locking
//
// Each channel carries two locks. A blocking-path mutex serialises
// Request/Release/Enable/Disable against each other and is never taken by
// Push. A push-path mutex serialises Push against concurrent counter reads
// and the worker wake handoff, and is held only for bounded, non-blocking
// sections so providers may call Push from latency-critical contexts.
//
// # Usage
//
//	reg := hte.NewRegistry()
//	dev, err := reg.Register(provider)
//
//	ch, err := dev.Request(2, func(ts hte.Timestamp, data any) hte.CallbackReturn {
//	    // fast path: stash ts somewhere bounded
//	    return hte.RunDeferred
//	}, hte.RequestOptions{
//	    Secondary: func(data any) error {
//	        // slow path: drain stashed timestamps
//	        return nil
//	    },
//	})
//
//	// provider side, on each event:
//	dev.Push(xlated, value, hte.DirRising)
//
//	// teardown:
//	ch.Release()
//
// # Thread Safety
//
// All exported methods are safe for concurrent use from multiple goroutines.
package hte
