// Package sim implements a software timestamping provider for HWTS Core.
//
// It stands in for a hardware timestamping engine: a fixed set of monitored
// lines, a logical→slot translation table with reserved (unmappable) slots,
// a monotonic nanosecond clock, and a per-line enable gate. Events are
// injected either programmatically via Fire — from tests, the API, or
// another subsystem — or by the optional self-clocked Generator used for
// soak testing and demos.
//
// The provider is the sole caller of Device.Push for its device, mirroring
// the provider contract of the engine: real-world event → translate →
// timestamp → push.
//
// # Usage
//
//	p := sim.New(sim.Options{Name: "gpio-sim0", Lines: 16})
//	dev, err := registry.Register(p)
//	p.Attach(dev)
//
//	// somewhere, on a real or synthetic event:
//	p.Fire(3, hte.DirRising)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package sim
