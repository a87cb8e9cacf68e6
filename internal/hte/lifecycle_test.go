package hte

import (
	"errors"
	"sync"
	"testing"
)

func handledCB(Timestamp, any) CallbackReturn { return Handled }

func mustRegister(t *testing.T, p Provider) *Device {
	t.Helper()
	dev, err := NewRegistry().Register(p)
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return dev
}

func TestRequestRequiresCallback(t *testing.T) {
	dev := mustRegister(t, newMockProvider("gpio0", 4))

	if _, err := dev.Request(0, nil, RequestOptions{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Request() with nil callback error = %v, want ErrInvalidArgument", err)
	}
}

func TestRequestBounds(t *testing.T) {
	dev := mustRegister(t, newMockProvider("gpio0", 4))

	if _, err := dev.Request(4, handledCB, RequestOptions{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Request() out of range error = %v, want ErrInvalidArgument", err)
	}
}

func TestRequestCallsProvider(t *testing.T) {
	p := newMockProvider("gpio0", 4)
	dev := mustRegister(t, p)

	ch, err := dev.Request(2, handledCB, RequestOptions{Label: "pps-in"})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}

	if got := p.calls(p.requests, 2); got != 1 {
		t.Errorf("provider request calls = %d, want 1", got)
	}
	if ch.Label() != "pps-in" {
		t.Errorf("Label() = %q, want pps-in", ch.Label())
	}
	if dev.Requested() != 1 {
		t.Errorf("Requested() = %d, want 1", dev.Requested())
	}
	if !ch.Enabled() {
		t.Error("channel should be enabled after request")
	}

	if err := ch.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if got := p.calls(p.releases, 2); got != 1 {
		t.Errorf("provider release calls = %d, want 1", got)
	}
	if dev.Requested() != 0 {
		t.Errorf("Requested() after release = %d, want 0", dev.Requested())
	}
}

func TestRequestAutoLabel(t *testing.T) {
	dev := mustRegister(t, newMockProvider("gpio0", 8))

	ch, err := dev.Request(5, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	defer func() { _ = ch.Release() }()

	if ch.Label() != "ts_5" {
		t.Errorf("auto label = %q, want ts_5", ch.Label())
	}
}

func TestRequestProviderFailureUnwinds(t *testing.T) {
	p := newMockProvider("gpio0", 4)
	p.requestErr = errors.New("fifo full")
	dev := mustRegister(t, p)

	_, err := dev.Request(1, handledCB, RequestOptions{
		Secondary: func(any) error { return nil },
	})
	if err == nil || !errors.Is(err, p.requestErr) {
		t.Fatalf("Request() error = %v, want wrapped provider error", err)
	}

	// The failed request must leave the channel fully available.
	p.requestErr = nil
	ch, err := dev.Request(1, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() after unwind failed: %v", err)
	}
	defer func() { _ = ch.Release() }()

	if dev.Requested() != 1 {
		t.Errorf("Requested() = %d, want 1", dev.Requested())
	}
}

func TestSingleRegistrationConcurrent(t *testing.T) {
	dev := mustRegister(t, newMockProvider("gpio0", 4))

	const attempts = 16

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := dev.Request(2, handledCB, RequestOptions{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, busy := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyInUse):
			busy++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("successful requests = %d, want exactly 1", succeeded)
	}
	if busy != attempts-1 {
		t.Errorf("busy requests = %d, want %d", busy, attempts-1)
	}
}

func TestDoubleRequestFails(t *testing.T) {
	dev := mustRegister(t, newMockProvider("gpio0", 4))

	ch, err := dev.Request(0, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}

	if _, err := dev.Request(0, handledCB, RequestOptions{}); !errors.Is(err, ErrAlreadyInUse) {
		t.Errorf("second Request() error = %v, want ErrAlreadyInUse", err)
	}

	// Released channels can be requested again.
	if err := ch.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	ch2, err := dev.Request(0, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() after release failed: %v", err)
	}
	_ = ch2.Release()
}

func TestReleaseNotRegistered(t *testing.T) {
	dev := mustRegister(t, newMockProvider("gpio0", 4))

	ch, err := dev.Request(1, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	if err := ch.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	if err := ch.Release(); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("double Release() error = %v, want ErrNotRegistered", err)
	}
}

func TestReleaseResetsCounters(t *testing.T) {
	p := newMockProvider("gpio0", 4)
	dev := mustRegister(t, p)

	ch, err := dev.Request(0, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := dev.Push(0, uint64(100*(i+1)), DirRising); err != nil {
			t.Fatalf("Push() failed: %v", err)
		}
	}
	if ch.Seq() != 3 {
		t.Fatalf("Seq() = %d, want 3", ch.Seq())
	}

	if err := ch.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	// Counters must be zeroed for the next registration.
	ch2, err := dev.Request(0, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	defer func() { _ = ch2.Release() }()

	if ch2.Seq() != 0 || ch2.Dropped() != 0 {
		t.Errorf("counters after re-request: seq=%d dropped=%d, want 0, 0", ch2.Seq(), ch2.Dropped())
	}
}

func TestReleaseFreesStateOnProviderFailure(t *testing.T) {
	p := newMockProvider("gpio0", 4)
	p.releaseErr = errors.New("register write failed")
	dev := mustRegister(t, p)

	ch, err := dev.Request(2, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}

	// The provider error is reported, but engine state is freed regardless:
	// a provider failing to release hardware must not leak the channel.
	if err := ch.Release(); !errors.Is(err, p.releaseErr) {
		t.Errorf("Release() error = %v, want wrapped provider error", err)
	}

	if dev.Requested() != 0 {
		t.Errorf("Requested() = %d, want 0", dev.Requested())
	}

	p.releaseErr = nil
	ch2, err := dev.Request(2, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() after failed release: %v", err)
	}
	_ = ch2.Release()
}

func TestEnableDisable(t *testing.T) {
	p := newMockProvider("gpio0", 4)
	dev := mustRegister(t, p)

	ch, err := dev.Request(1, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	defer func() { _ = ch.Release() }()

	if err := ch.Disable(); err != nil {
		t.Fatalf("Disable() failed: %v", err)
	}
	if ch.Enabled() {
		t.Error("channel should be disabled")
	}
	// Idempotent no-op: the provider is not called again.
	if err := ch.Disable(); err != nil {
		t.Fatalf("second Disable() failed: %v", err)
	}
	if got := p.calls(p.disables, 1); got != 1 {
		t.Errorf("provider disable calls = %d, want 1", got)
	}

	if err := ch.Enable(); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	if !ch.Enabled() {
		t.Error("channel should be enabled")
	}
	if err := ch.Enable(); err != nil {
		t.Fatalf("second Enable() failed: %v", err)
	}
	if got := p.calls(p.enables, 1); got != 1 {
		t.Errorf("provider enable calls = %d, want 1", got)
	}
}

func TestEnableDisableProviderFailureLeavesFlag(t *testing.T) {
	p := newMockProvider("gpio0", 4)
	dev := mustRegister(t, p)

	ch, err := dev.Request(1, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	defer func() { _ = ch.Release() }()

	p.disableErr = errors.New("bus stuck")
	if err := ch.Disable(); !errors.Is(err, p.disableErr) {
		t.Errorf("Disable() error = %v, want wrapped provider error", err)
	}
	if !ch.Enabled() {
		t.Error("failed Disable() must leave the channel enabled")
	}
}

func TestEnableDisableNotRegistered(t *testing.T) {
	dev := mustRegister(t, newMockProvider("gpio0", 4))

	ch, err := dev.Request(1, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	if err := ch.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	if err := ch.Disable(); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Disable() on released channel error = %v, want ErrNotRegistered", err)
	}
	if err := ch.Enable(); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Enable() on released channel error = %v, want ErrNotRegistered", err)
	}
}

func TestTranslatedRequest(t *testing.T) {
	p := &offsetProvider{mockProvider: newMockProvider("tegra-gte", 8), offset: 4}
	dev := mustRegister(t, p)

	ch, err := dev.Request(2, handledCB, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	defer func() { _ = ch.Release() }()

	if ch.TranslatedID() != 6 {
		t.Errorf("TranslatedID() = %d, want 6", ch.TranslatedID())
	}
	if got := p.calls(p.requests, 6); got != 1 {
		t.Errorf("provider request calls for slot 6 = %d, want 1", got)
	}

	// A logical id the translation rejects fails the request.
	if _, err := dev.Request(7, handledCB, RequestOptions{}); err == nil {
		t.Error("Request() with unmappable line should fail")
	}
}

func TestClockInfo(t *testing.T) {
	p := newMockProvider("gpio0", 4)
	dev := mustRegister(t, p)

	ci, err := dev.ClockInfo()
	if err != nil {
		t.Fatalf("ClockInfo() failed: %v", err)
	}
	if ci.RateHz != 1_000_000_000 || ci.Clock != ClockMonotonic {
		t.Errorf("ClockInfo() = %+v", ci)
	}

	p.clockErr = ErrUnsupported
	if _, err := dev.ClockInfo(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ClockInfo() error = %v, want ErrUnsupported", err)
	}
}
