package hte

import (
	"errors"
	"testing"
)

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name     string
		provider Provider
	}{
		{"nil provider", nil},
		{"empty name", newMockProvider("", 4)},
		{"zero lines", newMockProvider("gpio0", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Register(tt.provider); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Register() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Register(newMockProvider("gpio0", 4)); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if _, err := reg.Register(newMockProvider("gpio0", 8)); !errors.Is(err, ErrAlreadyInUse) {
		t.Errorf("duplicate Register() error = %v, want ErrAlreadyInUse", err)
	}
}

func TestLookup(t *testing.T) {
	reg := NewRegistry()

	dev, err := reg.Register(newMockProvider("gpio0", 4))
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	got, err := reg.Lookup("gpio0")
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if got != dev {
		t.Error("Lookup() returned a different device")
	}

	if _, err := reg.Lookup("gpio1"); !errors.Is(err, ErrDeviceGone) {
		t.Errorf("Lookup() of unknown name error = %v, want ErrDeviceGone", err)
	}
}

func TestUnregister(t *testing.T) {
	reg := NewRegistry()

	dev, err := reg.Register(newMockProvider("gpio0", 4))
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if err := reg.Unregister(dev); err != nil {
		t.Fatalf("Unregister() failed: %v", err)
	}

	if _, err := reg.Lookup("gpio0"); !errors.Is(err, ErrDeviceGone) {
		t.Errorf("Lookup() after unregister error = %v, want ErrDeviceGone", err)
	}

	// Re-registering the same device must fail.
	if err := reg.Unregister(dev); !errors.Is(err, ErrDeviceGone) {
		t.Errorf("double Unregister() error = %v, want ErrDeviceGone", err)
	}
}

func TestRequestAfterUnregisterFails(t *testing.T) {
	reg := NewRegistry()

	dev, err := reg.Register(newMockProvider("gpio0", 4))
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := reg.Unregister(dev); err != nil {
		t.Fatalf("Unregister() failed: %v", err)
	}

	// The device handle may still be held by a provider mid-teardown;
	// requesting through it must fail on the liveness guard.
	_, err = dev.Request(0, func(Timestamp, any) CallbackReturn { return Handled }, RequestOptions{})
	if !errors.Is(err, ErrDeviceGone) {
		t.Errorf("Request() after unregister error = %v, want ErrDeviceGone", err)
	}
}

func TestRegistryRequestByName(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Register(newMockProvider("gpio0", 4)); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	ch, err := reg.Request("gpio0", 1, func(Timestamp, any) CallbackReturn { return Handled }, RequestOptions{})
	if err != nil {
		t.Fatalf("Request() by name failed: %v", err)
	}
	defer func() {
		if relErr := ch.Release(); relErr != nil {
			t.Errorf("Release() failed: %v", relErr)
		}
	}()

	if _, err := reg.Request("nope", 1, func(Timestamp, any) CallbackReturn { return Handled }, RequestOptions{}); !errors.Is(err, ErrDeviceGone) {
		t.Errorf("Request() on unknown provider error = %v, want ErrDeviceGone", err)
	}
}

func TestDevicesSnapshot(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Register(newMockProvider("irq0", 2)); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if _, err := reg.Register(newMockProvider("gpio0", 4)); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	infos := reg.Devices()
	if len(infos) != 2 {
		t.Fatalf("Devices() returned %d entries, want 2", len(infos))
	}
	// Sorted by name.
	if infos[0].Name != "gpio0" || infos[1].Name != "irq0" {
		t.Errorf("Devices() order = %s, %s; want gpio0, irq0", infos[0].Name, infos[1].Name)
	}
	if infos[0].Lines != 4 || infos[0].Requested != 0 {
		t.Errorf("Devices()[0] = %+v, want lines=4 requested=0", infos[0])
	}

	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}
}
