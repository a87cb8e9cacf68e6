package hte

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the process-wide list of live devices, keyed by provider
// identity. It has explicit construction and teardown rules: devices exist
// in it between Register and Unregister, and all access goes through the
// registry's own lock. The lock is never held across a call into provider
// or consumer code.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Device
	logger  Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry and for devices registered
// after the call.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Register adds a provider to the registry and allocates its device with
// one channel per line.
//
// Parameters:
//   - p: the provider; must have a non-empty name and at least one line
//
// Returns:
//   - *Device: handle for Push and Request calls
//   - error: ErrInvalidArgument for a nil or misdeclared provider,
//     ErrAlreadyInUse for a duplicate provider name
func (r *Registry) Register(p Provider) (*Device, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidArgument)
	}
	if p.Name() == "" {
		return nil, fmt.Errorf("%w: provider name is required", ErrInvalidArgument)
	}
	if p.Lines() == 0 {
		return nil, fmt.Errorf("%w: provider %q declares no lines", ErrInvalidArgument, p.Name())
	}

	r.mu.Lock()
	logger := r.logger
	r.mu.Unlock()

	// Build outside the registry lock; newDevice touches provider code.
	dev := newDevice(p, logger)

	r.mu.Lock()
	if _, exists := r.devices[dev.name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: provider %q is already registered", ErrAlreadyInUse, dev.name)
	}
	r.devices[dev.name] = dev
	r.mu.Unlock()

	logger.Info("provider registered", "device", dev.name, "lines", dev.nlines)

	return dev, nil
}

// Unregister removes a device from the registry and marks it closing so
// new channel requests fail with ErrDeviceGone.
//
// The caller (the provider) is expected to have quiesced its consumers
// first: Unregister does not force-release channels, it only detaches the
// device. Must not be called from a push callback.
func (r *Registry) Unregister(dev *Device) error {
	if dev == nil {
		return fmt.Errorf("%w: device is required", ErrInvalidArgument)
	}

	r.mu.Lock()
	registered, ok := r.devices[dev.name]
	if !ok || registered != dev {
		r.mu.Unlock()
		return fmt.Errorf("%w: provider %q is not registered", ErrDeviceGone, dev.name)
	}
	delete(r.devices, dev.name)
	r.mu.Unlock()

	dev.markClosing()

	dev.logger.Info("provider unregistered",
		"device", dev.name, "requested", dev.Requested())

	return nil
}

// Lookup returns the device registered under the given provider name.
func (r *Registry) Lookup(name string) (*Device, error) {
	r.mu.Lock()
	dev, ok := r.devices[name]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: no provider %q", ErrDeviceGone, name)
	}
	return dev, nil
}

// Request resolves a provider by name and registers a consumer on one of
// its channels. Convenience wrapper over Lookup + Device.Request.
func (r *Registry) Request(provider string, logicalID uint32, cb PrimaryCallback, opts RequestOptions) (*Channel, error) {
	dev, err := r.Lookup(provider)
	if err != nil {
		return nil, err
	}
	return dev.Request(logicalID, cb, opts)
}

// Devices returns a snapshot of all registered devices, sorted by name.
func (r *Registry) Devices() []DeviceInfo {
	r.mu.Lock()
	devs := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devs = append(devs, d)
	}
	r.mu.Unlock()

	// Sample counters outside the registry lock.
	infos := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		infos = append(infos, d.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}
