package hte

import (
	"fmt"
	"sync"
)

// mockProvider is a test implementation of Provider that records every
// operation and can be primed with error returns.
type mockProvider struct {
	name  string
	lines uint32

	mu         sync.Mutex
	requests   map[uint32]int
	releases   map[uint32]int
	enables    map[uint32]int
	disables   map[uint32]int
	requestErr error
	releaseErr error
	enableErr  error
	disableErr error

	clock    ClockInfo
	clockErr error
}

func newMockProvider(name string, lines uint32) *mockProvider {
	return &mockProvider{
		name:     name,
		lines:    lines,
		requests: make(map[uint32]int),
		releases: make(map[uint32]int),
		enables:  make(map[uint32]int),
		disables: make(map[uint32]int),
		clock:    ClockInfo{RateHz: 1_000_000_000, Clock: ClockMonotonic},
	}
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Lines() uint32 { return m.lines }

func (m *mockProvider) Request(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requestErr != nil {
		return m.requestErr
	}
	m.requests[id]++
	return nil
}

func (m *mockProvider) Release(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases[id]++
	return m.releaseErr
}

func (m *mockProvider) Enable(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enableErr != nil {
		return m.enableErr
	}
	m.enables[id]++
	return nil
}

func (m *mockProvider) Disable(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disableErr != nil {
		return m.disableErr
	}
	m.disables[id]++
	return nil
}

func (m *mockProvider) ClockInfo() (ClockInfo, error) {
	return m.clock, m.clockErr
}

func (m *mockProvider) calls(table map[uint32]int, id uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return table[id]
}

// offsetProvider wraps mockProvider with a translation that maps logical
// line n to translated line n+offset, the way a real provider maps logical
// lines onto internal slots.
type offsetProvider struct {
	*mockProvider
	offset uint32
}

func (p *offsetProvider) Translate(logicalID uint32) (uint32, error) {
	xlated := logicalID + p.offset
	if xlated >= p.lines {
		return 0, fmt.Errorf("logical line %d not mapped", logicalID)
	}
	return xlated, nil
}
