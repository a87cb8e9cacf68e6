package sim

import (
	"context"
	"sync"
	"time"

	"github.com/hwts/hwts-core/internal/hte"
)

// defaultInterval is the tick period used when none is configured.
const defaultInterval = time.Second

// Generator drives a provider with self-clocked events, alternating edges
// on each configured line. It exists for soak testing and demo setups where
// no real event source feeds the provider.
type Generator struct {
	provider *Provider
	lines    []uint32
	interval time.Duration
	logger   Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	// Provider is the provider to fire events into.
	Provider *Provider

	// Lines are the logical lines to drive.
	Lines []uint32

	// Interval is the period between events per line. Defaults to 1s.
	Interval time.Duration

	// Logger is an optional structured logger.
	Logger Logger
}

// NewGenerator creates a generator. Call Start to begin emitting.
func NewGenerator(opts GeneratorOptions) *Generator {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Generator{
		provider: opts.Provider,
		lines:    opts.Lines,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins emitting events until Stop is called or ctx is cancelled.
func (g *Generator) Start(ctx context.Context) {
	g.wg.Add(1)
	go g.run(ctx)

	g.logger.Info("event generator started",
		"provider", g.provider.Name(),
		"lines", len(g.lines),
		"interval", g.interval)
}

// Stop halts the generator and waits for its goroutine to exit.
func (g *Generator) Stop() {
	g.stopOnce.Do(func() {
		close(g.done)
	})
	g.wg.Wait()
}

func (g *Generator) run(ctx context.Context) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	dir := hte.DirRising
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.done:
			return
		case <-ticker.C:
			for _, line := range g.lines {
				if _, err := g.provider.Fire(line, dir); err != nil {
					g.logger.Warn("generator fire failed", "line", line, "error", err)
				}
			}
			// Alternate edges so consumers see both directions.
			if dir == hte.DirRising {
				dir = hte.DirFalling
			} else {
				dir = hte.DirRising
			}
		}
	}
}
