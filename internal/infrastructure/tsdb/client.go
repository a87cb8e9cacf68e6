package tsdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hwts/hwts-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	writeTimeout   = 5 * time.Second

	defaultBatchSize     = 1000
	defaultFlushInterval = 1 // seconds
)

// Client ships timestamp samples to VictoriaMetrics as newline-delimited
// InfluxDB line protocol on the /write endpoint. Samples queue in memory
// and go out in one POST when the batch fills or the flush timer fires,
// so WriteTimestamp never blocks the recorder's drain worker.
type Client struct {
	url  string
	http *http.Client

	mu      sync.Mutex
	pending []string
	limit   int
	closed  bool
	onError func(err error)

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// Connect validates the configuration, probes /health, and starts the
// background flush loop.
//
// Returns:
//   - *Client: ready client, caller must Close
//   - error: ErrDisabled when the tsdb section is off, or
//     ErrConnectionFailed when the health probe fails
func Connect(ctx context.Context, cfg config.TSDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	limit := cfg.BatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}

	c := &Client{
		url:     strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: writeTimeout},
		pending: make([]string, 0, limit),
		limit:   limit,
		done:    make(chan struct{}),
	}

	probeCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := c.HealthCheck(probeCtx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.ticker = time.NewTicker(time.Duration(interval) * time.Second)
	c.wg.Add(1)
	go c.flushLoop()
	return c, nil
}

func (c *Client) flushLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ticker.C:
			c.Flush()
		case <-c.done:
			return
		}
	}
}

// Close stops the flush loop and sends whatever is still queued.
// Samples enqueued after Close are discarded.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.ticker.Stop()
	close(c.done)
	c.wg.Wait()

	c.Flush()
	return nil
}

// HealthCheck probes the VictoriaMetrics /health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) // drain for connection reuse

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}
	return nil
}

// SetOnError installs a callback for asynchronous flush failures.
// Writes are fire-and-forget, so this is the only error channel.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// enqueue appends one line-protocol sample, flushing when the batch is
// full. Dropped silently after Close.
func (c *Client) enqueue(line string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, line)
	full := len(c.pending) >= c.limit
	c.mu.Unlock()

	if full {
		c.Flush()
	}
}

// Flush posts all queued samples in one request. Called by the flush
// loop, on a full batch, and from Close. Failures go to the SetOnError
// callback; the failed batch is not retried.
func (c *Client) Flush() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	lines := c.pending
	c.pending = make([]string, 0, c.limit)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	body := strings.NewReader(strings.Join(lines, "\n"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/write", body)
	if err != nil {
		c.reportError(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		return
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		c.reportError(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		c.reportError(fmt.Errorf("%w: HTTP %d", ErrWriteFailed, resp.StatusCode))
	}
}

func (c *Client) reportError(err error) {
	c.mu.Lock()
	callback := c.onError
	c.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}
