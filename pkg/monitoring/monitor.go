// Package monitoring samples the resource usage of the worker process and
// records it as JSON lines and Prometheus gauges.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/metrics"
)

// Gauges receives the latest sample. Any field may be nil.
type Gauges struct {
	CPUPercent  metrics.Gauge
	MemoryBytes metrics.Gauge
	Threads     metrics.Gauge
	FDs         metrics.Gauge
	NetworkRx   metrics.Gauge
	NetworkTx   metrics.Gauge
}

// Collector produces samples. *Sampler is the process implementation.
type Collector interface {
	Collect(ctx context.Context) Sample
}

// Monitor periodically samples a Collector. Nothing it does is allowed to
// fail the worker: write errors are logged and sampling continues.
type Monitor struct {
	clientID  string
	collector Collector
	interval  time.Duration
	out       io.Writer
	gauges    Gauges
	phase     func() string
	logger    *slog.Logger

	mu sync.Mutex
}

type Option func(*Monitor)

// WithPhase labels every sample with the value fn returns at sampling time.
func WithPhase(fn func() string) Option {
	return func(m *Monitor) {
		m.phase = fn
	}
}

func WithGauges(g Gauges) Option {
	return func(m *Monitor) {
		m.gauges = g
	}
}

func NewMonitor(clientID string, c Collector, interval time.Duration, out io.Writer, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		clientID:  clientID,
		collector: c,
		interval:  interval,
		out:       out,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// LogPath is the JSON lines file of one client under dir.
func LogPath(dir, clientID string) string {
	return filepath.Join(dir, fmt.Sprintf("resources_%s.jsonl", strings.ToLower(clientID)))
}

// OpenLog opens the resource log of clientID for appending, creating dir
// when needed.
func OpenLog(dir, clientID string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	return os.OpenFile(LogPath(dir, clientID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// Run samples until ctx is cancelled and always returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Record(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Record(ctx)
		}
	}
}

// Record takes and records a single sample.
func (m *Monitor) Record(ctx context.Context) Sample {
	s := m.collector.Collect(ctx)
	s.ClientID = m.clientID
	if m.phase != nil {
		s.Phase = m.phase()
	}

	m.observe(s)

	line, err := json.Marshal(s)
	if err != nil {
		m.logger.Warn("Failed to encode resource sample", slog.Any("error", err))

		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.out.Write(append(line, '\n')); err != nil {
		m.logger.Warn("Failed to write resource sample", slog.String("client_id", m.clientID), slog.Any("error", err))
	}

	return s
}

func (m *Monitor) observe(s Sample) {
	set := func(g metrics.Gauge, v float64) {
		if g != nil {
			g.With("client_id", m.clientID).Set(v)
		}
	}
	set(m.gauges.CPUPercent, s.CPUPercent)
	set(m.gauges.MemoryBytes, float64(s.MemoryBytes))
	set(m.gauges.Threads, float64(s.ThreadCount))
	set(m.gauges.FDs, float64(s.FileDescriptorCount))
	set(m.gauges.NetworkRx, float64(s.NetworkRxBytes))
	set(m.gauges.NetworkTx, float64(s.NetworkTxBytes))
}
