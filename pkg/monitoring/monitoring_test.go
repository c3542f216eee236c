package monitoring_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/fedanomaly/pkg/monitoring"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixedCollector struct {
	sample monitoring.Sample
	calls  int
}

func (c *fixedCollector) Collect(context.Context) monitoring.Sample {
	c.calls++
	s := c.sample
	s.UptimeSeconds = int64(c.calls)

	return s
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRecordWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	c := &fixedCollector{sample: monitoring.Sample{CPUPercent: 42.5, MemoryBytes: 1 << 20, ThreadCount: 7}}
	phase := "local_training"

	m := monitoring.NewMonitor("Client-A", c, time.Second, &buf, logger, monitoring.WithPhase(func() string { return phase }))
	m.Record(context.Background())
	phase = "uploading"
	m.Record(context.Background())

	var samples []monitoring.Sample
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var s monitoring.Sample
		require.NoError(t, json.Unmarshal(sc.Bytes(), &s))
		samples = append(samples, s)
	}
	require.NoError(t, sc.Err())
	require.Len(t, samples, 2)

	assert.Equal(t, "Client-A", samples[0].ClientID)
	assert.Equal(t, "local_training", samples[0].Phase)
	assert.Equal(t, "uploading", samples[1].Phase)
	assert.Equal(t, 42.5, samples[1].CPUPercent)
	assert.Equal(t, uint64(1<<20), samples[1].MemoryBytes)
	assert.Equal(t, int64(2), samples[1].UptimeSeconds)
}

func TestRecordSurvivesWriteErrors(t *testing.T) {
	c := &fixedCollector{sample: monitoring.Sample{CPUPercent: 3}}
	m := monitoring.NewMonitor("c", c, time.Second, failingWriter{}, logger)

	s := m.Record(context.Background())
	assert.Equal(t, 3.0, s.CPUPercent)
	assert.Equal(t, 1, c.calls)
}

func TestRecordSetsGauges(t *testing.T) {
	cpu := stdprometheus.NewGaugeVec(stdprometheus.GaugeOpts{Name: "cpu_percent"}, []string{"client_id"})
	mem := stdprometheus.NewGaugeVec(stdprometheus.GaugeOpts{Name: "memory_bytes"}, []string{"client_id"})

	c := &fixedCollector{sample: monitoring.Sample{CPUPercent: 12, MemoryBytes: 2048}}
	m := monitoring.NewMonitor("c1", c, time.Second, io.Discard, logger, monitoring.WithGauges(monitoring.Gauges{
		CPUPercent:  kitprometheus.NewGauge(cpu),
		MemoryBytes: kitprometheus.NewGauge(mem),
	}))
	m.Record(context.Background())

	assert.Equal(t, 12.0, promtest.ToFloat64(cpu.WithLabelValues("c1")))
	assert.Equal(t, 2048.0, promtest.ToFloat64(mem.WithLabelValues("c1")))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &fixedCollector{}
	m := monitoring.NewMonitor("c", c, time.Hour, io.Discard, logger)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestOpenLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	f, err := monitoring.OpenLog(dir, "Bearing-1")
	require.NoError(t, err)
	_, err = f.WriteString("{}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, filepath.Join(dir, "resources_bearing-1.jsonl"), monitoring.LogPath(dir, "Bearing-1"))
	data, err := os.ReadFile(monitoring.LogPath(dir, "Bearing-1"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestSamplerCollectsOwnProcess(t *testing.T) {
	p := monitoring.StandardProfile()
	p.HistorySize = 2
	s, err := monitoring.NewSampler(int32(os.Getpid()), p)
	require.NoError(t, err)

	assert.Nil(t, s.Summary())
	for range 3 {
		s.Collect(context.Background())
	}

	first := s.Collect(context.Background())
	assert.NotZero(t, first.MemoryBytes)
	assert.False(t, first.Timestamp.IsZero())

	sum := s.Summary()
	require.NotNil(t, sum)
	assert.Equal(t, 2, sum.SampleCount)
	assert.GreaterOrEqual(t, sum.MaxMemoryBytes, sum.AvgMemoryBytes)
}

func TestProfileByName(t *testing.T) {
	cases := []struct {
		name     string
		interval time.Duration
		disk     bool
	}{
		{name: "minimal", interval: time.Minute, disk: false},
		{name: "intensive", interval: time.Second, disk: true},
		{name: "", interval: 10 * time.Second, disk: true},
		{name: "standard", interval: 10 * time.Second, disk: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := monitoring.ProfileByName(tc.name)
			assert.Equal(t, tc.interval, p.Interval)
			assert.Equal(t, tc.disk, p.CollectDiskIO)
		})
	}
}
