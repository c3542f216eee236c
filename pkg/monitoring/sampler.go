package monitoring

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one reading of the worker process.
type Sample struct {
	ClientID            string    `json:"client_id"`
	Phase               string    `json:"phase,omitempty"`
	CPUPercent          float64   `json:"cpu_percent"`
	MemoryBytes         uint64    `json:"memory_bytes"`
	MemoryPercent       float32   `json:"memory_percent"`
	DiskReadBytes       uint64    `json:"disk_read_bytes"`
	DiskWriteBytes      uint64    `json:"disk_write_bytes"`
	NetworkRxBytes      uint64    `json:"network_rx_bytes"`
	NetworkTxBytes      uint64    `json:"network_tx_bytes"`
	UptimeSeconds       int64     `json:"uptime_seconds"`
	ThreadCount         int32     `json:"thread_count"`
	FileDescriptorCount int32     `json:"file_descriptor_count,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// Summary aggregates the retained history of a sampler.
type Summary struct {
	AvgCPUPercent  float64 `json:"avg_cpu_percent"`
	MaxCPUPercent  float64 `json:"max_cpu_percent"`
	AvgMemoryBytes uint64  `json:"avg_memory_bytes"`
	MaxMemoryBytes uint64  `json:"max_memory_bytes"`
	TotalDiskRead  uint64  `json:"total_disk_read"`
	TotalDiskWrite uint64  `json:"total_disk_write"`
	TotalNetworkRx uint64  `json:"total_network_rx"`
	TotalNetworkTx uint64  `json:"total_network_tx"`
	SampleCount    int     `json:"sample_count"`
}

// Sampler reads process statistics. Individual readings that fail are left
// at zero.
type Sampler struct {
	profile   Profile
	proc      *process.Process
	startTime time.Time
	initialRx uint64
	initialTx uint64

	mu      sync.RWMutex
	history []Sample
}

func NewSampler(pid int32, profile Profile) (*Sampler, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}

	s := &Sampler{
		profile:   profile,
		proc:      proc,
		startTime: time.Now(),
		history:   make([]Sample, 0, profile.HistorySize),
	}

	if profile.CollectNetworkIO {
		if counters, err := net.IOCounters(false); err == nil && len(counters) > 0 {
			s.initialRx = counters[0].BytesRecv
			s.initialTx = counters[0].BytesSent
		}
	}

	return s, nil
}

func (s *Sampler) Collect(ctx context.Context) Sample {
	sample := Sample{
		Timestamp: time.Now().UTC(),
	}

	if s.profile.CollectCPU {
		if pct, err := s.proc.CPUPercentWithContext(ctx); err == nil {
			sample.CPUPercent = pct
		}
	}

	if s.profile.CollectMemory {
		if mem, err := s.proc.MemoryInfoWithContext(ctx); err == nil {
			sample.MemoryBytes = mem.RSS
		}
		if pct, err := s.proc.MemoryPercentWithContext(ctx); err == nil {
			sample.MemoryPercent = pct
		}
	}

	if s.profile.CollectDiskIO {
		if io, err := s.proc.IOCountersWithContext(ctx); err == nil {
			sample.DiskReadBytes = io.ReadBytes
			sample.DiskWriteBytes = io.WriteBytes
		}
	}

	if s.profile.CollectNetworkIO {
		if counters, err := net.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
			if counters[0].BytesRecv >= s.initialRx {
				sample.NetworkRxBytes = counters[0].BytesRecv - s.initialRx
			}
			if counters[0].BytesSent >= s.initialTx {
				sample.NetworkTxBytes = counters[0].BytesSent - s.initialTx
			}
		}
	}

	if s.profile.CollectThreads {
		if n, err := s.proc.NumThreadsWithContext(ctx); err == nil {
			sample.ThreadCount = n
		}
	}

	if s.profile.CollectFileDescriptors && (runtime.GOOS == "linux" || runtime.GOOS == "darwin") {
		if n, err := s.proc.NumFDsWithContext(ctx); err == nil {
			sample.FileDescriptorCount = n
		}
	}

	sample.UptimeSeconds = int64(time.Since(s.startTime).Seconds())

	if s.profile.HistorySize > 0 {
		s.mu.Lock()
		s.history = append(s.history, sample)
		if len(s.history) > s.profile.HistorySize {
			s.history = s.history[1:]
		}
		s.mu.Unlock()
	}

	return sample
}

// Summary returns nil until a sample has been retained.
func (s *Sampler) Summary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return summarize(s.history)
}

func summarize(history []Sample) *Summary {
	if len(history) == 0 {
		return nil
	}

	sum := &Summary{SampleCount: len(history)}

	var (
		totalCPU    float64
		totalMemory uint64
	)
	for _, m := range history {
		totalCPU += m.CPUPercent
		totalMemory += m.MemoryBytes
		sum.MaxCPUPercent = max(sum.MaxCPUPercent, m.CPUPercent)
		sum.MaxMemoryBytes = max(sum.MaxMemoryBytes, m.MemoryBytes)
	}
	sum.AvgCPUPercent = totalCPU / float64(len(history))
	sum.AvgMemoryBytes = totalMemory / uint64(len(history))

	first, last := history[0], history[len(history)-1]
	sum.TotalDiskRead = delta(first.DiskReadBytes, last.DiskReadBytes)
	sum.TotalDiskWrite = delta(first.DiskWriteBytes, last.DiskWriteBytes)
	sum.TotalNetworkRx = delta(first.NetworkRxBytes, last.NetworkRxBytes)
	sum.TotalNetworkTx = delta(first.NetworkTxBytes, last.NetworkTxBytes)

	return sum
}

func delta(first, last uint64) uint64 {
	if last < first {
		return 0
	}

	return last - first
}
