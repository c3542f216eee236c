package monitoring

import (
	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// NewGauges registers the resource gauges with the default Prometheus
// registry. It must be called once per process.
func NewGauges(namespace string) Gauges {
	gauge := func(name, help string) metrics.Gauge {
		return kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      name,
			Help:      help,
		}, []string{"client_id"})
	}

	return Gauges{
		CPUPercent:  gauge("cpu_percent", "CPU usage of the worker process in percent."),
		MemoryBytes: gauge("memory_bytes", "Resident memory of the worker process."),
		Threads:     gauge("threads", "Number of threads of the worker process."),
		FDs:         gauge("open_fds", "Number of open file descriptors."),
		NetworkRx:   gauge("network_rx_bytes", "Bytes received on all interfaces since start."),
		NetworkTx:   gauge("network_tx_bytes", "Bytes sent on all interfaces since start."),
	}
}
