package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/absmach/fedanomaly/pkg/monitoring"
	"github.com/absmach/fedanomaly/pkg/server"
)

// newMonitor builds the resource monitor of this process. Monitoring is best
// effort: on failure it logs a warning and returns nil values, and the worker
// trains without it.
func newMonitor(cfg envConfig, dir string, logger *slog.Logger, opts ...monitoring.Option) (*monitoring.Monitor, *monitoring.Sampler, io.Closer) {
	profile := monitoring.ProfileByName(cfg.MonitorProfile)
	if cfg.MonitorInterval > 0 {
		profile.Interval = cfg.MonitorInterval
	}

	sampler, err := monitoring.NewSampler(int32(os.Getpid()), profile)
	if err != nil {
		logger.Warn("resource monitoring disabled: failed to create sampler", slog.String("error", err.Error()))

		return nil, nil, nil
	}
	out, err := monitoring.OpenLog(dir, cfg.ClientName)
	if err != nil {
		logger.Warn("resource monitoring disabled: failed to open resource log", slog.String("error", err.Error()))

		return nil, nil, nil
	}

	return monitoring.NewMonitor(cfg.ClientName, sampler, profile.Interval, out, logger, opts...), sampler, out
}

// serveStatus runs the status server. A failing status server is logged and
// never stops the round controller.
func serveStatus(hs server.Server, logger *slog.Logger) error {
	if err := hs.Start(); err != nil {
		logger.Warn("status server stopped", slog.String("error", err.Error()))
	}

	return nil
}
