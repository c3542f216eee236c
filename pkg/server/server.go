// Package server holds the pieces every long-running service shares: the
// listener configuration and signal driven shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const StopWaitTime = 5 * time.Second

type Server interface {
	Start() error
	Stop() error
}

type Config struct {
	Host     string `env:"HOST"        envDefault:"localhost"`
	Port     string `env:"PORT"        envDefault:""`
	CertFile string `env:"SERVER_CERT" envDefault:""`
	KeyFile  string `env:"SERVER_KEY"  envDefault:""`
}

// StopSignalHandler blocks until ctx ends or the process receives SIGINT or
// SIGTERM. On a signal it cancels the service context and stops every
// server.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svcName string, servers ...Server) error {
	var err error
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		defer cancel()
		for _, s := range servers {
			err = errors.Join(err, s.Stop())
		}
		logger.Info(fmt.Sprintf("%s service shutdown by signal: %s", svcName, sig))

		return err
	case <-ctx.Done():
		return nil
	}
}
