package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/fedanomaly/pkg/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewMonitor(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	cases := []struct {
		desc    string
		dir     string
		enabled bool
	}{
		{desc: "writable logs directory", dir: filepath.Join(t.TempDir(), "logs"), enabled: true},
		{desc: "logs directory below a file", dir: filepath.Join(blocker, "logs")},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := envConfig{ClientName: "CLIENT_1", MonitorProfile: "minimal"}

			monitor, sampler, out := newMonitor(cfg, tc.dir, discard)
			if !tc.enabled {
				assert.Nil(t, monitor)
				assert.Nil(t, sampler)
				assert.Nil(t, out)

				return
			}

			require.NotNil(t, monitor)
			require.NotNil(t, sampler)
			require.NotNil(t, out)
			defer out.Close()
			assert.FileExists(t, monitoring.LogPath(tc.dir, cfg.ClientName))
		})
	}
}

type stubServer struct {
	err error
}

func (s stubServer) Start() error { return s.err }

func (stubServer) Stop() error { return nil }

func TestServeStatus(t *testing.T) {
	cases := []struct {
		desc string
		err  error
	}{
		{desc: "clean stop"},
		{desc: "bind failure", err: errors.New("listen tcp :9090: bind: address already in use")},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.NoError(t, serveStatus(stubServer{err: tc.err}, discard))
		})
	}
}
