package http_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/absmach/fedanomaly/pkg/server"
	httpserver "github.com/absmach/fedanomaly/pkg/server/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)

	return port
}

func TestServerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	port := freePort(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	hs := httpserver.NewServer(ctx, cancel, "test", server.Config{Host: "127.0.0.1", Port: port}, handler, logger)

	done := make(chan error, 1)
	go func() { done <- hs.Start() }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://127.0.0.1:" + port + "/")
		if err != nil {
			return false
		}
		resp = r

		return true
	}, 5*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	require.NoError(t, hs.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
