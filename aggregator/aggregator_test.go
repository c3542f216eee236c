package aggregator_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/absmach/fedanomaly/aggregator"
	"github.com/absmach/fedanomaly/pkg/channel"
	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/fl"
	"github.com/absmach/fedanomaly/pkg/mqtt"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshot(t *testing.T, values ...float64) predictor.Snapshot {
	t.Helper()
	s, err := predictor.EncodeParameters([]predictor.Tensor{
		{Name: "encoder/kernel", Shape: []int{len(values)}, Data: values},
	})
	require.NoError(t, err)

	return s
}

func decode(t *testing.T, s []byte) []float64 {
	t.Helper()
	tensors, err := predictor.DecodeParameters(s)
	require.NoError(t, err)
	require.Len(t, tensors, 1)

	return tensors[0].Data
}

type server struct {
	srv   *aggregator.Server
	store *fl.Archive
	addr  string
	done  chan error
}

func start(t *testing.T, ctx context.Context, participants, rounds int) server {
	t.Helper()
	dir := t.TempDir()
	store, err := fl.NewArchive(dir+"/rounds", dir+"/models")
	require.NoError(t, err)

	cfg := aggregator.Config{Participants: participants, Rounds: rounds}
	srv, err := aggregator.New(cfg, fl.NewFedAvgAggregator(), store, mqtt.Events{}, discard())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	return server{srv: srv, store: store, addr: ln.Addr().String(), done: done}
}

func (s server) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s.done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("aggregator did not return")

		return nil
	}
}

func dial(t *testing.T, addr string) *channel.Conn {
	t.Helper()
	conn, err := channel.Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

// exchange uploads both snapshots and returns the merged ones.
func exchange(t *testing.T, conn *channel.Conn, seq, spectral predictor.Snapshot) ([]float64, []float64) {
	t.Helper()
	require.NoError(t, conn.Send(seq))
	require.NoError(t, conn.Send(spectral))

	mergedSeq, err := conn.Recv()
	require.NoError(t, err)
	mergedSpec, err := conn.Recv()
	require.NoError(t, err)

	return decode(t, mergedSeq), decode(t, mergedSpec)
}

func TestServeMergesEveryRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := start(t, ctx, 2, 2)

	a := dial(t, s.addr)
	b := dial(t, s.addr)

	type result struct {
		seq, spectral []float64
	}
	for round := range 2 {
		scale := float64(round + 1)
		results := make(chan result, 1)
		go func() {
			seq, spectral := exchange(t, b, snapshot(t, 3*scale, 6*scale), snapshot(t, 1))
			results <- result{seq, spectral}
		}()
		seq, spectral := exchange(t, a, snapshot(t, 1*scale, 2*scale), snapshot(t, 0))
		other := <-results

		assert.InDeltaSlice(t, []float64{2 * scale, 4 * scale}, seq, 1e-12)
		assert.InDeltaSlice(t, []float64{0.5}, spectral, 1e-12)
		assert.Equal(t, seq, other.seq)
		assert.Equal(t, spectral, other.spectral)
	}

	require.NoError(t, s.wait(t))
	assert.Equal(t, 2, s.srv.Round())

	rounds, err := s.store.Rounds()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rounds)
	for _, k := range detector.Kinds {
		versions, err := s.store.ModelRounds(k.String())
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, versions)
	}

	state, err := s.store.LoadRound(rounds[0])
	require.NoError(t, err)
	assert.True(t, state.Completed)
	assert.Equal(t, 2, state.Participants)
}

func TestServeShapeMismatchIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := start(t, ctx, 2, 3)

	a := dial(t, s.addr)
	b := dial(t, s.addr)
	require.NoError(t, a.Send(snapshot(t, 1, 2)))
	require.NoError(t, a.Send(snapshot(t, 1)))
	require.NoError(t, b.Send(snapshot(t, 1, 2, 3)))
	require.NoError(t, b.Send(snapshot(t, 1)))

	assert.ErrorIs(t, s.wait(t), aggregator.ErrMerge)
	_, err := a.Recv()
	assert.ErrorIs(t, err, channel.ErrConnectionClosed)
	assert.Zero(t, s.srv.Round())
}

func TestServeParticipantLeaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := start(t, ctx, 2, 1)

	a := dial(t, s.addr)
	b := dial(t, s.addr)
	require.NoError(t, a.Send(snapshot(t, 1)))
	require.NoError(t, b.Close())

	assert.ErrorIs(t, s.wait(t), aggregator.ErrParticipant)
}

func TestServeCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := start(t, ctx, 3, 1)
	dial(t, s.addr)

	cancel()
	assert.ErrorIs(t, s.wait(t), aggregator.ErrStopped)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		desc string
		cfg  aggregator.Config
		err  error
	}{
		{desc: "valid", cfg: aggregator.Config{Participants: 2, Rounds: 1}},
		{desc: "no participants", cfg: aggregator.Config{Rounds: 1}, err: aggregator.ErrInvalidConfig},
		{desc: "no rounds", cfg: aggregator.Config{Participants: 2}, err: aggregator.ErrInvalidConfig},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.ErrorIs(t, tc.cfg.Validate(), tc.err)
		})
	}
}
