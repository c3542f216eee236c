package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/trainer"
)

// Controller runs the round protocol: train locally, upload both snapshots,
// download the merged ones, import them, and after the last round persist
// both models. Phases run strictly in sequence on the calling goroutine. A
// failed phase ends the run; nothing is retried.
//
// Cancellation is only observed between phases. A phase blocked on training
// or on the connection runs until it finishes or the connection fails.
type Controller struct {
	cfg       Config
	svc       trainer.Service
	conn      Conn
	logger    *slog.Logger
	observers []Observer

	mu    sync.RWMutex
	state State
	round int
}

type Option func(*Controller)

// WithObserver registers o to be called after every completed round.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

func NewController(cfg Config, svc trainer.Service, conn Conn, logger *slog.Logger, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:    cfg,
		svc:    svc,
		conn:   conn,
		logger: logger,
		state:  Idle,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// Round is the number of completed rounds.
func (c *Controller) Round() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.round
}

func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Status{
		ClientID: c.cfg.ClientID,
		State:    c.state,
		Round:    c.round,
		Rounds:   c.cfg.Rounds,
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	c.logger.Debug("State changed",
		slog.String("client_id", c.cfg.ClientID),
		slog.String("from", prev.String()),
		slog.String("to", s.String()),
	)
}

func (c *Controller) fail(err error) error {
	c.setState(Failed)

	return err
}

// Run executes every configured round and persists the models. It can only
// be called once.
func (c *Controller) Run(ctx context.Context) error {
	if s := c.State(); s != Idle {
		return fmt.Errorf("%w: controller is %s", ErrInvalidConfig, s)
	}

	for c.Round() < c.cfg.Rounds {
		if err := ctx.Err(); err != nil {
			return c.fail(err)
		}

		stats, err := c.runRound(ctx, c.Round()+1)
		if err != nil {
			return c.fail(err)
		}

		c.mu.Lock()
		c.round++
		c.mu.Unlock()

		c.logger.Info("Round completed",
			slog.String("client_id", c.cfg.ClientID),
			slog.Int("round", stats.Round),
			slog.Int("rounds", c.cfg.Rounds),
			slog.Uint64("bytes_sent", stats.BytesSent),
			slog.Uint64("bytes_received", stats.BytesReceived),
			slog.String("training", stats.Training.String()),
		)
		for _, o := range c.observers {
			o(ctx, stats)
		}
	}

	if err := ctx.Err(); err != nil {
		return c.fail(err)
	}
	if err := c.svc.Persist(ctx, c.cfg.ModelDir); err != nil {
		return c.fail(fmt.Errorf("%w: %w", ErrPersist, err))
	}
	c.setState(Saved)
	c.setState(Terminal)

	return nil
}

func (c *Controller) runRound(ctx context.Context, n int) (RoundStats, error) {
	stats := RoundStats{
		ClientID:  c.cfg.ClientID,
		Round:     n,
		Epochs:    c.cfg.EpochsPerRound,
		StartedAt: time.Now(),
	}
	sent, received := c.conn.BytesSent(), c.conn.BytesReceived()

	c.setState(LocalTraining)
	begin := time.Now()
	h, err := c.svc.TrainRound(ctx, c.cfg.EpochsPerRound)
	if err != nil {
		return stats, fmt.Errorf("%w: round %d: %w", ErrTraining, n, err)
	}
	stats.History = h
	stats.Training = time.Since(begin)

	c.setState(Uploading)
	begin = time.Now()
	if err := c.upload(ctx); err != nil {
		return stats, fmt.Errorf("%w: round %d: %w", ErrUpload, n, err)
	}
	stats.Upload = time.Since(begin)

	c.setState(Downloading)
	begin = time.Now()
	if err := c.download(ctx); err != nil {
		return stats, fmt.Errorf("%w: round %d: %w", ErrDownload, n, err)
	}
	stats.Download = time.Since(begin)

	c.setState(Idle)
	stats.BytesSent = c.conn.BytesSent() - sent
	stats.BytesReceived = c.conn.BytesReceived() - received
	stats.FinishedAt = time.Now()

	return stats, nil
}

// upload sends both snapshots, sequence first.
func (c *Controller) upload(ctx context.Context) error {
	params, err := c.svc.ExportParameters(ctx)
	if err != nil {
		return err
	}
	for _, k := range detector.Kinds {
		if err := c.conn.Send(params.Get(k)); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}

	return nil
}

// download receives both merged snapshots in upload order and replaces the
// local parameters with them.
func (c *Controller) download(ctx context.Context) error {
	var params detector.Pair[predictor.Snapshot]
	for _, k := range detector.Kinds {
		payload, err := c.conn.Recv()
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		params.Set(k, payload)
	}

	return c.svc.ImportParameters(ctx, params)
}
