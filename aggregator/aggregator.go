// Package aggregator merges the parameters of every participating worker
// after each round and sends the merged parameters back.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/absmach/fedanomaly/pkg/channel"
	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/fl"
	"github.com/absmach/fedanomaly/pkg/mqtt"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidConfig = errors.New("invalid aggregator config")
	ErrParticipant   = errors.New("participant failed")
	ErrMerge         = errors.New("failed to merge parameters")
	ErrStopped       = errors.New("aggregator stopped")
)

type Config struct {
	Address      string `env:"ADDRESS"      envDefault:"localhost:7878"`
	Participants int    `env:"PARTICIPANTS" envDefault:"2"`
	Rounds       int    `env:"ROUNDS"       envDefault:"10"`
	RoundsDir    string `env:"ROUNDS_DIR"   envDefault:"./data/aggregator/rounds"`
	ModelsDir    string `env:"MODELS_DIR"   envDefault:"./data/aggregator/models"`
}

func (c Config) Validate() error {
	switch {
	case c.Participants <= 0:
		return fmt.Errorf("%w: participants must be positive", ErrInvalidConfig)
	case c.Rounds <= 0:
		return fmt.Errorf("%w: rounds must be positive", ErrInvalidConfig)
	}

	return nil
}

type participant struct {
	id   string
	conn *channel.Conn
}

// Server accepts a fixed set of participants and then drives every round
// in lock step: all participants upload, the parameters are merged per
// detector, and everyone downloads the same result.
type Server struct {
	cfg    Config
	agg    fl.Aggregator
	store  *fl.Archive
	events mqtt.Events
	logger *slog.Logger

	mu    sync.RWMutex
	round int
}

func New(cfg Config, agg fl.Aggregator, store *fl.Archive, events mqtt.Events, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Server{
		cfg:    cfg,
		agg:    agg,
		store:  store,
		events: events,
		logger: logger,
	}, nil
}

// Round is the number of completed rounds.
func (s *Server) Round() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.round
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}

	return s.Serve(ctx, ln)
}

// Serve takes ownership of ln. It returns after the last round, on the
// first participant or merge failure, or when ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		parts  []participant
		closed bool
	)
	closeAll := func() {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		closed = true
		ln.Close()
		for _, p := range parts {
			p.conn.Close()
		}
	}
	defer closeAll()
	go func() {
		<-ctx.Done()
		closeAll()
	}()

	s.logger.Info("Waiting for participants",
		slog.String("address", ln.Addr().String()),
		slog.Int("participants", s.cfg.Participants),
	)
	for joined := 0; joined < s.cfg.Participants; joined++ {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ErrStopped
			}

			return fmt.Errorf("failed to accept participant: %w", err)
		}
		p := participant{id: nc.RemoteAddr().String(), conn: channel.New(nc)}
		mu.Lock()
		if closed {
			mu.Unlock()
			nc.Close()

			return ErrStopped
		}
		parts = append(parts, p)
		mu.Unlock()
		s.logger.Info("Participant joined",
			slog.String("participant_id", p.id),
			slog.Int("joined", joined+1),
		)
	}
	ln.Close()

	mu.Lock()
	joined := slices.Clone(parts)
	mu.Unlock()
	for n := 1; n <= s.cfg.Rounds; n++ {
		if err := s.runRound(ctx, n, joined, closeAll); err != nil {
			if ctx.Err() != nil {
				return errors.Join(ErrStopped, err)
			}

			return err
		}
		s.mu.Lock()
		s.round = n
		s.mu.Unlock()
	}
	s.logger.Info("Federation finished", slog.Int("rounds", s.cfg.Rounds))

	return nil
}

// runRound calls abort on the first participant failure.
func (s *Server) runRound(ctx context.Context, n int, parts []participant, abort func()) error {
	state := &fl.RoundState{
		RoundID:      uuid.NewString(),
		Round:        n,
		Participants: len(parts),
		StartTime:    time.Now().UTC(),
	}

	uploads := make([][]fl.Update, len(parts))
	var up errgroup.Group
	for i, p := range parts {
		up.Go(func() error {
			u, err := receive(p, state.RoundID)
			if err != nil {
				abort()

				return fmt.Errorf("%w: %s: round %d: %w", ErrParticipant, p.id, n, err)
			}
			uploads[i] = u

			return nil
		})
	}
	if err := up.Wait(); err != nil {
		return err
	}

	var merged detector.Pair[predictor.Snapshot]
	var models []fl.Model
	for _, k := range detector.Kinds {
		updates := make([]fl.Update, 0, len(parts))
		for _, u := range uploads {
			updates = append(updates, u[k])
		}
		state.Updates = append(state.Updates, updates...)

		model, err := s.agg.Aggregate(updates)
		if err != nil {
			return fmt.Errorf("%w: %s: round %d: %w", ErrMerge, k, n, err)
		}
		snapshot, err := predictor.EncodeParameters(model.Tensors)
		if err != nil {
			return fmt.Errorf("%w: %s: round %d: %w", ErrMerge, k, n, err)
		}
		merged.Set(k, snapshot)
		models = append(models, model)
	}

	var down errgroup.Group
	for _, p := range parts {
		down.Go(func() error {
			for _, k := range detector.Kinds {
				if err := p.conn.Send(merged.Get(k)); err != nil {
					abort()

					return fmt.Errorf("%w: %s: round %d: %s: %w", ErrParticipant, p.id, n, k, err)
				}
			}

			return nil
		})
	}
	if err := down.Wait(); err != nil {
		return err
	}

	state.EndTime = time.Now().UTC()
	state.Completed = true
	s.persist(n, state, models)
	if err := s.events.Round(ctx, state); err != nil {
		s.logger.Warn("Failed to publish round", slog.Int("round", n), slog.Any("error", err))
	}

	s.logger.Info("Round aggregated",
		slog.String("round_id", state.RoundID),
		slog.Int("round", n),
		slog.Int("participants", len(parts)),
		slog.Duration("duration", state.EndTime.Sub(state.StartTime)),
	)

	return nil
}

// persist keeps a record of the round. Failing to write it does not stop
// the federation.
func (s *Server) persist(n int, state *fl.RoundState, models []fl.Model) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRound(state); err != nil {
		s.logger.Warn("Failed to save round", slog.Int("round", n), slog.Any("error", err))
	}
	for _, m := range models {
		if err := s.store.SaveModel(n, m); err != nil {
			s.logger.Warn("Failed to save model",
				slog.Int("round", n),
				slog.String("detector", m.Detector),
				slog.Any("error", err),
			)
		}
	}
}

// receive reads both snapshots of one participant in wire order. The
// returned updates are indexed by detector kind.
func receive(p participant, roundID string) ([]fl.Update, error) {
	updates := make([]fl.Update, len(detector.Kinds))
	for _, k := range detector.Kinds {
		payload, err := p.conn.Recv()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		tensors, err := predictor.DecodeParameters(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		updates[k] = fl.Update{
			RoundID:       roundID,
			ParticipantID: p.id,
			Detector:      k.String(),
			Bytes:         len(payload),
			ReceivedAt:    time.Now().UTC(),
			Tensors:       tensors,
		}
	}

	return updates, nil
}
