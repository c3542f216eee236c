// Package recorder keeps the records of a worker run: every completed round
// and the final evaluation are stored and, when configured, published.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/absmach/fedanomaly/pkg/mqtt"
	"github.com/absmach/fedanomaly/pkg/results"
	"github.com/absmach/fedanomaly/pkg/storage"
	"github.com/absmach/fedanomaly/trainer"
	"github.com/absmach/fedanomaly/worker"
)

var ErrRecord = errors.New("failed to record results")

type Recorder struct {
	clientID string
	rounds   storage.RoundRepository
	reports  storage.ReportRepository
	events   mqtt.Events
	logger   *slog.Logger
}

func New(clientID string, rounds storage.RoundRepository, reports storage.ReportRepository, events mqtt.Events, logger *slog.Logger) *Recorder {
	return &Recorder{
		clientID: clientID,
		rounds:   rounds,
		reports:  reports,
		events:   events,
		logger:   logger,
	}
}

// Observe stores and publishes one round. It matches worker.Observer and
// never fails the run: errors are logged.
func (r *Recorder) Observe(ctx context.Context, stats worker.RoundStats) {
	round := results.RoundFrom(stats)
	if err := r.rounds.Create(ctx, round); err != nil {
		r.logger.Warn("Failed to store round",
			slog.String("client_id", r.clientID),
			slog.Int("round", round.Round),
			slog.Any("error", err),
		)
	}
	if err := r.events.Round(ctx, round); err != nil {
		r.logger.Warn("Failed to publish round",
			slog.String("client_id", r.clientID),
			slog.Int("round", round.Round),
			slog.Any("error", err),
		)
	}
}

// Evaluate scores both detectors and records one report per detector
// against round. Unlike Observe, a storage failure is returned.
func (r *Recorder) Evaluate(ctx context.Context, svc trainer.Service, round int) ([]results.Report, error) {
	eval, err := svc.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	reports := results.ReportsFrom(r.clientID, round, eval)
	var errs error
	for _, rep := range reports {
		if err := r.reports.Create(ctx, rep); err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", rep.Detector, err))
		}
		r.logger.Info("Detector evaluated",
			slog.String("client_id", r.clientID),
			slog.String("detector", rep.Detector),
			slog.String("policy", rep.Policy),
			slog.Float64("threshold", rep.Threshold),
			slog.Float64("auc", rep.AUC),
			slog.Float64("f1", rep.F1),
		)
	}
	if errs != nil {
		return reports, fmt.Errorf("%w: %w", ErrRecord, errs)
	}

	event := results.Evaluation{ClientID: r.clientID, Round: round, Reports: reports}
	if err := r.events.Reports(ctx, event); err != nil {
		r.logger.Warn("Failed to publish reports",
			slog.String("client_id", r.clientID),
			slog.Any("error", err),
		)
	}

	return reports, nil
}

func (r *Recorder) ListRounds(ctx context.Context, offset, limit uint64) (results.Page[results.Round], error) {
	rounds, total, err := r.rounds.List(ctx, r.clientID, offset, limit)
	if err != nil {
		return results.Page[results.Round]{}, err
	}

	return results.Page[results.Round]{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Items:  rounds,
	}, nil
}

func (r *Recorder) GetRound(ctx context.Context, id string) (results.Round, error) {
	return r.rounds.Get(ctx, id)
}

func (r *Recorder) ListReports(ctx context.Context, offset, limit uint64) (results.Page[results.Report], error) {
	reports, total, err := r.reports.List(ctx, r.clientID, offset, limit)
	if err != nil {
		return results.Page[results.Report]{}, err
	}

	return results.Page[results.Report]{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Items:  reports,
	}, nil
}

func (r *Recorder) GetReport(ctx context.Context, id string) (results.Report, error) {
	return r.reports.Get(ctx, id)
}
