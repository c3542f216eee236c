package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/trainer"
)

var _ trainer.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    trainer.Service
}

func Logging(logger *slog.Logger, svc trainer.Service) trainer.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) TrainRound(ctx context.Context, epochs int) (h detector.Pair[predictor.History], err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("epochs", epochs),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Train round failed", args...)

			return
		}
		seqLoss, seqVal := h.Sequence.Last()
		specLoss, specVal := h.Spectral.Last()
		args = append(args,
			slog.Group("sequence", slog.Float64("loss", seqLoss), slog.Float64("val_loss", seqVal)),
			slog.Group("spectral", slog.Float64("loss", specLoss), slog.Float64("val_loss", specVal)),
		)
		lm.logger.Info("Train round completed successfully", args...)
	}(time.Now())

	return lm.svc.TrainRound(ctx, epochs)
}

func (lm *loggingMiddleware) ExportParameters(ctx context.Context) (p detector.Pair[predictor.Snapshot], err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Export parameters failed", args...)

			return
		}
		args = append(args,
			slog.Int("sequence_bytes", len(p.Sequence)),
			slog.Int("spectral_bytes", len(p.Spectral)),
		)
		lm.logger.Debug("Export parameters completed successfully", args...)
	}(time.Now())

	return lm.svc.ExportParameters(ctx)
}

func (lm *loggingMiddleware) ImportParameters(ctx context.Context, p detector.Pair[predictor.Snapshot]) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("sequence_bytes", len(p.Sequence)),
			slog.Int("spectral_bytes", len(p.Spectral)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Import parameters failed", args...)

			return
		}
		lm.logger.Debug("Import parameters completed successfully", args...)
	}(time.Now())

	return lm.svc.ImportParameters(ctx, p)
}

func (lm *loggingMiddleware) Persist(ctx context.Context, dir string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("dir", dir),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Persist models failed", args...)

			return
		}
		lm.logger.Info("Persist models completed successfully", args...)
	}(time.Now())

	return lm.svc.Persist(ctx, dir)
}

func (lm *loggingMiddleware) Restore(ctx context.Context, dir string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("dir", dir),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Restore models failed", args...)

			return
		}
		lm.logger.Info("Restore models completed successfully", args...)
	}(time.Now())

	return lm.svc.Restore(ctx, dir)
}

func (lm *loggingMiddleware) Evaluate(ctx context.Context) (r detector.Pair[trainer.Report], err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Evaluate failed", args...)

			return
		}
		for _, k := range detector.Kinds {
			rep := r.Get(k)
			args = append(args, slog.Group(k.String(),
				slog.String("policy", string(rep.Policy)),
				slog.Float64("threshold", rep.Threshold),
				slog.Float64("auc", rep.AUC),
				slog.Float64("f1", rep.F1),
				slog.Int("intervals", len(rep.Intervals)),
			))
		}
		lm.logger.Info("Evaluate completed successfully", args...)
	}(time.Now())

	return lm.svc.Evaluate(ctx)
}

func (lm *loggingMiddleware) History(ctx context.Context) (detector.Pair[predictor.History], error) {
	return lm.svc.History(ctx)
}
