package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/trainer"
	"github.com/go-kit/kit/metrics"
)

var _ trainer.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     trainer.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc trainer.Service) trainer.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) TrainRound(ctx context.Context, epochs int) (detector.Pair[predictor.History], error) {
	defer mm.observe("train-round", time.Now())

	return mm.svc.TrainRound(ctx, epochs)
}

func (mm *metricsMiddleware) ExportParameters(ctx context.Context) (detector.Pair[predictor.Snapshot], error) {
	defer mm.observe("export-parameters", time.Now())

	return mm.svc.ExportParameters(ctx)
}

func (mm *metricsMiddleware) ImportParameters(ctx context.Context, p detector.Pair[predictor.Snapshot]) error {
	defer mm.observe("import-parameters", time.Now())

	return mm.svc.ImportParameters(ctx, p)
}

func (mm *metricsMiddleware) Persist(ctx context.Context, dir string) error {
	defer mm.observe("persist", time.Now())

	return mm.svc.Persist(ctx, dir)
}

func (mm *metricsMiddleware) Restore(ctx context.Context, dir string) error {
	defer mm.observe("restore", time.Now())

	return mm.svc.Restore(ctx, dir)
}

func (mm *metricsMiddleware) Evaluate(ctx context.Context) (detector.Pair[trainer.Report], error) {
	defer mm.observe("evaluate", time.Now())

	return mm.svc.Evaluate(ctx)
}

func (mm *metricsMiddleware) History(ctx context.Context) (detector.Pair[predictor.History], error) {
	defer mm.observe("history", time.Now())

	return mm.svc.History(ctx)
}
