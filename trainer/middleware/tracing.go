package middleware

import (
	"context"

	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/trainer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ trainer.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    trainer.Service
}

func Tracing(tracer trace.Tracer, svc trainer.Service) trainer.Service {
	return &tracing{tracer, svc}
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (tm *tracing) TrainRound(ctx context.Context, epochs int) (resp detector.Pair[predictor.History], err error) {
	ctx, span := tm.tracer.Start(ctx, "train-round", trace.WithAttributes(
		attribute.Int("epochs", epochs),
	))
	defer func() { end(span, err) }()

	return tm.svc.TrainRound(ctx, epochs)
}

func (tm *tracing) ExportParameters(ctx context.Context) (resp detector.Pair[predictor.Snapshot], err error) {
	ctx, span := tm.tracer.Start(ctx, "export-parameters")
	defer func() { end(span, err) }()

	return tm.svc.ExportParameters(ctx)
}

func (tm *tracing) ImportParameters(ctx context.Context, p detector.Pair[predictor.Snapshot]) (err error) {
	ctx, span := tm.tracer.Start(ctx, "import-parameters", trace.WithAttributes(
		attribute.Int("sequence_bytes", len(p.Sequence)),
		attribute.Int("spectral_bytes", len(p.Spectral)),
	))
	defer func() { end(span, err) }()

	return tm.svc.ImportParameters(ctx, p)
}

func (tm *tracing) Persist(ctx context.Context, dir string) (err error) {
	ctx, span := tm.tracer.Start(ctx, "persist", trace.WithAttributes(
		attribute.String("dir", dir),
	))
	defer func() { end(span, err) }()

	return tm.svc.Persist(ctx, dir)
}

func (tm *tracing) Restore(ctx context.Context, dir string) (err error) {
	ctx, span := tm.tracer.Start(ctx, "restore", trace.WithAttributes(
		attribute.String("dir", dir),
	))
	defer func() { end(span, err) }()

	return tm.svc.Restore(ctx, dir)
}

func (tm *tracing) Evaluate(ctx context.Context) (resp detector.Pair[trainer.Report], err error) {
	ctx, span := tm.tracer.Start(ctx, "evaluate")
	defer func() { end(span, err) }()

	return tm.svc.Evaluate(ctx)
}

func (tm *tracing) History(ctx context.Context) (detector.Pair[predictor.History], error) {
	ctx, span := tm.tracer.Start(ctx, "history")
	defer span.End()

	return tm.svc.History(ctx)
}
