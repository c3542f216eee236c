// Package trainer owns the two detectors of a client together with the
// dataset views they are trained and evaluated on.
package trainer

import (
	"context"
	"errors"

	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/evaluation"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/pkg/threshold"
)

var (
	// ErrPredictor wraps any failure reported by a predictor.
	ErrPredictor  = errors.New("predictor failure")
	ErrEvaluation = errors.New("evaluation failed")
)

type Service interface {
	// TrainRound fits both detectors for epochs more epochs and returns the
	// losses recorded in this call.
	TrainRound(ctx context.Context, epochs int) (detector.Pair[predictor.History], error)

	// ExportParameters returns a copy of both detectors' parameters.
	ExportParameters(ctx context.Context) (detector.Pair[predictor.Snapshot], error)

	// ImportParameters replaces both detectors' parameters. Either both are
	// replaced or neither is.
	ImportParameters(ctx context.Context, params detector.Pair[predictor.Snapshot]) error

	// Persist writes one model file per detector into dir.
	Persist(ctx context.Context, dir string) error

	// Restore loads the files written by Persist.
	Restore(ctx context.Context, dir string) error

	// Evaluate scores the full dataset and compares the decisions with the
	// labels.
	Evaluate(ctx context.Context) (detector.Pair[Report], error)

	// History returns every loss recorded since the service was created.
	History(ctx context.Context) (detector.Pair[predictor.History], error)
}

type Config struct {
	BatchSize       int
	ValidationSplit float64
	Schedule        predictor.Schedule
	// Parallel trains the two detectors concurrently.
	Parallel  bool
	Threshold threshold.Config
	// LabelScale is the number of windows per label unit.
	LabelScale float64
}

// Report is the evaluation outcome of one detector.
type Report struct {
	Detector  string                `json:"detector"`
	Mode      string                `json:"mode"`
	Policy    threshold.Policy      `json:"policy"`
	Threshold float64               `json:"threshold"`
	AUC       float64               `json:"auc"`
	Best      evaluation.Point      `json:"best"`
	Confusion evaluation.Confusion  `json:"confusion"`
	Precision float64               `json:"precision"`
	Recall    float64               `json:"recall"`
	F1        float64               `json:"f1"`
	Intervals []evaluation.Interval `json:"intervals"`
	Scores    []float64             `json:"-"`
}
