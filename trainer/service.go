package trainer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/absmach/fedanomaly/pkg/dataset"
	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/evaluation"
	"github.com/absmach/fedanomaly/pkg/labels"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/pkg/scoring"
	"github.com/absmach/fedanomaly/pkg/threshold"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

const modelExt = ".cbor"

var _ Service = (*service)(nil)

// slot serializes fit, export and import on one detector.
type slot struct {
	mu        sync.Mutex
	predictor predictor.Predictor
	full      *dataset.View
	train     *dataset.View
	history   predictor.History
	epochs    int
}

type service struct {
	cfg      Config
	identity dataset.Identity
	labels   *labels.Table
	slots    detector.Pair[*slot]
}

// NewService wires one predictor to each view of data. The label table may
// be nil, in which case Evaluate fails.
func NewService(cfg Config, data *dataset.Data, models detector.Pair[predictor.Predictor], table *labels.Table) Service {
	full, train := data.Views(), data.TrainViews()

	return &service{
		cfg:      cfg,
		identity: data.Identity,
		labels:   table,
		slots: detector.NewPair(func(k detector.Kind) *slot {
			return &slot{
				predictor: models.Get(k),
				full:      full.Get(k),
				train:     train.Get(k),
			}
		}),
	}
}

func (svc *service) TrainRound(ctx context.Context, epochs int) (detector.Pair[predictor.History], error) {
	var out detector.Pair[predictor.History]

	if !svc.cfg.Parallel {
		for _, k := range detector.Kinds {
			h, err := svc.fit(k, epochs)
			if err != nil {
				return detector.Pair[predictor.History]{}, err
			}
			out.Set(k, h)
		}

		return out, nil
	}

	var seq, spectral predictor.History
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		seq, err = svc.fit(detector.Sequence, epochs)
		return err
	})
	g.Go(func() (err error) {
		spectral, err = svc.fit(detector.Spectral, epochs)
		return err
	})
	if err := g.Wait(); err != nil {
		return detector.Pair[predictor.History]{}, err
	}

	return detector.Pair[predictor.History]{Sequence: seq, Spectral: spectral}, nil
}

func (svc *service) fit(k detector.Kind, epochs int) (predictor.History, error) {
	s := svc.slots.Get(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	x := s.train.Stacked()
	h, err := s.predictor.Fit(x, x, predictor.FitOptions{
		Epochs:          epochs,
		InitialEpoch:    s.epochs,
		BatchSize:       svc.cfg.BatchSize,
		ValidationSplit: svc.cfg.ValidationSplit,
		Schedule:        svc.cfg.Schedule,
	})
	if err != nil {
		return predictor.History{}, fmt.Errorf("%w: %s: %w", ErrPredictor, k, err)
	}
	s.history.Append(h)
	s.epochs += epochs

	return h, nil
}

func (svc *service) ExportParameters(ctx context.Context) (detector.Pair[predictor.Snapshot], error) {
	return detector.Map(svc.slots, func(k detector.Kind, s *slot) (predictor.Snapshot, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		p, err := s.predictor.Parameters()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPredictor, err)
		}

		return p, nil
	})
}

func (svc *service) ImportParameters(ctx context.Context, params detector.Pair[predictor.Snapshot]) error {
	// Slots are always locked in wire order.
	seq, spectral := svc.slots.Sequence, svc.slots.Spectral
	seq.mu.Lock()
	defer seq.mu.Unlock()
	spectral.mu.Lock()
	defer spectral.mu.Unlock()

	previous, err := seq.predictor.Parameters()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPredictor, detector.Sequence, err)
	}
	if err := seq.predictor.SetParameters(params.Sequence); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPredictor, detector.Sequence, err)
	}
	if err := spectral.predictor.SetParameters(params.Spectral); err != nil {
		if rerr := seq.predictor.SetParameters(previous); rerr != nil {
			err = fmt.Errorf("%w (rollback: %w)", err, rerr)
		}

		return fmt.Errorf("%w: %s: %w", ErrPredictor, detector.Spectral, err)
	}

	return nil
}

// ModelPath is the file Persist writes for detector k.
func ModelPath(dir string, k detector.Kind) string {
	return filepath.Join(dir, k.String()+modelExt)
}

func (svc *service) Persist(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	_, err := detector.Map(svc.slots, func(k detector.Kind, s *slot) (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		return struct{}{}, s.predictor.SaveTo(ModelPath(dir, k))
	})

	return err
}

func (svc *service) Restore(ctx context.Context, dir string) error {
	_, err := detector.Map(svc.slots, func(k detector.Kind, s *slot) (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		return struct{}{}, s.predictor.LoadFrom(ModelPath(dir, k))
	})

	return err
}

func (svc *service) History(ctx context.Context) (detector.Pair[predictor.History], error) {
	return detector.Map(svc.slots, func(_ detector.Kind, s *slot) (predictor.History, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		return predictor.History{
			Loss:    append([]float64(nil), s.history.Loss...),
			ValLoss: append([]float64(nil), s.history.ValLoss...),
		}, nil
	})
}

func (svc *service) Evaluate(ctx context.Context) (detector.Pair[Report], error) {
	if err := svc.cfg.Threshold.Validate(); err != nil {
		return detector.Pair[Report]{}, err
	}

	mode := evaluation.Windowed
	if svc.identity.UntilFailure {
		mode = evaluation.UntilFailure
	}
	key := labels.Key{
		Dataset:    svc.identity.Dataset,
		Experiment: svc.identity.Experiment,
		Detector:   svc.identity.Detector,
	}
	intervals, err := svc.labels.Intervals(key, svc.labelScale())
	if err != nil {
		return detector.Pair[Report]{}, err
	}

	return detector.Map(svc.slots, func(k detector.Kind, s *slot) (Report, error) {
		scores, err := svc.score(s)
		if err != nil {
			return Report{}, err
		}

		truth := evaluation.GroundTruth(len(scores), intervals, mode)
		// Without both classes the curve is undefined; AUC and Best stay zero.
		var roc *evaluation.Curve
		curve, err := evaluation.ROC(scores, truth, mode)
		switch {
		case err == nil:
			roc = &curve
		case errors.Is(err, evaluation.ErrSingleClass) && svc.cfg.Threshold.Policy() != threshold.Optimal:
		default:
			return Report{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
		}
		th, err := threshold.Compute(svc.cfg.Threshold, scores, roc)
		if err != nil {
			return Report{}, err
		}
		a, err := evaluation.Assess(scores, th, truth, mode)
		if err != nil {
			return Report{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
		}

		return Report{
			Detector:  k.String(),
			Mode:      mode.String(),
			Policy:    svc.cfg.Threshold.Policy(),
			Threshold: th,
			AUC:       curve.AUC,
			Best:      curve.Best,
			Confusion: a.Confusion,
			Precision: a.Confusion.Precision(),
			Recall:    a.Confusion.Recall(),
			F1:        a.F1(),
			Intervals: a.Intervals,
			Scores:    scores,
		}, nil
	})
}

func (svc *service) labelScale() float64 {
	if svc.cfg.LabelScale <= 0 {
		return 1
	}

	return svc.cfg.LabelScale
}

// score returns one anomaly score per window of the full view.
func (svc *service) score(s *slot) ([]float64, error) {
	s.mu.Lock()
	pred, err := s.predictor.Predict(s.full.Stacked())
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPredictor, err)
	}

	samples := s.full.Samples()
	rows, cols := samples.Dims()
	if pr, pc := pred.Dims(); pr*pc != rows*cols {
		return nil, fmt.Errorf("%w: %w: prediction %dx%d", ErrPredictor, scoring.ErrShapeMismatch, pr, pc)
	}
	flat := mat.NewDense(rows, cols, mat.DenseCopyOf(pred).RawMatrix().Data)

	return scoring.Score(samples, flat, s.full.Split(), false)
}
