package trainer_test

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/absmach/fedanomaly/pkg/dataset"
	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/evaluation"
	"github.com/absmach/fedanomaly/pkg/labels"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/pkg/threshold"
	"github.com/absmach/fedanomaly/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const labelTable = `
synthetic:
  run-1:
    bearing-0: [[15, 19]]
`

func newData(t *testing.T) *dataset.Data {
	t.Helper()

	m := mat.NewDense(80, 2, nil)
	for i := range 80 {
		v := math.Sin(float64(i) / 2)
		if i >= 60 {
			v += 3 * math.Cos(float64(i)*1.7)
		}
		m.Set(i, 0, v)
		m.Set(i, 1, -v)
	}

	d, err := dataset.Prepare(m, 4, 0.5)
	require.NoError(t, err)
	d.Identity = dataset.Identity{Dataset: "synthetic", Experiment: "run-1", Detector: "bearing-0"}

	return d
}

func newModels(t *testing.T, d *dataset.Data, seed uint64) detector.Pair[predictor.Predictor] {
	t.Helper()

	return detector.NewPair(func(k detector.Kind) predictor.Predictor {
		v := d.Views().Get(k)
		m, err := predictor.NewAutoencoder(predictor.Config{
			Inputs: v.Split() * v.Features(),
			Hidden: 3,
			Seed:   seed + uint64(k),
		})
		require.NoError(t, err)

		return m
	})
}

func config() trainer.Config {
	return trainer.Config{
		BatchSize:       4,
		ValidationSplit: 0.2,
		Schedule:        predictor.Schedule{Rate: 0.01, DecayStart: 2, DecayRate: 0.1},
		Threshold:       threshold.Config{Deviations: 2, Period: [2]float64{0, 0.5}},
		LabelScale:      1,
	}
}

func newService(t *testing.T, cfg trainer.Config, seed uint64) trainer.Service {
	t.Helper()

	return newServiceWithLabels(t, cfg, seed, labelTable)
}

func newServiceWithLabels(t *testing.T, cfg trainer.Config, seed uint64, table string) trainer.Service {
	t.Helper()

	tbl, err := labels.Decode(strings.NewReader(table))
	require.NoError(t, err)
	d := newData(t)

	return trainer.NewService(cfg, d, newModels(t, d, seed), tbl)
}

func TestTrainRoundAccumulatesHistory(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, config(), 1)

	for range 3 {
		h, err := svc.TrainRound(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, h.Sequence.Loss, 2)
		assert.Len(t, h.Spectral.Loss, 2)
		assert.Len(t, h.Sequence.ValLoss, 2)
	}

	h, err := svc.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, h.Sequence.Epochs())
	assert.Equal(t, 6, h.Spectral.Epochs())
}

func TestParallelTrainingMatchesSequential(t *testing.T) {
	ctx := context.Background()

	cfg := config()
	seq := newService(t, cfg, 11)
	cfg.Parallel = true
	par := newService(t, cfg, 11)

	want, err := seq.TrainRound(ctx, 3)
	require.NoError(t, err)
	got, err := par.TrainRound(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParametersExchange(t *testing.T) {
	ctx := context.Background()
	src := newService(t, config(), 1)
	dst := newService(t, config(), 2)

	_, err := src.TrainRound(ctx, 2)
	require.NoError(t, err)

	params, err := src.ExportParameters(ctx)
	require.NoError(t, err)
	require.NoError(t, dst.ImportParameters(ctx, params))

	want, err := src.Evaluate(ctx)
	require.NoError(t, err)
	got, err := dst.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Sequence.Scores, got.Sequence.Scores)
	assert.Equal(t, want.Spectral.Scores, got.Spectral.Scores)
}

func TestImportIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, config(), 1)

	before, err := svc.ExportParameters(ctx)
	require.NoError(t, err)

	other := newService(t, config(), 5)
	params, err := other.ExportParameters(ctx)
	require.NoError(t, err)
	params.Spectral = predictor.Snapshot("not a snapshot")

	err = svc.ImportParameters(ctx, params)
	assert.ErrorIs(t, err, trainer.ErrPredictor)

	after, err := svc.ExportParameters(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPersistRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src := newService(t, config(), 1)
	_, err := src.TrainRound(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, src.Persist(ctx, dir))

	for _, k := range detector.Kinds {
		_, err := os.Stat(trainer.ModelPath(dir, k))
		require.NoError(t, err)
	}

	dst := newService(t, config(), 9)
	require.NoError(t, dst.Restore(ctx, dir))

	want, err := src.ExportParameters(ctx)
	require.NoError(t, err)
	got, err := dst.ExportParameters(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, dst.Restore(ctx, t.TempDir()))
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		desc   string
		cfg    func(trainer.Config) trainer.Config
		policy threshold.Policy
		err    error
	}{
		{
			desc:   "statistical threshold",
			cfg:    func(c trainer.Config) trainer.Config { return c },
			policy: threshold.Statistical,
		},
		{
			desc: "optimal threshold",
			cfg: func(c trainer.Config) trainer.Config {
				c.Threshold.UseOptimal = true
				return c
			},
			policy: threshold.Optimal,
		},
		{
			desc: "invalid period",
			cfg: func(c trainer.Config) trainer.Config {
				c.Threshold.Period = [2]float64{0.8, 0.2}
				return c
			},
			err: threshold.ErrInvalidPeriod,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			svc := newService(t, tc.cfg(config()), 1)
			_, err := svc.TrainRound(ctx, 2)
			require.NoError(t, err)

			reports, err := svc.Evaluate(ctx)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)

			for _, k := range detector.Kinds {
				r := reports.Get(k)
				assert.Equal(t, k.String(), r.Detector)
				assert.Equal(t, tc.policy, r.Policy)
				assert.Equal(t, "windowed", r.Mode)
				assert.Len(t, r.Scores, 20)
				if tc.policy == threshold.Statistical {
					assert.GreaterOrEqual(t, r.Threshold, 0.0)
				}
				assert.GreaterOrEqual(t, r.AUC, 0.0)
				assert.LessOrEqual(t, r.AUC, 1.0)
				c := r.Confusion
				assert.Equal(t, 20, c.TP+c.FP+c.TN+c.FN)
				assert.Equal(t, 5, c.TP+c.FN)
			}
			if tc.policy == threshold.Optimal {
				assert.Equal(t, reports.Sequence.Best.Threshold, reports.Sequence.Threshold)
				assert.InDelta(t, reports.Sequence.Best.F1, reports.Sequence.F1, 1e-12)
			}
		})
	}
}

func TestEvaluateWithoutLabels(t *testing.T) {
	d := newData(t)
	svc := trainer.NewService(config(), d, newModels(t, d, 1), nil)

	_, err := svc.Evaluate(context.Background())
	assert.ErrorIs(t, err, labels.ErrUnknownLabelKey)
}

func TestEvaluateWithoutAnomalies(t *testing.T) {
	ctx := context.Background()
	const table = `
synthetic:
  run-1:
    bearing-0: []
`

	cases := []struct {
		desc    string
		optimal bool
		err     error
	}{
		{desc: "statistical threshold needs no curve"},
		{desc: "optimal threshold needs a curve", optimal: true, err: trainer.ErrEvaluation},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := config()
			cfg.Threshold.UseOptimal = tc.optimal
			svc := newServiceWithLabels(t, cfg, 1, table)
			_, err := svc.TrainRound(ctx, 2)
			require.NoError(t, err)

			reports, err := svc.Evaluate(ctx)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.ErrorIs(t, err, evaluation.ErrSingleClass)
				return
			}
			require.NoError(t, err)

			for _, k := range detector.Kinds {
				r := reports.Get(k)
				assert.Zero(t, r.AUC)
				assert.Zero(t, r.Best)
				c := r.Confusion
				assert.Equal(t, 20, c.TP+c.FP+c.TN+c.FN)
				assert.Zero(t, c.TP+c.FN)
				assert.Equal(t, c.FP, countAbove(r.Scores, r.Threshold))
				assert.Zero(t, r.F1)
			}
		})
	}
}

func countAbove(scores []float64, th float64) int {
	n := 0
	for _, s := range scores {
		if s > th {
			n++
		}
	}

	return n
}
