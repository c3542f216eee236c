package fedanomaly_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/absmach/fedanomaly"
	"github.com/absmach/fedanomaly/pkg/evaluation"
	"github.com/absmach/fedanomaly/pkg/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func experiment(t *testing.T, withLabels bool) *fedanomaly.Config {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "synthetic", "run-1")
	require.NoError(t, os.MkdirAll(filepath.Dir(base), 0o755))

	var b strings.Builder
	b.WriteString("a,b\n")
	for i := range 80 {
		v := math.Sin(float64(i) / 2)
		if i >= 60 {
			v += 3 * math.Cos(float64(i)*1.7)
		}
		fmt.Fprintf(&b, "%f,%f\n", v, -v)
	}
	require.NoError(t, os.WriteFile(base+"_4.csv", []byte(b.String()), 0o600))

	cfg := &fedanomaly.Config{
		ExperimentName: "synthetic",
		ModelsPath:     filepath.Join(dir, "model"),
		Rounds:         2,
		EpochsPerRound: 1,
		SplitSize:      4,
		BatchSize:      4,
		ValSplit:       0.2,
		TrainSplit:     0.5,
		Hidden:         3,
		Seed:           1,
		LabelScale:     1,
		Threshold:      fedanomaly.ThresholdConfig{Deviations: 2, Period: []float64{0, 0.5}},
		Clients: map[string]fedanomaly.ClientConfig{
			"CLIENT_1": {DatasetPath: base, DatasetColumns: []int{0, 1}},
		},
	}
	cfg.Schedule.Rate = 0.01
	cfg.Schedule.DecayStart = 2
	cfg.Schedule.DecayRate = 0.1

	if withLabels {
		cfg.LabelsPath = filepath.Join(dir, "labels.yaml")
		table := "synthetic:\n  run-1:\n    bearing-0: [[15, 19]]\n"
		require.NoError(t, os.WriteFile(cfg.LabelsPath, []byte(table), 0o600))
	}
	require.NoError(t, cfg.Validate())

	return cfg
}

func TestNewTrainer(t *testing.T) {
	cfg := experiment(t, true)
	ctx := context.Background()

	svc, data, err := cfg.NewTrainer("CLIENT_1")
	require.NoError(t, err)
	assert.Equal(t, 20, data.Raw.Windows())
	assert.Equal(t, "bearing-0", data.Identity.Detector)

	h, err := svc.TrainRound(ctx, cfg.EpochsPerRound)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Sequence.Epochs())
	assert.Equal(t, 1, h.Spectral.Epochs())

	reports, err := svc.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sequence", reports.Sequence.Detector)
	assert.Equal(t, "spectral", reports.Spectral.Detector)
	assert.Equal(t, evaluation.Windowed.String(), reports.Sequence.Mode)

	dir := cfg.ModelDir("CLIENT_1")
	require.NoError(t, svc.Persist(ctx, dir))
	restored, _, err := cfg.NewTrainer("CLIENT_1")
	require.NoError(t, err)
	require.NoError(t, restored.Restore(ctx, dir))
}

func TestNewTrainerWithoutLabels(t *testing.T) {
	cfg := experiment(t, false)

	svc, _, err := cfg.NewTrainer("")
	require.NoError(t, err)
	_, err = svc.Evaluate(context.Background())
	assert.ErrorIs(t, err, labels.ErrUnknownLabelKey)
}

func TestNewTrainerMissingDataset(t *testing.T) {
	cfg := experiment(t, false)
	client := cfg.Clients["CLIENT_1"]
	client.DatasetPath += "-missing"
	cfg.Clients["CLIENT_1"] = client

	_, _, err := cfg.NewTrainer("CLIENT_1")
	assert.Error(t, err)
}
