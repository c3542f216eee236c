package fl_test

import (
	"testing"
	"time"

	"github.com/absmach/fedanomaly/pkg/errors"
	"github.com/absmach/fedanomaly/pkg/fl"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(participant string, samples int, w, b []float64) fl.Update {
	return fl.Update{
		ParticipantID: participant,
		Detector:      "sequence",
		NumSamples:    samples,
		Tensors: []predictor.Tensor{
			{Name: "encoder/kernel", Shape: []int{len(w)}, Data: w},
			{Name: "encoder/bias", Shape: []int{len(b)}, Data: b},
		},
	}
}

func TestFedAvgAggregate(t *testing.T) {
	tests := []struct {
		name    string
		updates []fl.Update
		wantW   []float64
		wantB   []float64
		err     error
	}{
		{
			name:    "no updates",
			updates: nil,
			err:     fl.ErrNoUpdates,
		},
		{
			name: "unweighted mean",
			updates: []fl.Update{
				update("a", 0, []float64{1, 2}, []float64{0}),
				update("b", 0, []float64{3, 6}, []float64{1}),
			},
			wantW: []float64{2, 4},
			wantB: []float64{0.5},
		},
		{
			name: "sample weighted mean",
			updates: []fl.Update{
				update("a", 3, []float64{1, 1}, []float64{0}),
				update("b", 1, []float64{5, 9}, []float64{4}),
			},
			wantW: []float64{2, 3},
			wantB: []float64{1},
		},
		{
			name: "shape mismatch",
			updates: []fl.Update{
				update("a", 1, []float64{1, 2}, []float64{0}),
				update("b", 1, []float64{1, 2, 3}, []float64{0}),
			},
			err: fl.ErrShapeMismatch,
		},
		{
			name: "negative samples",
			updates: []fl.Update{
				update("a", -1, []float64{1}, []float64{0}),
			},
			err: fl.ErrOverflow,
		},
	}

	agg := fl.NewFedAvgAggregator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := agg.Aggregate(tt.updates)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Len(t, model.Tensors, 2)
			assert.Equal(t, "sequence", model.Detector)
			assert.InDeltaSlice(t, tt.wantW, model.Tensors[0].Data, 1e-12)
			assert.InDeltaSlice(t, tt.wantB, model.Tensors[1].Data, 1e-12)
			assert.Equal(t, len(tt.updates), model.Metadata["num_updates"])
		})
	}
}

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	a, err := fl.NewArchive(dir+"/rounds", dir+"/models")
	require.NoError(t, err)

	state := &fl.RoundState{
		RoundID:      "a3c1",
		Round:        1,
		Participants: 2,
		StartTime:    time.Now().UTC().Truncate(time.Second),
		Completed:    true,
	}
	require.NoError(t, a.SaveRound(state))
	require.NoError(t, a.SaveRound(&fl.RoundState{RoundID: "b7f2", Round: 12}))

	loaded, err := a.LoadRound(1)
	require.NoError(t, err)
	assert.Equal(t, "a3c1", loaded.RoundID)
	assert.True(t, loaded.StartTime.Equal(state.StartTime))
	assert.True(t, loaded.Completed)

	rounds, err := a.Rounds()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 12}, rounds)

	_, err = a.LoadRound(3)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, a.SaveRound(&fl.RoundState{}), fl.ErrInvalidRound)

	model := fl.Model{
		Detector: "spectral",
		Tensors:  []predictor.Tensor{{Name: "w", Shape: []int{2}, Data: []float64{0.5, -1}}},
	}
	require.NoError(t, a.SaveModel(3, model))
	require.NoError(t, a.SaveModel(1, model))

	got, err := a.LoadModel("spectral", 3)
	require.NoError(t, err)
	assert.Equal(t, model.Tensors, got.Tensors)

	versions, err := a.ModelRounds("spectral")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, versions)

	versions, err = a.ModelRounds("sequence")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestArchiveRejectsDetectorNames(t *testing.T) {
	a, err := fl.NewArchive(t.TempDir()+"/rounds", t.TempDir()+"/models")
	require.NoError(t, err)

	for _, name := range []string{"", ".", "..", "../etc", `a\b`} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, a.SaveModel(1, fl.Model{Detector: name}), fl.ErrInvalidDetector)
			_, err := a.LoadModel(name, 1)
			assert.ErrorIs(t, err, fl.ErrInvalidDetector)
		})
	}
}
