package fl

import (
	"fmt"
	"math"

	"github.com/absmach/fedanomaly/pkg/predictor"
	"gonum.org/v1/gonum/floats"
)

// FedAvgAggregator merges every tensor by its element-wise mean across
// updates, weighted by NumSamples. When no update reports samples all
// updates weigh the same.
type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (f *FedAvgAggregator) Aggregate(updates []Update) (Model, error) {
	if len(updates) == 0 {
		return Model{}, ErrNoUpdates
	}

	ref := updates[0]
	for _, u := range updates[1:] {
		if u.Detector != ref.Detector {
			return Model{}, fmt.Errorf("%w: detector %q and %q", ErrShapeMismatch, ref.Detector, u.Detector)
		}
		if len(u.Tensors) != len(ref.Tensors) {
			return Model{}, fmt.Errorf("%w: %s sent %d tensors, %s sent %d", ErrShapeMismatch, u.ParticipantID, len(u.Tensors), ref.ParticipantID, len(ref.Tensors))
		}
		for i, t := range u.Tensors {
			if !t.SameLayout(ref.Tensors[i]) {
				return Model{}, fmt.Errorf("%w: tensor %q from %s", ErrShapeMismatch, t.Name, u.ParticipantID)
			}
		}
	}

	weights := make([]float64, len(updates))
	var totalSamples int64
	for i, u := range updates {
		if u.NumSamples < 0 || totalSamples > math.MaxInt64-int64(u.NumSamples) {
			return Model{}, ErrOverflow
		}
		totalSamples += int64(u.NumSamples)
		weights[i] = float64(u.NumSamples)
	}
	if totalSamples == 0 {
		for i := range weights {
			weights[i] = 1
		}
	}
	norm := floats.Sum(weights)

	merged := make([]predictor.Tensor, len(ref.Tensors))
	for i, t := range ref.Tensors {
		data := make([]float64, len(t.Data))
		for j, u := range updates {
			floats.AddScaled(data, weights[j]/norm, u.Tensors[i].Data)
		}
		merged[i] = predictor.Tensor{Name: t.Name, Shape: t.Shape, Data: data}
	}

	return Model{
		Detector: ref.Detector,
		Tensors:  merged,
		Metadata: map[string]any{
			"total_samples": totalSamples,
			"num_updates":   len(updates),
			"algorithm":     "FedAvg",
		},
	}, nil
}
