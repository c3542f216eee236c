// Package scoring turns reconstruction error into anomaly scores.
package scoring

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var ErrShapeMismatch = errors.New("prediction shape does not match data")

// SampleErrors returns, for every row, the mean squared error across
// features between actual and predicted.
func SampleErrors(actual, predicted mat.Matrix) ([]float64, error) {
	ar, ac := actual.Dims()
	pr, pc := predicted.Dims()
	if ar != pr || ac != pc {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, ar, ac, pr, pc)
	}

	var diff mat.Dense
	diff.Sub(actual, predicted)

	out := make([]float64, ar)
	row := make([]float64, ac)
	for i := range ar {
		mat.Row(row, i, &diff)
		out[i] = floats.Dot(row, row) / float64(ac)
	}

	return out, nil
}

// Group reduces consecutive chunks of split per-sample errors to their mean.
// len(errs) is expected to be a multiple of split.
func Group(errs []float64, split int) []float64 {
	out := make([]float64, len(errs)/split)
	for i := range out {
		out[i] = stat.Mean(errs[i*split:(i+1)*split], nil)
	}

	return out
}

// Score computes one score per window, or one per sample when raw is set.
// Both matrices are in flattened [windows*split, features] layout.
func Score(actual, predicted mat.Matrix, split int, raw bool) ([]float64, error) {
	errs, err := SampleErrors(actual, predicted)
	if err != nil {
		return nil, err
	}
	if raw {
		return errs, nil
	}

	return Group(errs, split), nil
}
