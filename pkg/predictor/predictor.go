// Package predictor defines the trainable reconstruction model both detectors
// are built on, and a dense autoencoder implementing it.
package predictor

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrShapeMismatch   = errors.New("shape mismatch")
	ErrInvalidOptions  = errors.New("invalid fit options")
	ErrDiverged        = errors.New("training diverged")
	ErrInvalidSnapshot = errors.New("invalid parameter snapshot")
)

// Snapshot is the serialized state of a predictor. Its content is opaque to
// everything except predictors and parameter aggregators.
type Snapshot []byte

// Predictor is a trainable model reconstructing its input. Inputs are
// stacked windows, one flattened window per row.
type Predictor interface {
	// Fit trains on x against target y for opts.Epochs epochs.
	Fit(x, y *mat.Dense, opts FitOptions) (History, error)

	// Predict returns the reconstruction of x.
	Predict(x *mat.Dense) (*mat.Dense, error)

	// Parameters returns a copy of the model state.
	Parameters() (Snapshot, error)

	// SetParameters replaces the whole model state.
	SetParameters(s Snapshot) error

	SaveTo(path string) error
	LoadFrom(path string) error
}

type FitOptions struct {
	Epochs int
	// InitialEpoch is the number of epochs already run before this call. The
	// learning rate schedule is evaluated on the cumulative count.
	InitialEpoch    int
	BatchSize       int
	ValidationSplit float64
	Schedule        Schedule
}

func (o FitOptions) Validate() error {
	if o.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive", ErrInvalidOptions)
	}
	if o.InitialEpoch < 0 {
		return fmt.Errorf("%w: negative initial epoch", ErrInvalidOptions)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidOptions)
	}
	if o.ValidationSplit < 0 || o.ValidationSplit >= 1 {
		return fmt.Errorf("%w: validation split must be in [0, 1)", ErrInvalidOptions)
	}

	return o.Schedule.Validate()
}

// History holds per-epoch losses. ValLoss is empty when no validation
// windows were held out.
type History struct {
	Loss    []float64 `json:"loss"`
	ValLoss []float64 `json:"val_loss"`
}

func (h *History) Append(o History) {
	h.Loss = append(h.Loss, o.Loss...)
	h.ValLoss = append(h.ValLoss, o.ValLoss...)
}

// Epochs is the number of recorded epochs.
func (h History) Epochs() int {
	return len(h.Loss)
}

// Last returns the most recent training and validation loss, zero when
// nothing was recorded.
func (h History) Last() (loss, valLoss float64) {
	if n := len(h.Loss); n > 0 {
		loss = h.Loss[n-1]
	}
	if n := len(h.ValLoss); n > 0 {
		valLoss = h.ValLoss[n-1]
	}

	return loss, valLoss
}
