package predictor

import (
	"fmt"
	"math"
)

// Schedule keeps the learning rate constant for DecayStart epochs and then
// decays it exponentially.
type Schedule struct {
	Rate       float64 `toml:"rate" json:"rate"`
	DecayStart int     `toml:"decay_start" json:"decay_start"`
	DecayRate  float64 `toml:"decay_rate" json:"decay_rate"`
}

// At returns the learning rate for the zero-based cumulative epoch.
func (s Schedule) At(epoch int) float64 {
	if epoch < s.DecayStart {
		return s.Rate
	}

	return s.Rate * math.Exp(-s.DecayRate*float64(epoch-s.DecayStart))
}

func (s Schedule) Validate() error {
	switch {
	case s.Rate <= 0:
		return fmt.Errorf("%w: learning rate must be positive", ErrInvalidOptions)
	case s.DecayStart < 0:
		return fmt.Errorf("%w: negative decay start", ErrInvalidOptions)
	case s.DecayRate < 0:
		return fmt.Errorf("%w: negative decay rate", ErrInvalidOptions)
	}

	return nil
}
