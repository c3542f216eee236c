// Package threshold derives the score above which a window is anomalous.
package threshold

import (
	"errors"
	"fmt"

	"github.com/absmach/fedanomaly/pkg/evaluation"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrInvalidPolicy = errors.New("invalid threshold policy")
	ErrInvalidPeriod = errors.New("invalid threshold calculation period")
	ErrEmptyScores   = errors.New("no scores to derive a threshold from")
)

type Policy string

const (
	// Statistical places the threshold k standard deviations above the mean
	// score of a reference period.
	Statistical Policy = "statistical"
	// Optimal picks the cutoff maximizing F1 on the labeled ROC sweep.
	Optimal Policy = "optimal"
)

type Config struct {
	Deviations float64    `toml:"deviations"`
	Period     [2]float64 `toml:"period"`
	UseOptimal bool       `toml:"use_optimal"`
}

// Policy returns the configured policy. The optimal threshold overrides the
// statistical one only when enabled.
func (c Config) Policy() Policy {
	if c.UseOptimal {
		return Optimal
	}

	return Statistical
}

func (c Config) Validate() error {
	if c.Deviations < 0 {
		return fmt.Errorf("%w: negative deviation count %v", ErrInvalidPolicy, c.Deviations)
	}

	return validPeriod(c.Period)
}

func validPeriod(p [2]float64) error {
	if p[0] < 0 || p[1] > 1 || p[0] >= p[1] {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidPeriod, p[0], p[1])
	}

	return nil
}

// Statistic computes mean + k*stddev over the [period[0], period[1]) fraction
// of scores. The standard deviation is the population one.
func Statistic(scores []float64, period [2]float64, k float64) (float64, error) {
	if err := validPeriod(period); err != nil {
		return 0, err
	}
	if len(scores) == 0 {
		return 0, ErrEmptyScores
	}

	n := float64(len(scores))
	start, end := int(period[0]*n), int(period[1]*n)
	if start >= end {
		return 0, fmt.Errorf("%w: period selects no score out of %d", ErrInvalidPeriod, len(scores))
	}

	mean, std := stat.PopMeanStdDev(scores[start:end], nil)

	return mean + k*std, nil
}

// Best returns the max-F1 threshold of the ROC sweep of scores against truth.
func Best(scores []float64, truth []bool, mode evaluation.Mode) (float64, error) {
	if len(scores) == 0 {
		return 0, ErrEmptyScores
	}
	c, err := evaluation.ROC(scores, truth, mode)
	if err != nil {
		return 0, err
	}

	return c.Best.Threshold, nil
}

// Compute applies the configured policy. The curve is used for the optimal
// policy and may be nil otherwise.
func Compute(cfg Config, scores []float64, curve *evaluation.Curve) (float64, error) {
	switch cfg.Policy() {
	case Statistical:
		return Statistic(scores, cfg.Period, cfg.Deviations)
	case Optimal:
		if curve == nil {
			return 0, fmt.Errorf("%w: optimal threshold needs a ROC curve", ErrInvalidPolicy)
		}

		return curve.Best.Threshold, nil
	default:
		return 0, ErrInvalidPolicy
	}
}
