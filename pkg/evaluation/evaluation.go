// Package evaluation compares anomaly scores and decisions with ground truth.
package evaluation

import (
	"errors"
	"fmt"
)

var (
	// ErrSingleClass is returned when the ground truth has no positive or
	// no negative window, which leaves the ROC curve undefined.
	ErrSingleClass    = errors.New("ground truth contains a single class")
	ErrLengthMismatch = errors.New("scores and ground truth differ in length")
	ErrUnknownMode    = errors.New("unknown evaluation mode")
)

// Mode selects how labels and predictions are matched.
type Mode uint8

const (
	// Windowed treats each window independently.
	Windowed Mode = iota
	// UntilFailure treats degradation as monotonic: every window from the
	// first true anomaly onward is positive, and once a window is predicted
	// anomalous every later one is too.
	UntilFailure
)

func (m Mode) String() string {
	switch m {
	case Windowed:
		return "windowed"
	case UntilFailure:
		return "until-failure"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "windowed", "":
		return Windowed, nil
	case "until-failure":
		return UntilFailure, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Interval is an inclusive range of window indices.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// GroundTruth expands labeled intervals into one flag per window. Intervals
// are clipped to [0, n).
func GroundTruth(n int, intervals []Interval, mode Mode) []bool {
	truth := make([]bool, n)
	if mode == UntilFailure {
		first := n
		for _, iv := range intervals {
			if iv.End < 0 || iv.Start >= n || iv.End < iv.Start {
				continue
			}
			first = min(first, max(iv.Start, 0))
		}
		for i := first; i < n; i++ {
			truth[i] = true
		}

		return truth
	}

	for _, iv := range intervals {
		for i := max(iv.Start, 0); i <= min(iv.End, n-1); i++ {
			truth[i] = true
		}
	}

	return truth
}

// Effective returns the scores the decision rule is applied to. In
// until-failure mode that is the running maximum, so a window exceeding the
// threshold drags every later window above it.
func Effective(scores []float64, mode Mode) []float64 {
	if mode != UntilFailure {
		return scores
	}

	out := make([]float64, len(scores))
	var peak float64
	for i, s := range scores {
		if i == 0 || s > peak {
			peak = s
		}
		out[i] = peak
	}

	return out
}

// Decide flags every window whose effective score is strictly above
// threshold.
func Decide(scores []float64, threshold float64, mode Mode) []bool {
	eff := Effective(scores, mode)
	out := make([]bool, len(eff))
	for i, s := range eff {
		out[i] = s > threshold
	}

	return out
}

// Intervals groups consecutive positive decisions.
func Intervals(decisions []bool) []Interval {
	var out []Interval
	start := -1
	for i, d := range decisions {
		switch {
		case d && start < 0:
			start = i
		case !d && start >= 0:
			out = append(out, Interval{Start: start, End: i - 1})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Interval{Start: start, End: len(decisions) - 1})
	}

	return out
}

type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

func Confuse(predicted, truth []bool) (Confusion, error) {
	if len(predicted) != len(truth) {
		return Confusion{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(predicted), len(truth))
	}

	var c Confusion
	for i, p := range predicted {
		switch {
		case p && truth[i]:
			c.TP++
		case p:
			c.FP++
		case truth[i]:
			c.FN++
		default:
			c.TN++
		}
	}

	return c, nil
}

func (c Confusion) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

func (c Confusion) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

func (c Confusion) F1() float64 {
	return f1(c.Precision(), c.Recall())
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}

	return float64(a) / float64(b)
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}

	return 2 * precision * recall / (precision + recall)
}

// Assessment is the outcome of applying one threshold.
type Assessment struct {
	Threshold float64    `json:"threshold"`
	Decisions []bool     `json:"-"`
	Confusion Confusion  `json:"confusion"`
	Intervals []Interval `json:"intervals"`
}

func (a Assessment) F1() float64 {
	return a.Confusion.F1()
}

// Assess applies threshold to scores and compares the decisions with truth.
func Assess(scores []float64, threshold float64, truth []bool, mode Mode) (Assessment, error) {
	decisions := Decide(scores, threshold, mode)
	c, err := Confuse(decisions, truth)
	if err != nil {
		return Assessment{}, err
	}

	return Assessment{
		Threshold: threshold,
		Decisions: decisions,
		Confusion: c,
		Intervals: Intervals(decisions),
	}, nil
}
