package evaluation

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Point is one operating point of the ROC sweep. Threshold is expressed for
// the strict "score > threshold" decision rule.
type Point struct {
	Threshold float64 `json:"threshold"`
	FPR       float64 `json:"fpr"`
	TPR       float64 `json:"tpr"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Curve is a ROC sweep ordered by descending threshold, so FPR and TPR are
// non-decreasing. The first point rejects everything, the last accepts
// everything.
type Curve struct {
	Points []Point `json:"-"`
	AUC    float64 `json:"auc"`
	// Best is the point with the highest F1; ties go to the higher threshold.
	Best Point `json:"best"`
}

func (c Curve) FPR() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.FPR
	}

	return out
}

func (c Curve) TPR() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.TPR
	}

	return out
}

// ROC sweeps every distinct effective score, plus zero and +Inf, as a cutoff.
func ROC(scores []float64, truth []bool, mode Mode) (Curve, error) {
	if len(scores) != len(truth) {
		return Curve{}, ErrLengthMismatch
	}

	var pos, neg float64
	for _, t := range truth {
		if t {
			pos++
			continue
		}
		neg++
	}
	if pos == 0 || neg == 0 {
		return Curve{}, ErrSingleClass
	}

	y := slices.Clone(Effective(scores, mode))
	classes := slices.Clone(truth)
	stat.SortWeightedLabeled(y, classes, nil)

	cutoffs := make([]float64, 0, len(y)+2)
	cutoffs = append(cutoffs, 0)
	cutoffs = append(cutoffs, y...)
	cutoffs = append(cutoffs, math.Inf(1))
	slices.Sort(cutoffs)
	cutoffs = slices.Compact(cutoffs)

	tpr, fpr, thresh := stat.ROC(cutoffs, y, classes, nil)

	c := Curve{Points: make([]Point, len(thresh))}
	for i, cut := range thresh {
		tp := math.Round(tpr[i] * pos)
		fp := math.Round(fpr[i] * neg)
		precision := 0.0
		if tp+fp > 0 {
			precision = tp / (tp + fp)
		}

		p := Point{
			Threshold: strictThreshold(cut),
			FPR:       fpr[i],
			TPR:       tpr[i],
			Precision: precision,
			Recall:    tpr[i],
			F1:        f1(precision, tpr[i]),
		}
		c.Points[i] = p
		if i == 0 || p.F1 > c.Best.F1 {
			c.Best = p
		}
	}
	c.AUC = integrate.Trapezoidal(c.FPR(), c.TPR())

	return c, nil
}

// strictThreshold converts a "score >= cutoff" rule into the equivalent
// "score > threshold" one. The zero cutoff accepts every window, so its
// threshold sits just below zero.
func strictThreshold(cutoff float64) float64 {
	if math.IsInf(cutoff, 1) {
		return math.MaxFloat64
	}

	return math.Nextafter(cutoff, math.Inf(-1))
}
