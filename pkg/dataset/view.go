package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// View is a windowed dataset. Logically it is a [windows, split, features]
// array; it is stored as a row-major [windows*split, features] matrix so the
// flattened sample view and the windowed view share one backing slice.
type View struct {
	split    int
	features int
	data     *mat.Dense
}

// New copies samples into a View with windows of split rows.
func New(samples mat.Matrix, split int) (*View, error) {
	if split <= 0 {
		return nil, fmt.Errorf("%w: window size %d", ErrDataInvariant, split)
	}
	if samples == nil {
		return nil, fmt.Errorf("%w: no samples", ErrDataInvariant)
	}
	if d, ok := samples.(*mat.Dense); ok && d.IsEmpty() {
		return nil, fmt.Errorf("%w: no samples", ErrDataInvariant)
	}
	rows, _ := samples.Dims()
	if rows%split != 0 {
		return nil, fmt.Errorf("%w: %d samples with window size %d", ErrDataInvariant, rows, split)
	}

	return &View{
		split:    split,
		features: cols(samples),
		data:     mat.DenseCopyOf(samples),
	}, nil
}

// FromWindows builds a View from a flat row-major [windows, split, features]
// slice. The slice is used without copying.
func FromWindows(windows, split, features int, data []float64) (*View, error) {
	if windows <= 0 || split <= 0 || features <= 0 {
		return nil, fmt.Errorf("%w: shape [%d %d %d]", ErrDataInvariant, windows, split, features)
	}
	if len(data) != windows*split*features {
		return nil, fmt.Errorf("%w: %d values for shape [%d %d %d]", ErrDataInvariant, len(data), windows, split, features)
	}

	return &View{
		split:    split,
		features: features,
		data:     mat.NewDense(windows*split, features, data),
	}, nil
}

func cols(m mat.Matrix) int {
	_, c := m.Dims()
	return c
}

func (v *View) Windows() int {
	r, _ := v.data.Dims()
	return r / v.split
}

func (v *View) Split() int {
	return v.split
}

func (v *View) Features() int {
	return v.features
}

// Shape returns [windows, split, features].
func (v *View) Shape() [3]int {
	return [3]int{v.Windows(), v.split, v.features}
}

// Samples is the flattened [windows*split, features] matrix. It aliases the
// view and must not be modified.
func (v *View) Samples() *mat.Dense {
	return v.data
}

// Window returns the split x features matrix of window i.
func (v *View) Window(i int) *mat.Dense {
	return v.data.Slice(i*v.split, (i+1)*v.split, 0, v.features).(*mat.Dense)
}

// Stacked returns a [windows, split*features] matrix aliasing the view, one
// flattened window per row.
func (v *View) Stacked() *mat.Dense {
	n := v.Windows()
	raw := v.data.RawMatrix()

	return mat.NewDense(n, v.split*v.features, raw.Data[:n*v.split*v.features])
}

// Head returns a View over the first n windows, sharing storage.
func (v *View) Head(n int) *View {
	if n >= v.Windows() {
		return v
	}

	return &View{
		split:    v.split,
		features: v.features,
		data:     v.data.Slice(0, n*v.split, 0, v.features).(*mat.Dense),
	}
}

// At returns the value of feature f at step t of window w.
func (v *View) At(w, t, f int) float64 {
	return v.data.At(w*v.split+t, f)
}
