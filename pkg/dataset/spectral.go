package dataset

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// Spectral returns the frequency-domain view of v: for every window and
// feature, the magnitude of the full complex DFT along the time axis. The
// result has the same shape as v and stays index-aligned with it.
func Spectral(v *View) *View {
	n := v.split
	fft := fourier.NewCmplxFFT(n)
	seq := make([]complex128, n)
	coeff := make([]complex128, n)

	rows, _ := v.data.Dims()
	out := mat.NewDense(rows, v.features, nil)
	for w := range v.Windows() {
		base := w * n
		for f := range v.features {
			for t := range n {
				seq[t] = complex(v.data.At(base+t, f), 0)
			}
			coeff = fft.Coefficients(coeff, seq)
			for t, c := range coeff {
				out.Set(base+t, f, cmplx.Abs(c))
			}
		}
	}

	return &View{
		split:    n,
		features: v.features,
		data:     out,
	}
}
