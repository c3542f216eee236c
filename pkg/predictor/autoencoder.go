package predictor

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	tensorEncoderWeights = "encoder/kernel"
	tensorEncoderBias    = "encoder/bias"
	tensorDecoderWeights = "decoder/kernel"
	tensorDecoderBias    = "decoder/bias"
)

type Config struct {
	// Inputs is the width of a flattened window: split size times features.
	Inputs int
	// Hidden is the bottleneck width.
	Hidden int
	Seed   uint64
}

// Autoencoder is a single tanh bottleneck autoencoder trained with
// mini-batch gradient descent on mean squared error.
type Autoencoder struct {
	inputs int
	hidden int

	encW *mat.Dense    // inputs x hidden
	encB *mat.VecDense // hidden
	decW *mat.Dense    // hidden x inputs
	decB *mat.VecDense // inputs

	rng *rand.Rand
}

var _ Predictor = (*Autoencoder)(nil)

func NewAutoencoder(cfg Config) (*Autoencoder, error) {
	if cfg.Inputs <= 0 || cfg.Hidden <= 0 {
		return nil, fmt.Errorf("%w: inputs %d hidden %d", ErrShapeMismatch, cfg.Inputs, cfg.Hidden)
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	a := &Autoencoder{
		inputs: cfg.Inputs,
		hidden: cfg.Hidden,
		encW:   glorot(cfg.Inputs, cfg.Hidden, src),
		encB:   mat.NewVecDense(cfg.Hidden, nil),
		decW:   glorot(cfg.Hidden, cfg.Inputs, src),
		decB:   mat.NewVecDense(cfg.Inputs, nil),
		rng:    rand.New(src),
	}

	return a, nil
}

func glorot(fanIn, fanOut int, src rand.Source) *mat.Dense {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}

	data := make([]float64, fanIn*fanOut)
	for i := range data {
		data[i] = dist.Rand()
	}

	return mat.NewDense(fanIn, fanOut, data)
}

func (a *Autoencoder) checkInput(x *mat.Dense) error {
	if x == nil || x.IsEmpty() {
		return fmt.Errorf("%w: empty input", ErrShapeMismatch)
	}
	if _, c := x.Dims(); c != a.inputs {
		return fmt.Errorf("%w: input width %d, model expects %d", ErrShapeMismatch, c, a.inputs)
	}

	return nil
}

func (a *Autoencoder) forward(x mat.Matrix) (hidden, out *mat.Dense) {
	hidden = &mat.Dense{}
	hidden.Mul(x, a.encW)
	hidden.Apply(func(_, j int, v float64) float64 {
		return math.Tanh(v + a.encB.AtVec(j))
	}, hidden)

	out = &mat.Dense{}
	out.Mul(hidden, a.decW)
	out.Apply(func(_, j int, v float64) float64 {
		return v + a.decB.AtVec(j)
	}, out)

	return hidden, out
}

func (a *Autoencoder) Predict(x *mat.Dense) (*mat.Dense, error) {
	if err := a.checkInput(x); err != nil {
		return nil, err
	}
	_, out := a.forward(x)

	return out, nil
}

func (a *Autoencoder) Fit(x, y *mat.Dense, opts FitOptions) (History, error) {
	if err := opts.Validate(); err != nil {
		return History{}, err
	}
	if err := a.checkInput(x); err != nil {
		return History{}, err
	}
	xr, xc := x.Dims()
	if y == nil || y.IsEmpty() {
		return History{}, fmt.Errorf("%w: empty target", ErrShapeMismatch)
	}
	if yr, yc := y.Dims(); yr != xr || yc != xc {
		return History{}, fmt.Errorf("%w: target %dx%d, input %dx%d", ErrShapeMismatch, yr, yc, xr, xc)
	}

	// Validation windows are the trailing fraction, taken before shuffling.
	nTrain := int(float64(xr) * (1 - opts.ValidationSplit))
	if nTrain == 0 {
		return History{}, fmt.Errorf("%w: no training windows left after validation split", ErrInvalidOptions)
	}

	var h History
	for e := range opts.Epochs {
		lr := opts.Schedule.At(opts.InitialEpoch + e)

		var total float64
		perm := a.rng.Perm(nTrain)
		for start := 0; start < nTrain; start += opts.BatchSize {
			idx := perm[start:min(start+opts.BatchSize, nTrain)]
			xb, yb := gather(x, idx), gather(y, idx)
			total += a.step(xb, yb, lr) * float64(len(idx))
		}

		loss := total / float64(nTrain)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return h, fmt.Errorf("%w: loss %v at epoch %d", ErrDiverged, loss, opts.InitialEpoch+e)
		}
		h.Loss = append(h.Loss, loss)

		if nTrain < xr {
			xv := x.Slice(nTrain, xr, 0, xc)
			yv := y.Slice(nTrain, xr, 0, xc)
			h.ValLoss = append(h.ValLoss, a.loss(xv, yv))
		}
	}

	return h, nil
}

func gather(m *mat.Dense, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for k, r := range rows {
		out.SetRow(k, m.RawRowView(r))
	}

	return out
}

func meanSquared(d *mat.Dense) float64 {
	raw := d.RawMatrix()
	r, c := d.Dims()

	return floats.Dot(raw.Data, raw.Data) / float64(r*c)
}

func (a *Autoencoder) loss(x, y mat.Matrix) float64 {
	_, out := a.forward(x)
	out.Sub(out, y)

	return meanSquared(out)
}

// step runs one gradient descent update on a batch and returns the batch
// loss measured before the update.
func (a *Autoencoder) step(x, y *mat.Dense, lr float64) float64 {
	hidden, out := a.forward(x)
	r, c := out.Dims()

	grad := out
	grad.Sub(out, y)
	loss := meanSquared(grad)
	grad.Scale(2/float64(r*c), grad)

	var dDecW mat.Dense
	dDecW.Mul(hidden.T(), grad)
	dDecB := colSums(grad)

	var dHidden mat.Dense
	dHidden.Mul(grad, a.decW.T())
	dHidden.Apply(func(i, j int, v float64) float64 {
		h := hidden.At(i, j)
		return v * (1 - h*h)
	}, &dHidden)

	var dEncW mat.Dense
	dEncW.Mul(x.T(), &dHidden)
	dEncB := colSums(&dHidden)

	dDecW.Scale(-lr, &dDecW)
	a.decW.Add(a.decW, &dDecW)
	a.decB.AddScaledVec(a.decB, -lr, dDecB)
	dEncW.Scale(-lr, &dEncW)
	a.encW.Add(a.encW, &dEncW)
	a.encB.AddScaledVec(a.encB, -lr, dEncB)

	return loss
}

func colSums(m *mat.Dense) *mat.VecDense {
	r, c := m.Dims()
	s := mat.NewVecDense(c, nil)
	for i := range r {
		s.AddVec(s, m.RowView(i))
	}

	return s
}

func (a *Autoencoder) tensors() []Tensor {
	return []Tensor{
		{Name: tensorEncoderWeights, Shape: []int{a.inputs, a.hidden}, Data: denseData(a.encW)},
		{Name: tensorEncoderBias, Shape: []int{a.hidden}, Data: vecData(a.encB)},
		{Name: tensorDecoderWeights, Shape: []int{a.hidden, a.inputs}, Data: denseData(a.decW)},
		{Name: tensorDecoderBias, Shape: []int{a.inputs}, Data: vecData(a.decB)},
	}
}

func denseData(m *mat.Dense) []float64 {
	return mat.DenseCopyOf(m).RawMatrix().Data
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}

	return out
}

func (a *Autoencoder) Parameters() (Snapshot, error) {
	return EncodeParameters(a.tensors())
}

// SetParameters replaces all weights. The snapshot must carry exactly the
// tensors of a model with the same shape; on error the model is unchanged.
func (a *Autoencoder) SetParameters(s Snapshot) error {
	tensors, err := DecodeParameters(s)
	if err != nil {
		return err
	}

	want := a.tensors()
	if len(tensors) != len(want) {
		return fmt.Errorf("%w: %d tensors, model has %d", ErrShapeMismatch, len(tensors), len(want))
	}
	for i, t := range tensors {
		if !t.SameLayout(want[i]) {
			return fmt.Errorf("%w: tensor %q %v, model expects %q %v", ErrShapeMismatch, t.Name, t.Shape, want[i].Name, want[i].Shape)
		}
	}

	a.encW = mat.NewDense(a.inputs, a.hidden, tensors[0].Data)
	a.encB = mat.NewVecDense(a.hidden, tensors[1].Data)
	a.decW = mat.NewDense(a.hidden, a.inputs, tensors[2].Data)
	a.decB = mat.NewVecDense(a.inputs, tensors[3].Data)

	return nil
}

func (a *Autoencoder) SaveTo(path string) error {
	s, err := a.Parameters()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, s, 0o600); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	return nil
}

func (a *Autoencoder) LoadFrom(path string) error {
	s, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	return a.SetParameters(s)
}
