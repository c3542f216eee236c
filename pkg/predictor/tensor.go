package predictor

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// Tensor is one named parameter array in row-major order.
type Tensor struct {
	Name  string    `cbor:"1,keyasint"`
	Shape []int     `cbor:"2,keyasint"`
	Data  []float64 `cbor:"3,keyasint"`
}

// Size is the number of elements implied by the shape.
func (t Tensor) Size() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}

	return n
}

// SameLayout reports whether both tensors have the same name and shape.
func (t Tensor) SameLayout(o Tensor) bool {
	return t.Name == o.Name && slices.Equal(t.Shape, o.Shape)
}

type envelope struct {
	Tensors []Tensor `cbor:"1,keyasint"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return em
}()

// EncodeParameters serializes tensors into a Snapshot.
func EncodeParameters(tensors []Tensor) (Snapshot, error) {
	for _, t := range tensors {
		if t.Size() != len(t.Data) {
			return nil, fmt.Errorf("%w: tensor %q has %d values for shape %v", ErrShapeMismatch, t.Name, len(t.Data), t.Shape)
		}
	}

	data, err := encMode.Marshal(envelope{Tensors: tensors})
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}

	return data, nil
}

// DecodeParameters is the inverse of EncodeParameters.
func DecodeParameters(s Snapshot) ([]Tensor, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrInvalidSnapshot)
	}

	var env envelope
	if err := cbor.Unmarshal(s, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	for _, t := range env.Tensors {
		if t.Size() != len(t.Data) {
			return nil, fmt.Errorf("%w: tensor %q has %d values for shape %v", ErrInvalidSnapshot, t.Name, len(t.Data), t.Shape)
		}
	}

	return env.Tensors, nil
}
