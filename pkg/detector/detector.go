// Package detector names the two anomaly detectors every client trains and
// provides a record type that holds one value per detector.
package detector

import "fmt"

// Kind identifies one of the two detectors. The set is closed.
type Kind uint8

const (
	// Sequence is the detector trained on the raw windowed signal.
	Sequence Kind = iota
	// Spectral is the detector trained on the frequency-domain view.
	Spectral
)

// Kinds lists every detector in wire order: sequence first, spectral second.
var Kinds = [...]Kind{Sequence, Spectral}

func (k Kind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case Spectral:
		return "spectral"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "sequence":
		return Sequence, nil
	case "spectral":
		return Spectral, nil
	default:
		return 0, fmt.Errorf("unknown detector kind %q", s)
	}
}

// Pair carries one value per detector.
type Pair[T any] struct {
	Sequence T
	Spectral T
}

// NewPair builds a Pair by calling fn once per detector, in wire order.
func NewPair[T any](fn func(Kind) T) Pair[T] {
	return Pair[T]{
		Sequence: fn(Sequence),
		Spectral: fn(Spectral),
	}
}

// Get returns the value for k.
func (p Pair[T]) Get(k Kind) T {
	if k == Spectral {
		return p.Spectral
	}

	return p.Sequence
}

// Set replaces the value for k.
func (p *Pair[T]) Set(k Kind, v T) {
	if k == Spectral {
		p.Spectral = v

		return
	}
	p.Sequence = v
}

// Map applies fn to both values, in wire order, stopping at the first error.
func Map[T, U any](p Pair[T], fn func(Kind, T) (U, error)) (Pair[U], error) {
	var out Pair[U]
	for _, k := range Kinds {
		v, err := fn(k, p.Get(k))
		if err != nil {
			return Pair[U]{}, fmt.Errorf("%s: %w", k, err)
		}
		out.Set(k, v)
	}

	return out, nil
}
