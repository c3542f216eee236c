// Package labels loads the ground-truth anomaly table. The table maps
// dataset, experiment and detector id to the labeled anomaly ranges:
//
//	bearing:
//	  experiment-2:
//	    bearing-1: [[533, 984]]
package labels

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/absmach/fedanomaly/pkg/evaluation"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownLabelKey = errors.New("unknown label key")
	ErrInvalidRange    = errors.New("invalid label range")
)

// Key addresses one entry of the table.
type Key struct {
	Dataset    string
	Experiment string
	Detector   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Dataset, k.Experiment, k.Detector)
}

// Range is an inclusive anomaly range in label units.
type Range struct {
	Start float64
	End   float64
}

// Windows converts the range to inclusive window indices; scale is the
// number of windows per label unit.
func (r Range) Windows(scale float64) evaluation.Interval {
	return evaluation.Interval{
		Start: int(math.Floor(r.Start * scale)),
		End:   int(math.Floor(r.End * scale)),
	}
}

// Table is the read-only label set. It is built once and passed explicitly
// to whatever evaluates against it.
type Table struct {
	entries map[Key][]Range
}

type document map[string]map[string]map[string][][]float64

func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

func Decode(r io.Reader) (*Table, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode label file: %w", err)
	}

	t := &Table{entries: make(map[Key][]Range)}
	for dataset, experiments := range doc {
		for experiment, detectors := range experiments {
			for det, pairs := range detectors {
				key := Key{Dataset: dataset, Experiment: experiment, Detector: det}
				ranges := make([]Range, 0, len(pairs))
				for _, p := range pairs {
					if len(p) != 2 || p[1] < p[0] {
						return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRange, key, p)
					}
					ranges = append(ranges, Range{Start: p[0], End: p[1]})
				}
				t.entries[key] = ranges
			}
		}
	}

	return t, nil
}

func (t *Table) Lookup(k Key) ([]Range, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabelKey, k)
	}
	r, ok := t.entries[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabelKey, k)
	}

	return r, nil
}

// Intervals looks k up and converts its ranges to window indices.
func (t *Table) Intervals(k Key, scale float64) ([]evaluation.Interval, error) {
	ranges, err := t.Lookup(k)
	if err != nil {
		return nil, err
	}

	out := make([]evaluation.Interval, len(ranges))
	for i, r := range ranges {
		out[i] = r.Windows(scale)
	}

	return out, nil
}

// Len is the number of detector entries.
func (t *Table) Len() int {
	return len(t.entries)
}
