package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/absmach/fedanomaly/pkg/detector"
	"gonum.org/v1/gonum/mat"
)

// Split sizes that are stored as a single "<base>_full.csv" file instead of
// one pre-windowed file per size.
var fullSplits = map[int]bool{20480: true, 800: true}

type Config struct {
	// Path is the dataset base path without the size suffix and extension,
	// e.g. "data/bearing/experiment-2".
	Path       string
	Columns    []int
	SplitSize  int
	TrainSplit float64
}

func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidConfig)
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("%w: no columns selected", ErrInvalidConfig)
	}
	for _, col := range c.Columns {
		if col < 0 {
			return fmt.Errorf("%w: negative column index %d", ErrInvalidConfig, col)
		}
	}
	if c.SplitSize <= 0 {
		return fmt.Errorf("%w: split size must be positive", ErrInvalidConfig)
	}
	if c.TrainSplit <= 0 || c.TrainSplit > 1 {
		return fmt.Errorf("%w: train split must be in (0, 1]", ErrInvalidConfig)
	}

	return nil
}

// Data is a loaded, standardized dataset with its raw and spectral views.
type Data struct {
	Identity Identity
	Raw      *View
	Spectral *View
	Scaler   *Scaler
	// TrainWindows is the number of leading windows used for fitting.
	TrainWindows int
}

// Views returns both full views, keyed by the detector that consumes them.
func (d *Data) Views() detector.Pair[*View] {
	return detector.Pair[*View]{Sequence: d.Raw, Spectral: d.Spectral}
}

// TrainViews returns the training prefix of both views.
func (d *Data) TrainViews() detector.Pair[*View] {
	return detector.Pair[*View]{
		Sequence: d.Raw.Head(d.TrainWindows),
		Spectral: d.Spectral.Head(d.TrainWindows),
	}
}

// ResolvePath returns the CSV file holding base for the given split size.
func ResolvePath(base string, split int) string {
	if fullSplits[split] {
		return base + "_full.csv"
	}

	return fmt.Sprintf("%s_%d.csv", base, split)
}

// Load reads the configured CSV file and prepares both views.
func Load(cfg Config) (*Data, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	path := ResolvePath(cfg.Path, cfg.SplitSize)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	samples, err := ReadCSV(f, cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data, err := Prepare(samples, cfg.SplitSize, cfg.TrainSplit)
	if err != nil {
		return nil, err
	}
	data.Identity = IdentityFromPath(cfg.Path, cfg.Columns)

	return data, nil
}

// ReadCSV reads the selected column indices of every record after the header
// row.
func ReadCSV(r io.Reader, columns []int) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrDataInvariant)
		}

		return nil, err
	}
	for _, col := range columns {
		if col >= len(header) {
			return nil, fmt.Errorf("%w: index %d, file has %d columns", ErrInvalidColumn, col, len(header))
		}
	}

	var values []float64
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		for _, col := range columns {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %w", ErrInvalidColumn, line, col, err)
			}
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDataInvariant)
	}

	return mat.NewDense(len(values)/len(columns), len(columns), values), nil
}

// Prepare truncates samples to whole windows, standardizes them with a scaler
// fit on the train prefix only and builds both views.
func Prepare(samples mat.Matrix, split int, trainSplit float64) (*Data, error) {
	rows, c := samples.Dims()
	n := rows - rows%split
	if n == 0 {
		return nil, fmt.Errorf("%w: %d samples with window size %d", ErrDataInvariant, rows, split)
	}

	kept := mat.DenseCopyOf(samples).Slice(0, n, 0, c).(*mat.Dense)
	train := TrainLength(n, split, trainSplit)
	scaler := FitScaler(kept.Slice(0, train, 0, c))
	scaled := mat.DenseCopyOf(kept)
	scaler.Transform(scaled)

	raw, err := New(scaled, split)
	if err != nil {
		return nil, err
	}

	return &Data{
		Raw:          raw,
		Spectral:     Spectral(raw),
		Scaler:       scaler,
		TrainWindows: train / split,
	}, nil
}

// TrainLength returns the number of leading samples used for training. The
// fractional length is rounded up to the next window boundary; an exact
// boundary still gains a full window. The result never exceeds n.
func TrainLength(n, split int, trainSplit float64) int {
	k := int(float64(n) * trainSplit)
	l := k + (split - k%split)

	return min(l, n)
}

// Identity locates a dataset in the label table.
type Identity struct {
	Dataset      string `json:"dataset"`
	Experiment   string `json:"experiment"`
	Detector     string `json:"detector"`
	UntilFailure bool   `json:"until_failure"`
}

// IdentityFromPath derives the identity from the dataset base path and the
// selected columns. Run-to-failure bearing datasets evaluate in until-failure
// mode.
func IdentityFromPath(base string, columns []int) Identity {
	id := Identity{
		Dataset:      filepath.Base(filepath.Dir(base)),
		Experiment:   filepath.Base(base),
		UntilFailure: strings.Contains(base, "bearing"),
	}
	if len(columns) > 0 {
		id.Detector = fmt.Sprintf("bearing-%d", columns[0]/len(columns))
	}

	return id
}
