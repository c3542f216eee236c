package fl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/absmach/fedanomaly/pkg/errors"
	"github.com/absmach/fedanomaly/pkg/predictor"
)

const (
	roundExt = ".json"
	modelExt = ".cbor"
)

// Archive keeps the record of every aggregation round and the merged
// parameters it produced. Rounds are stored as <rounds>/<round>.json and
// models as <models>/<detector>/<round>.cbor, both written atomically.
type Archive struct {
	roundsDir string
	modelsDir string
	mu        sync.RWMutex
}

func NewArchive(roundsDir, modelsDir string) (*Archive, error) {
	for _, dir := range []string{roundsDir, modelsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
		}
	}

	return &Archive{
		roundsDir: roundsDir,
		modelsDir: modelsDir,
	}, nil
}

func (a *Archive) SaveRound(state *RoundState) error {
	if state.Round <= 0 {
		return fmt.Errorf("%w: round %d", ErrInvalidRound, state.Round)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode round %d: %w", state.Round, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return writeAtomic(a.roundsDir, fileName(state.Round, roundExt), data)
}

func (a *Archive) LoadRound(round int) (*RoundState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := readFile(filepath.Join(a.roundsDir, fileName(round, roundExt)))
	if err != nil {
		return nil, err
	}

	var state RoundState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode round %d: %w", round, err)
	}

	return &state, nil
}

// Rounds lists the archived round numbers in ascending order.
func (a *Archive) Rounds() ([]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return list(a.roundsDir, roundExt)
}

func (a *Archive) SaveModel(round int, model Model) error {
	if round <= 0 {
		return fmt.Errorf("%w: round %d", ErrInvalidRound, round)
	}
	dir, err := a.detectorDir(model.Detector)
	if err != nil {
		return err
	}

	data, err := predictor.EncodeParameters(model.Tensors)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	return writeAtomic(dir, fileName(round, modelExt), data)
}

func (a *Archive) LoadModel(detector string, round int) (*Model, error) {
	dir, err := a.detectorDir(detector)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := readFile(filepath.Join(dir, fileName(round, modelExt)))
	if err != nil {
		return nil, err
	}

	tensors, err := predictor.DecodeParameters(data)
	if err != nil {
		return nil, err
	}

	return &Model{Detector: detector, Tensors: tensors}, nil
}

// ModelRounds lists the rounds for which a merged model of detector was
// archived, in ascending order.
func (a *Archive) ModelRounds(detector string) ([]int, error) {
	dir, err := a.detectorDir(detector)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	rounds, err := list(dir, modelExt)
	if os.IsNotExist(err) {
		return nil, nil
	}

	return rounds, err
}

// detectorDir rejects names that would escape the models directory.
func (a *Archive) detectorDir(detector string) (string, error) {
	if detector == "" || detector == "." || detector == ".." || strings.ContainsAny(detector, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDetector, detector)
	}

	return filepath.Join(a.modelsDir, detector), nil
}

func fileName(round int, ext string) string {
	return fmt.Sprintf("%04d%s", round, ext)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, filepath.Base(path))
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}

func list(dir, ext string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var rounds []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ext)
		if e.IsDir() || !ok {
			continue
		}
		if n, err := strconv.Atoi(name); err == nil {
			rounds = append(rounds, n)
		}
	}
	slices.Sort(rounds)

	return rounds, nil
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}
