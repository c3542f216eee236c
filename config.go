package fedanomaly

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/absmach/fedanomaly/pkg/dataset"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/pkg/threshold"
	"github.com/absmach/fedanomaly/trainer"
	"github.com/absmach/fedanomaly/worker"
	"github.com/pelletier/go-toml"
)

// DefaultClient is used when a worker is started without a client name.
const DefaultClient = "CLIENT_1"

var (
	ErrInvalidConfig = errors.New("invalid experiment config")
	ErrUnknownClient = errors.New("unknown client")
)

// Config is one federated experiment: the training settings shared by every
// client plus a section per client naming its dataset.
type Config struct {
	ExperimentName string `toml:"experiment_name"`
	ConnectAddress string `toml:"connect_address"`
	LogsPath       string `toml:"logs_path"`
	ModelsPath     string `toml:"models_path"`
	LabelsPath     string `toml:"labels_path"`

	Rounds         int `toml:"rounds"`
	EpochsPerRound int `toml:"epochs_per_round"`

	SplitSize  int     `toml:"split_size"`
	BatchSize  int     `toml:"batch_size"`
	ValSplit   float64 `toml:"val_split"`
	TrainSplit float64 `toml:"train_split"`
	Hidden     int     `toml:"hidden"`
	Seed       int64   `toml:"seed"`
	Parallel   bool    `toml:"parallel"`
	LabelScale float64 `toml:"label_scale"`

	Threshold ThresholdConfig    `toml:"threshold"`
	Schedule  predictor.Schedule `toml:"schedule"`

	Clients map[string]ClientConfig `toml:"clients"`
}

type ThresholdConfig struct {
	Deviations float64   `toml:"deviations"`
	Period     []float64 `toml:"period"`
	UseOptimal bool      `toml:"use_optimal"`
}

type ClientConfig struct {
	DatasetPath    string `toml:"dataset_path"`
	DatasetColumns []int  `toml:"dataset_columns"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.ExperimentName == "":
		return fmt.Errorf("%w: empty experiment name", ErrInvalidConfig)
	case c.Rounds <= 0:
		return fmt.Errorf("%w: rounds must be positive", ErrInvalidConfig)
	case c.EpochsPerRound <= 0:
		return fmt.Errorf("%w: epochs per round must be positive", ErrInvalidConfig)
	case c.SplitSize <= 0:
		return fmt.Errorf("%w: split size must be positive", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	case c.ValSplit < 0 || c.ValSplit >= 1:
		return fmt.Errorf("%w: validation split must be in [0, 1)", ErrInvalidConfig)
	case c.TrainSplit <= 0 || c.TrainSplit > 1:
		return fmt.Errorf("%w: train split must be in (0, 1]", ErrInvalidConfig)
	case c.Hidden <= 0:
		return fmt.Errorf("%w: hidden width must be positive", ErrInvalidConfig)
	case len(c.Threshold.Period) != 2:
		return fmt.Errorf("%w: threshold period needs a start and an end fraction", ErrInvalidConfig)
	case len(c.Clients) == 0:
		return fmt.Errorf("%w: no clients", ErrInvalidConfig)
	}
	if err := c.ThresholdConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for name, client := range c.Clients {
		if client.DatasetPath == "" {
			return fmt.Errorf("%w: client %s has no dataset path", ErrInvalidConfig, name)
		}
		if len(client.DatasetColumns) == 0 {
			return fmt.Errorf("%w: client %s selects no columns", ErrInvalidConfig, name)
		}
	}

	return nil
}

// Client returns the section for name, falling back to DefaultClient when
// name is empty.
func (c *Config) Client(name string) (ClientConfig, error) {
	if name == "" {
		name = DefaultClient
	}
	client, ok := c.Clients[name]
	if !ok {
		return ClientConfig{}, fmt.Errorf("%w: %s", ErrUnknownClient, name)
	}

	return client, nil
}

func (c *Config) DatasetConfig(name string) (dataset.Config, error) {
	client, err := c.Client(name)
	if err != nil {
		return dataset.Config{}, err
	}

	return dataset.Config{
		Path:       client.DatasetPath,
		Columns:    client.DatasetColumns,
		SplitSize:  c.SplitSize,
		TrainSplit: c.TrainSplit,
	}, nil
}

func (c *Config) ThresholdConfig() threshold.Config {
	cfg := threshold.Config{
		Deviations: c.Threshold.Deviations,
		UseOptimal: c.Threshold.UseOptimal,
	}
	copy(cfg.Period[:], c.Threshold.Period)

	return cfg
}

func (c *Config) TrainerConfig() trainer.Config {
	return trainer.Config{
		BatchSize:       c.BatchSize,
		ValidationSplit: c.ValSplit,
		Schedule:        c.Schedule,
		Parallel:        c.Parallel,
		Threshold:       c.ThresholdConfig(),
		LabelScale:      c.LabelScale,
	}
}

// PredictorConfig sizes an autoencoder for windows of features columns.
func (c *Config) PredictorConfig(features int) predictor.Config {
	return predictor.Config{
		Inputs: c.SplitSize * features,
		Hidden: c.Hidden,
		Seed:   uint64(c.Seed),
	}
}

// ModelDir is where the federated models of a client are saved.
func (c *Config) ModelDir(name string) string {
	return c.modelDir("federated", name)
}

// LocalModelDir is where models trained without federation are saved.
func (c *Config) LocalModelDir(name string) string {
	return c.modelDir("local", name)
}

func (c *Config) modelDir(kind, name string) string {
	if name == "" {
		name = DefaultClient
	}
	root := c.ModelsPath
	if root == "" {
		root = "model"
	}

	return filepath.Join(root, c.ExperimentName, kind, name)
}

// ResourceLogDir is the directory receiving resource usage logs.
func (c *Config) ResourceLogDir() string {
	if c.LogsPath == "" {
		return "logs"
	}

	return c.LogsPath
}

func (c *Config) WorkerConfig(name string) worker.Config {
	if name == "" {
		name = DefaultClient
	}

	return worker.Config{
		ClientID:       name,
		Rounds:         c.Rounds,
		EpochsPerRound: c.EpochsPerRound,
		ModelDir:       c.ModelDir(name),
	}
}
