package fedanomaly

import (
	"github.com/absmach/fedanomaly/pkg/dataset"
	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/labels"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/trainer"
)

// NewTrainer loads the dataset of client and wires a freshly initialized
// autoencoder to each of its views. Without a labels path the returned
// service trains but cannot evaluate.
func (c *Config) NewTrainer(client string) (trainer.Service, *dataset.Data, error) {
	dcfg, err := c.DatasetConfig(client)
	if err != nil {
		return nil, nil, err
	}
	data, err := dataset.Load(dcfg)
	if err != nil {
		return nil, nil, err
	}

	var table *labels.Table
	if c.LabelsPath != "" {
		if table, err = labels.Load(c.LabelsPath); err != nil {
			return nil, nil, err
		}
	}

	pcfg := c.PredictorConfig(data.Raw.Features())
	models, err := detector.Map(detector.NewPair(func(k detector.Kind) predictor.Config {
		cfg := pcfg
		cfg.Seed += uint64(k)

		return cfg
	}), func(_ detector.Kind, cfg predictor.Config) (predictor.Predictor, error) {
		return predictor.NewAutoencoder(cfg)
	})
	if err != nil {
		return nil, nil, err
	}

	return trainer.NewService(c.TrainerConfig(), data, models, table), data, nil
}
