package cli

import (
	"io"
	"log/slog"

	"github.com/absmach/fedanomaly"
	"github.com/absmach/fedanomaly/trainer"
	"github.com/absmach/fedanomaly/trainer/middleware"
	"github.com/spf13/cobra"
)

const defConfigPath = "config.toml"

// commonFlags are shared by every command that works on one client of an
// experiment.
type commonFlags struct {
	configPath string
	client     string
	logLevel   string
}

func (f *commonFlags) register(cmd *cobra.Command, defClient string) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", defConfigPath, "Experiment config file")
	cmd.Flags().StringVar(&f.client, "client", defClient, "Client section of the experiment config")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "Log level written to stderr")
}

func (f *commonFlags) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return nil, err
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// trainer loads the experiment and builds the logged trainer service of the
// selected client.
func (f *commonFlags) trainer(cmd *cobra.Command) (*fedanomaly.Config, trainer.Service, error) {
	logger, err := f.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	cfg, err := fedanomaly.LoadConfig(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	svc, _, err := cfg.NewTrainer(f.client)
	if err != nil {
		return nil, nil, err
	}

	return cfg, middleware.Logging(logger, svc), nil
}
