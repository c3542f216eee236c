package cli

import (
	"github.com/absmach/fedanomaly"
	"github.com/absmach/fedanomaly/pkg/detector"
	"github.com/absmach/fedanomaly/pkg/predictor"
	"github.com/absmach/fedanomaly/pkg/results"
	"github.com/spf13/cobra"
)

type trainSummary struct {
	Client   string                       `json:"client"`
	ModelDir string                       `json:"model_dir"`
	Epochs   int                          `json:"epochs"`
	History  map[string]predictor.History `json:"history"`
	Reports  []results.Report             `json:"reports,omitempty"`
}

func NewTrainCmd() *cobra.Command {
	var (
		flags    commonFlags
		modelDir string
		evaluate bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a client locally",
		Long: `Train both detectors of one client without federation and save them.

The detectors are trained for rounds x epochs_per_round epochs in a single
pass. Models are written under <models_path>/<experiment>/local/<client>
unless --model-dir is set.

Examples:
  fedanomaly-cli train -c configs/bearing.toml --client CLIENT_2 --evaluate`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cfg, svc, err := flags.trainer(cmd)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			epochs := cfg.Rounds * cfg.EpochsPerRound
			h, err := svc.TrainRound(cmd.Context(), epochs)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			dir := modelDir
			if dir == "" {
				dir = cfg.LocalModelDir(flags.client)
			}
			if err := svc.Persist(cmd.Context(), dir); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			summary := trainSummary{
				Client:   flags.client,
				ModelDir: dir,
				Epochs:   epochs,
				History:  make(map[string]predictor.History, len(detector.Kinds)),
			}
			for _, k := range detector.Kinds {
				summary.History[k.String()] = h.Get(k)
			}

			if evaluate {
				reports, err := svc.Evaluate(cmd.Context())
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				summary.Reports = results.ReportsFrom(flags.client, 0, reports)
			}

			logJSONCmd(*cmd, summary)
		},
	}

	flags.register(cmd, fedanomaly.DefaultClient)
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Directory receiving the trained models")
	cmd.Flags().BoolVar(&evaluate, "evaluate", false, "Evaluate both detectors after training")

	return cmd
}
