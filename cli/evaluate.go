package cli

import (
	"github.com/absmach/fedanomaly"
	"github.com/absmach/fedanomaly/pkg/results"
	"github.com/spf13/cobra"
)

func NewEvaluateCmd() *cobra.Command {
	var (
		flags    commonFlags
		modelDir string
		local    bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate saved models",
		Long: `Restore the saved detectors of one client, score its full dataset and
compare the decisions with the labels.

By default the federated models are restored. Use --local for models saved by
the train command or --model-dir for any other directory.`,
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

			dir := modelDir
			switch {
			case dir != "":
			case local:
				dir = cfg.LocalModelDir(flags.client)
			default:
				dir = cfg.ModelDir(flags.client)
			}
			if err := svc.Restore(cmd.Context(), dir); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			reports, err := svc.Evaluate(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			logJSONCmd(*cmd, results.Evaluation{
				ClientID: flags.client,
				Round:    cfg.Rounds,
				Reports:  results.ReportsFrom(flags.client, cfg.Rounds, reports),
			})
		},
	}

	flags.register(cmd, fedanomaly.DefaultClient)
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Directory holding the saved models")
	cmd.Flags().BoolVar(&local, "local", false, "Restore the locally trained models")

	return cmd
}
