package main

import (
	"log"

	"github.com/absmach/fedanomaly/cli"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fedanomaly-cli",
		Short: "Federated anomaly detection CLI",
		Long:  `fedanomaly-cli trains and evaluates the detectors of one client outside of a federation and follows the events published by running workers.`,
	}

	rootCmd.AddCommand(
		cli.NewTrainCmd(),
		cli.NewEvaluateCmd(),
		cli.NewWatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
