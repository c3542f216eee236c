package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/fedanomaly/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const mqttTimeout = 30 * time.Second

func NewWatchCmd() *cobra.Command {
	var (
		flags commonFlags
		mcfg  mqtt.Config
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow worker events",
		Long: `Subscribe to the round and evaluation events workers publish over MQTT and
print them until interrupted. Without --client the events of every client
are printed.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			logger, err := flags.logger(cmd.ErrOrStderr())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ps, err := mqtt.NewPubSub(mcfg, "fedanomaly-cli-"+uuid.NewString(), logger)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer ps.Disconnect(context.Background())

			if err := watch(ctx, ps, flags.client, func(topic string, msg map[string]any) {
				logJSONCmd(*cmd, map[string]any{"topic": topic, "event": msg})
			}); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	flags.register(cmd, "")
	cmd.Flags().StringVar(&mcfg.URL, "broker", "tcp://localhost:1883", "MQTT broker URL")
	cmd.Flags().StringVar(&mcfg.Username, "username", "", "MQTT username")
	cmd.Flags().StringVar(&mcfg.Password, "password", "", "MQTT password")
	cmd.Flags().Uint8Var(&mcfg.QoS, "qos", 1, "MQTT quality of service")
	cmd.Flags().DurationVar(&mcfg.Timeout, "timeout", mqttTimeout, "MQTT operation timeout")

	return cmd
}

// watch subscribes to the rounds and reports topics of client, or of every
// client when it is empty, and blocks until ctx is done.
func watch(ctx context.Context, ps mqtt.PubSub, client string, emit func(string, map[string]any)) error {
	topics := []string{mqtt.AllRounds, mqtt.AllReports}
	if client != "" {
		topics = []string{mqtt.RoundsTopic(client), mqtt.ReportsTopic(client)}
	}

	for _, topic := range topics {
		if err := ps.Subscribe(ctx, topic, func(topic string, msg map[string]any) error {
			emit(topic, msg)

			return nil
		}); err != nil {
			return err
		}
	}
	<-ctx.Done()

	for _, topic := range topics {
		if err := ps.Unsubscribe(context.Background(), topic); err != nil {
			return err
		}
	}

	return nil
}
