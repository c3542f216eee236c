package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/absmach/fedanomaly/aggregator"
	"github.com/absmach/fedanomaly/pkg/api"
	"github.com/absmach/fedanomaly/pkg/fl"
	"github.com/absmach/fedanomaly/pkg/mqtt"
	"github.com/absmach/fedanomaly/pkg/server"
	httpserver "github.com/absmach/fedanomaly/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "aggregator"
	defHTTPPort   = "7070"
	envPrefix     = "AGGREGATOR_"
	envPrefixHTTP = "AGGREGATOR_HTTP_"
	envPrefixMQTT = "AGGREGATOR_MQTT_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel   string `env:"AGGREGATOR_LOG_LEVEL"   envDefault:"info"`
	InstanceID string `env:"AGGREGATOR_INSTANCE_ID"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	aggCfg := aggregator.Config{}
	if err := env.ParseWithOptions(&aggCfg, env.Options{Prefix: envPrefix}); err != nil {
		logger.Error("failed to load aggregator configuration", slog.String("error", err.Error()))

		return
	}

	archive, err := fl.NewArchive(aggCfg.RoundsDir, aggCfg.ModelsDir)
	if err != nil {
		logger.Error("failed to initialize round archive", slog.String("error", err.Error()))

		return
	}

	mqttCfg := mqtt.Config{}
	if err := env.ParseWithOptions(&mqttCfg, env.Options{Prefix: envPrefixMQTT}); err != nil {
		logger.Error("failed to load MQTT configuration", slog.String("error", err.Error()))

		return
	}
	var events mqtt.Events
	if mqttCfg.URL != "" {
		ps, err := mqtt.NewPubSub(mqttCfg, fmt.Sprintf("%s-%s", svcName, cfg.InstanceID), logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := ps.Disconnect(context.Background()); err != nil {
				logger.Error("failed to disconnect from MQTT broker", slog.Any("error", err))
			}
		}()
		events = mqtt.NewEvents(ps, svcName)
	}

	srv, err := aggregator.New(aggCfg, fl.NewFedAvgAggregator(), archive, events, logger)
	if err != nil {
		logger.Error("failed to create aggregator", slog.String("error", err.Error()))

		return
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, makeHandler(srv, cfg.InstanceID), logger)

	g.Go(func() error {
		err := srv.ListenAndServe(ctx)
		if errors.Is(err, aggregator.ErrStopped) {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("Federation finished", slog.Int("rounds", srv.Round()))
		cancel()

		return nil
	})

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

func makeHandler(srv *aggregator.Server, instanceID string) http.Handler {
	mux := chi.NewRouter()
	mux.Get("/round", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", api.ContentType)
		fmt.Fprintf(w, `{"round":%d}`, srv.Round())
	})
	mux.Get("/health", api.Health(svcName, instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
