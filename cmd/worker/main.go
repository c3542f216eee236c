package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/fedanomaly"
	"github.com/absmach/fedanomaly/pkg/channel"
	"github.com/absmach/fedanomaly/pkg/jaeger"
	"github.com/absmach/fedanomaly/pkg/monitoring"
	"github.com/absmach/fedanomaly/pkg/mqtt"
	"github.com/absmach/fedanomaly/pkg/prometheus"
	"github.com/absmach/fedanomaly/pkg/server"
	httpserver "github.com/absmach/fedanomaly/pkg/server/http"
	"github.com/absmach/fedanomaly/pkg/storage"
	"github.com/absmach/fedanomaly/trainer/middleware"
	"github.com/absmach/fedanomaly/worker"
	"github.com/absmach/fedanomaly/worker/api"
	"github.com/absmach/fedanomaly/worker/recorder"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName          = "worker"
	defHTTPPort      = "9090"
	envPrefixHTTP    = "WORKER_HTTP_"
	envPrefixStorage = "WORKER_"
	envPrefixMQTT    = "WORKER_MQTT_"
	pathEnv          = ".env"
)

type envConfig struct {
	LogLevel        string        `env:"WORKER_LOG_LEVEL"        envDefault:"info"`
	InstanceID      string        `env:"WORKER_INSTANCE_ID"`
	ConfigPath      string        `env:"WORKER_CONFIG_PATH"      envDefault:"config.toml"`
	ClientName      string        `env:"WORKER_CLIENT"           envDefault:"CLIENT_1"`
	ConnectTimeout  time.Duration `env:"WORKER_CONNECT_TIMEOUT"  envDefault:"30s"`
	MonitorProfile  string        `env:"WORKER_MONITOR_PROFILE"  envDefault:"standard"`
	MonitorInterval time.Duration `env:"WORKER_MONITOR_INTERVAL"`
	OTELURL         url.URL       `env:"WORKER_OTEL_URL"`
	TraceRatio      float64       `env:"WORKER_TRACE_RATIO"      envDefault:"0"`
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
	logger := slog.New(logHandler).With(slog.String("client_id", cfg.ClientName))
	slog.SetDefault(logger)

	expCfg, err := fedanomaly.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logger.Error("failed to load experiment configuration", slog.String("error", err.Error()))

		return
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	svc, _, err := expCfg.NewTrainer(cfg.ClientName)
	if err != nil {
		logger.Error("failed to create trainer", slog.String("error", err.Error()))

		return
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "trainer")
	svc = middleware.Metrics(counter, latency, svc)

	storageCfg := storage.Config{}
	if err := env.ParseWithOptions(&storageCfg, env.Options{Prefix: envPrefixStorage}); err != nil {
		logger.Error("failed to load storage configuration", slog.String("error", err.Error()))

		return
	}
	repos, err := storage.NewRepositories(storageCfg)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))

		return
	}
	defer func() {
		if err := repos.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

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
		events = mqtt.NewEvents(ps, cfg.ClientName)
	}

	rec := recorder.New(cfg.ClientName, repos.Rounds, repos.Reports, events, logger)

	conn, err := channel.Dial(ctx, expCfg.ConnectAddress, cfg.ConnectTimeout)
	if err != nil {
		logger.Error("failed to connect to aggregator", slog.String("error", err.Error()))

		return
	}

	ctrl, err := worker.NewController(expCfg.WorkerConfig(cfg.ClientName), svc, conn, logger, worker.WithObserver(rec.Observe))
	if err != nil {
		logger.Error("failed to create round controller", slog.String("error", err.Error()))

		return
	}

	monitor, sampler, resLog := newMonitor(cfg, expCfg.ResourceLogDir(), logger,
		monitoring.WithPhase(func() string { return ctrl.State().String() }),
		monitoring.WithGauges(monitoring.NewGauges(svcName)),
	)
	if resLog != nil {
		defer resLog.Close()
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(ctrl, rec, logger, svcName, cfg.InstanceID), logger)

	g.Go(func() error {
		if err := ctrl.Run(ctx); err != nil {
			return err
		}
		if expCfg.LabelsPath != "" {
			if _, err := rec.Evaluate(ctx, svc, expCfg.Rounds); err != nil {
				return err
			}
		}
		cancel()

		return nil
	})

	// The controller only observes cancellation between phases, closing the
	// connection unblocks a pending exchange.
	g.Go(func() error {
		<-ctx.Done()
		if err := conn.Close(); err != nil {
			logger.Warn("failed to close aggregator connection", slog.Any("error", err))
		}

		return nil
	})

	if monitor != nil {
		g.Go(func() error {
			return monitor.Run(ctx)
		})
	}

	g.Go(func() error {
		return serveStatus(hs, logger)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}

	if sampler == nil {
		return
	}
	if s := sampler.Summary(); s != nil {
		logger.Info("Resource usage summary", slog.Any("summary", s))
	}
}
