// Package colmd wires a full collaborative training run: data shards,
// per-client models and optimizers, the trust policy, telemetry sinks and
// the orchestrator itself.
package colmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	colm "github.com/fan1dy/personalized-llms-colm"
	"github.com/fan1dy/personalized-llms-colm/model"
	"github.com/fan1dy/personalized-llms-colm/pkg/backend"
	"github.com/fan1dy/personalized-llms-colm/pkg/checkpoint"
	"github.com/fan1dy/personalized-llms-colm/pkg/mqtt"
	"github.com/fan1dy/personalized-llms-colm/pkg/optim"
	"github.com/fan1dy/personalized-llms-colm/pkg/results"
	"github.com/fan1dy/personalized-llms-colm/pkg/results/sqlite"
	"github.com/fan1dy/personalized-llms-colm/pkg/shard"
	"github.com/fan1dy/personalized-llms-colm/pkg/telemetry"
	"github.com/fan1dy/personalized-llms-colm/pkg/trust"
	"github.com/fan1dy/personalized-llms-colm/trainer"
	"github.com/fan1dy/personalized-llms-colm/trainer/middleware"
)

const svcName = "trainer"

// Config is the run shape read from the environment; hyperparameter presets
// come from the TOML file at ConfigPath.
type Config struct {
	LogLevel   string
	InstanceID string

	DataDir    string
	Dataset    string
	ResultsDir string
	ConfigPath string

	Backend        string
	NumClients     int
	Iterations     int
	AccSteps       int
	BatchSize      int
	SequenceLength int
	EvalFreq       int
	EvalBatches    int
	TrustFreq      int
	Pretraining    int
	GradClip       float64
	Seed           int64

	MetricsAddr string

	MQTTAddress  string
	MQTTQoS      uint8
	MQTTTimeout  time.Duration
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string

	HistoryDBPath  string
	CheckpointPath string
}

// StartTrainer runs one experiment to completion. An experiment whose
// summary already exists is skipped cleanly.
func StartTrainer(ctx context.Context, cancel context.CancelFunc, cfg Config) error {
	g, ctx := errgroup.WithContext(ctx)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	presets := colm.DefaultConfig()
	if cfg.ConfigPath != "" {
		loaded, err := colm.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load presets: %w", err)
		}
		presets = *loaded
	}

	execBackend, err := backend.New(cfg.Backend)
	if err != nil {
		return err
	}
	defer execBackend.Finalize()

	runCfg := trainer.Config{
		Dataset:        cfg.Dataset,
		Model:          presets.Model.Type,
		NumClients:     cfg.NumClients,
		Iterations:     cfg.Iterations,
		AccSteps:       cfg.AccSteps,
		BatchSize:      cfg.BatchSize,
		SequenceLength: cfg.SequenceLength,
		EvalFreq:       cfg.EvalFreq,
		EvalBatches:    cfg.EvalBatches,
		TrustFreq:      cfg.TrustFreq,
		Pretraining:    cfg.Pretraining,
		TrustPolicy:    presets.Trust.Name,
		GradClip:       cfg.GradClip,
		LR:             presets.Optimizer.LR,
		LoRARank:       presets.Model.Rank,
		LoRAAlpha:      presets.Model.Alpha,
		LoRADropout:    presets.Model.Dropout,
		Seed:           cfg.Seed,
	}
	if err := runCfg.Validate(); err != nil {
		return err
	}

	store := results.NewFileStore(cfg.ResultsDir, cfg.Dataset, runCfg.Model, runCfg.ExpName())
	if store.Completed() {
		logger.Info("Already found experiment, skipping",
			slog.String("path", store.Dir()),
		)

		return nil
	}

	policy, err := trust.NewPolicy(presets.Trust)
	if err != nil {
		return err
	}

	clients, err := buildClients(cfg, presets, execBackend, logger)
	if err != nil {
		return err
	}

	sink, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(context.Background()); err != nil {
			logger.Warn("failed to close telemetry sinks", slog.Any("error", err))
		}
	}()

	ckpt := checkpoint.NewNoop()
	if cfg.CheckpointPath != "" {
		if ckpt, err = checkpoint.NewBadger(cfg.CheckpointPath); err != nil {
			return err
		}
	}
	defer func() {
		if err := ckpt.Close(); err != nil {
			logger.Warn("failed to close checkpoint store", slog.Any("error", err))
		}
	}()

	svc, err := trainer.NewService(clients, policy, execBackend, sink, ckpt, runCfg, logger)
	if err != nil {
		return err
	}
	svc = middleware.Logging(logger, svc)
	counter := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "colm",
		Subsystem: svcName,
		Name:      "request_count",
		Help:      "Number of training runs started.",
	}, []string{"method"})
	latency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: "colm",
		Subsystem: svcName,
		Name:      "request_latency_seconds",
		Help:      "Total duration of training runs in seconds.",
	}, []string{"method"})
	svc = middleware.Metrics(counter, latency, svc)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		hs := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

		g.Go(func() error {
			logger.Info("Metrics endpoint listening", slog.String("address", cfg.MetricsAddr))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()

			return hs.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()

		summary, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		if !execBackend.IsMaster() {
			return nil
		}
		if err := store.Write(summary); err != nil {
			return err
		}
		logger.Info("Run summary written", slog.String("path", store.SummaryPath()))

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s exited with error: %w", svcName, err)
	}

	return nil
}

func buildClients(cfg Config, presets colm.Config, execBackend backend.Backend, logger *slog.Logger) ([]*trainer.Client, error) {
	modelCfg := presets.Model
	modelCfg.Seed = cfg.Seed

	clients := make([]*trainer.Client, cfg.NumClients)
	for i := 0; i < cfg.NumClients; i++ {
		data, err := shard.LoadSet(cfg.DataDir, i)
		if err != nil {
			return nil, err
		}

		// Every client starts from the same seed so the frozen backbone is
		// identical across clients by construction.
		m, err := model.New(modelCfg)
		if err != nil {
			return nil, err
		}
		m = execBackend.TransformModel(m)

		opt, err := optim.New(presets.Optimizer, execBackend.RawModel(m), execBackend)
		if err != nil {
			return nil, err
		}
		sched, err := optim.NewScheduler(presets.Scheduler.Name, opt, presets.Optimizer.LR, cfg.Iterations, presets.Scheduler.WarmupPercent)
		if err != nil {
			return nil, err
		}

		if i == 0 {
			var count int
			for _, p := range m.TrainableParams() {
				count += len(p)
			}
			logger.Info("Optimized parameters", slog.Int("count", count))
		}

		clients[i] = trainer.NewClient(i, m, opt, sched, data, cfg.Seed+int64(i))
	}

	return clients, nil
}

func buildSinks(cfg Config, logger *slog.Logger) (telemetry.Sink, error) {
	sinks := []telemetry.Sink{
		telemetry.NewSlogSink(logger),
		telemetry.NewPrometheusSink("colm", "run"),
	}

	if cfg.MQTTAddress != "" {
		publisher, err := mqtt.NewPublisher(cfg.MQTTAddress, cfg.MQTTQoS, cfg.InstanceID, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mqtt publisher: %w", err)
		}
		topic := cfg.MQTTTopic
		if topic == "" {
			topic = "colm/runs/" + cfg.InstanceID
		}
		sinks = append(sinks, telemetry.NewMQTTSink(publisher, topic))
	}

	if cfg.HistoryDBPath != "" {
		history, err := sqlite.NewHistory(cfg.HistoryDBPath, cfg.InstanceID)
		if err != nil {
			return nil, fmt.Errorf("failed to open evaluation history: %w", err)
		}
		sinks = append(sinks, history)
	}

	return telemetry.NewMultiSink(sinks...), nil
}
