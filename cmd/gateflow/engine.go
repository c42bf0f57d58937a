package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/superego-agent/gateflow"
	"github.com/superego-agent/gateflow/internal/config"
	"github.com/superego-agent/gateflow/internal/llm/openai"
	"github.com/superego-agent/gateflow/internal/logging"
	"github.com/superego-agent/gateflow/pkg/adapters/redis"
	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/observability"
)

// loadConfig reads the config file named by the persistent --config flag.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// newEngine wires the full stack described by the config: model clients,
// checkpoint store, distributed locking, and metrics.
func newEngine(cfg config.Config, logger *slog.Logger) (*gateflow.Engine, func(), error) {
	policy := openai.NewClient(openai.Config{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.PolicyModel,
	}, domain.RolePolicy)
	response := openai.NewClient(openai.Config{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.ResponseModel,
	}, domain.RoleResponse)

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.MergeHooks(metrics.Hooks(), observability.LoggingHooks(logger))

	opts := []gateflow.Option{
		gateflow.WithLogger(logger),
		gateflow.WithLifecycleHooks(hooks),
	}
	if cfg.Workflow.StrictGate {
		opts = append(opts, gateflow.WithStrictGate())
	}
	if cfg.Workflow.MaxSteps > 0 {
		opts = append(opts, gateflow.WithMaxSteps(cfg.Workflow.MaxSteps))
	}

	cleanup := func() {}
	if cfg.Redis.Addr != "" {
		storeOpts := []redis.Option{}
		if cfg.Redis.Prefix != "" {
			storeOpts = append(storeOpts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL.Std() > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(cfg.Redis.TTL.Std()))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, storeOpts...)
		opts = append(opts,
			gateflow.WithCheckpointStore(store),
			gateflow.WithLocker(redis.NewLocker(store.Client(), "gateflow:lock:")),
		)
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close redis store", "error", err)
			}
		}
	}

	eng, err := gateflow.New(policy, response, opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialize engine: %w", err)
	}
	return eng, cleanup, nil
}

// workflowConfig builds the per-run screening config from file settings.
func workflowConfig(cfg config.Config) (domain.Config, error) {
	constitution, err := cfg.Constitution()
	if err != nil {
		return domain.Config{}, err
	}
	return domain.Config{
		Constitution:  constitution,
		AdherenceText: cfg.Workflow.Adherence,
		Variant:       domain.Variant(cfg.Workflow.Variant),
	}, nil
}
