package orchestrator

import (
	"context"
	"fmt"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/agent"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/service"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/device"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/notifier"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/onos"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/security"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/server"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/storage"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/store"
	"github.com/wisesdn-io/wisesdn/pkg/log"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

type Config struct {
	HttpOptions     *options.HttpOptions
	GrpcOptions     *options.GrpcOptions
	MqttOptions     *options.MqttOptions
	S3Options       *options.S3Options
	OnosOptions     *options.OnosOptions
	RedisOptions    *options.RedisOptions
	StoreOptions    *options.StoreOptions
	ExecutorOptions *options.ExecutorOptions
	OTAOptions      *options.OTAOptions
	AgentOptions    *options.AgentOptions
}

// NewOrchestrator builds the adapters, the core service and the servers.
// Optional adapters (MQTT, object storage, redis) are only created when configured.
func (cfg *Config) NewOrchestrator(ctx context.Context) (*Orchestrator, error) {
	o := &Orchestrator{}

	// 1. Persistence: JSON documents, device registry and execution history
	docs := store.NewDocuments(cfg.StoreOptions.DataDir)
	registry := store.NewRegistry(docs)
	if err := registry.Refresh(ctx); err != nil {
		// Readiness stays false until a reload succeeds.
		log.Error(err, "Initial device registry load failed", "dir", docs.Dir())
	}
	repo := store.New(docs, registry)

	var history core.HistoryStore
	if cfg.RedisOptions.Enabled() {
		redisHistory, err := store.NewRedisHistory(ctx, cfg.RedisOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis history: %w", err)
		}
		o.closers = append(o.closers, redisHistory.Close)
		history = redisHistory
	} else {
		history = store.NewFileHistory(docs)
	}
	writer := store.NewHistoryWriter(history, cfg.StoreOptions.HistoryBuffer)

	// 2. Secondary adapters
	transport := device.NewClient(cfg.ExecutorOptions)

	verifier, err := security.NewVerifier(cfg.OTAOptions.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to init firmware verifier: %w", err)
	}

	ports := service.Ports{
		Transport:  transport,
		Verifier:   verifier,
		Controller: onos.NewClient(cfg.OnosOptions),
		History:    history,
		Recorder:   writer,
	}

	runners := []server.Server{writer}
	if cfg.StoreOptions.Watch {
		runners = append(runners, registry)
	}

	if cfg.MqttOptions.Enabled() {
		mqttNotifier, err := notifier.NewMQTTNotifier(ctx, cfg.MqttOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init notifier: %w", err)
		}
		ports.Publisher = mqttNotifier
		runners = append(runners, mqttNotifier)
	} else {
		log.Warn("No MQTT broker configured, MQTT steps will fail")
	}

	if cfg.S3Options.Enabled() {
		firmware, err := storage.NewMinIOProvider(cfg.S3Options)
		if err != nil {
			return nil, err
		}
		ports.Storage = firmware
	}

	// 3. Core domain service
	svc := service.New(repo, ports, service.Config{
		Concurrency:   cfg.ExecutorOptions.Concurrency,
		PlanTimeout:   cfg.ExecutorOptions.PlanTimeout,
		DevicePort:    cfg.ExecutorOptions.DevicePort,
		OTADevicePort: cfg.OTAOptions.DevicePort,
		URLExpiry:     cfg.OTAOptions.URLExpiry,
		Broker:        cfg.MqttOptions.Broker,
	})

	// 4. Ingress servers and background loops
	o.serverManager = server.NewManager(&server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
		Insights:    agent.New(cfg.AgentOptions, transport),
		Runners:     runners,
	}, svc)

	return o, nil
}
