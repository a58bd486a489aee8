package server

import (
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/agent"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

type Config struct {
	HttpOptions *options.HttpOptions
	GrpcOptions *options.GrpcOptions

	// Insights enrich task responses. Nil means no agent is configured.
	Insights agent.Capability

	// Runners are background loops sharing the servers' lifetime, such as the
	// registry watcher, the history writer and the MQTT notifier.
	Runners []Server
}
