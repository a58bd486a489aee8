package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/wisesdn-io/wisesdn/cmd/wise-orchestrator/app/options"
	"github.com/wisesdn-io/wisesdn/pkg/app"
)

const (
	commandName = "wise-orchestrator"
	commandDesc = `The WiseSDN orchestrator turns user intents into device plans,
validates them against energy, coverage and security constraints, executes
them over HTTP and MQTT, manages OTA firmware updates and installs WSN flows
through the SDN controller.`
)

func NewApp() *app.App {
	opts := options.NewOrchestratorOptions()
	application := app.NewApp(
		commandName,
		"Launch the WiseSDN orchestrator",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithEnvPrefix("WISESDN"),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.OrchestratorOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		orch, err := cfg.NewOrchestrator(ctx)
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %w", err)
		}

		return orch.Run(ctx)
	}
}
