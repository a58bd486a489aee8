package orchestrator

import (
	"context"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/server"
	"github.com/wisesdn-io/wisesdn/pkg/log"
)

// Orchestrator is the running application.
type Orchestrator struct {
	serverManager *server.Manager
	closers       []func() error
}

// Run starts the application components and blocks until ctx is done or one
// of them fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info("Starting WiseSDN orchestrator...")

	err := o.serverManager.Start(ctx)

	for _, c := range o.closers {
		if cerr := c(); cerr != nil {
			log.Error(cerr, "Failed to release resource")
		}
	}
	return err
}
