package mqtt

import (
	"context"
)

// MessageHandler is invoked for every message delivered on a subscribed filter.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is the broker connection used by the orchestrator to reach devices.
type Client interface {
	// Start returns immediately; the connection is managed in the background.
	Start(ctx context.Context) error
	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe keeps the filter across reconnects until Unsubscribe is called.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error
	Unsubscribe(ctx context.Context, topic string) error

	AwaitConnection(ctx context.Context) error
	IsConnected() bool
}
