package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/pkg/log"
	pkgmqtt "github.com/wisesdn-io/wisesdn/pkg/mqtt"
	"github.com/wisesdn-io/wisesdn/pkg/mqtt/topic"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

var _ core.CommandPublisher = (*MQTTNotifier)(nil)

const shutdownTimeout = 2 * time.Second

var (
	statusOnline  = []byte(`{"status":"online"}`)
	statusOffline = []byte(`{"status":"offline"}`)
)

// MQTTNotifier delivers device commands over MQTT.
type MQTTNotifier struct {
	client   pkgmqtt.Client
	topics   *topic.TopicBuilder
	clientID string
	qos      int
	logger   log.Logger
}

// NewMQTTNotifier creates a dedicated egress client and starts it. The connection is
// established in the background; publishes block until it is up or ctx ends.
func NewMQTTNotifier(ctx context.Context, opts *options.MqttOptions) (*MQTTNotifier, error) {
	topics := topic.NewTopicBuilder(opts.TopicRoot)

	cfg := opts.ToClientConfig()
	cfg.ClientID = opts.ClientID + "-notifier"
	cfg.WillTopic = topics.Status(cfg.ClientID)
	cfg.WillPayload = statusOffline
	cfg.WillQoS = 1
	cfg.WillRetain = true

	client, err := pkgmqtt.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.Start(ctx); err != nil {
		return nil, err
	}

	return NewMQTTNotifierWithClient(client, cfg.ClientID, opts), nil
}

// NewMQTTNotifierWithClient wraps an already started client.
func NewMQTTNotifierWithClient(client pkgmqtt.Client, clientID string, opts *options.MqttOptions) *MQTTNotifier {
	return &MQTTNotifier{
		client:   client,
		topics:   topic.NewTopicBuilder(opts.TopicRoot),
		clientID: clientID,
		qos:      opts.QoS,
		logger:   log.WithName("mqtt-notifier"),
	}
}

// CommandTopic returns [{root}/]{deviceID}/{service}/command.
func (n *MQTTNotifier) CommandTopic(deviceID, service string) string {
	return n.topics.Command(deviceID, service)
}

// Publish waits for the broker connection and publishes payload. With QoS 1 or 2 a nil
// error means the broker acknowledged the message, not that the device acted on it.
func (n *MQTTNotifier) Publish(ctx context.Context, topic string, payload []byte) error {
	if !n.client.IsConnected() {
		if err := n.client.AwaitConnection(ctx); err != nil {
			return fmt.Errorf("mqtt broker unavailable: %w", err)
		}
	}
	if err := n.client.Publish(ctx, topic, n.qos, false, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	n.logger.Debug("Published device command", "topic", topic, "qos", n.qos)
	return nil
}

// Start announces the notifier as online, subscribes to device acknowledgements and
// blocks until ctx is cancelled. The retained status is flipped to offline on exit.
// Acknowledgements are only logged, so a failed subscription does not stop publishing.
func (n *MQTTNotifier) Start(ctx context.Context) error {
	statusTopic := n.topics.Status(n.clientID)

	if err := n.client.AwaitConnection(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if err := n.client.Publish(ctx, statusTopic, 1, true, statusOnline); err != nil {
		n.logger.Error(err, "Failed to publish online status", "topic", statusTopic)
	}
	if err := n.client.Subscribe(ctx, n.topics.AckWildcard(), 1, n.handleAck); err != nil {
		n.logger.Error(err, "Failed to subscribe to device acks, continuing without them")
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = n.client.Publish(shutdownCtx, statusTopic, 1, true, statusOffline)
	n.client.Disconnect(shutdownCtx)
	n.logger.Info("MQTT notifier stopped")
	return nil
}

func (n *MQTTNotifier) handleAck(_ context.Context, t string, payload []byte) {
	n.logger.Info("Device acknowledged command", "topic", t, "payload", string(payload))
}
