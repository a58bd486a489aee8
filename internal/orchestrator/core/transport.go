package core

import (
	"context"
	"net/url"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

// DeviceRequest is one HTTP call to a device.
type DeviceRequest struct {
	Method  string
	URL     string
	Query   url.Values
	Body    any
	Timeout time.Duration
}

// DeviceResponse is the answer of a device. Body holds decoded JSON when the
// device returned JSON and the raw text otherwise.
type DeviceResponse struct {
	StatusCode int
	Body       any
	Text       string
	Attempts   int
}

// DeviceTransport performs HTTP calls against devices. A call that exceeds its
// timeout returns an error wrapping ErrDeviceTimeout. Non-2xx answers are not
// errors.
type DeviceTransport interface {
	Do(ctx context.Context, req *DeviceRequest) (*DeviceResponse, error)
}

// CommandPublisher delivers device commands over MQTT.
type CommandPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error

	// CommandTopic returns the topic for a device service command.
	CommandTopic(deviceID, service string) string
}

// FirmwareStorage hands out download links for firmware objects.
type FirmwareStorage interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	CheckBucket(ctx context.Context) error
}

// SignatureVerifier decides whether a firmware binary may be installed.
type SignatureVerifier interface {
	Verify(binaryRef, signature string) bool
}

// FlowController is the SDN controller that owns WSN forwarding rules.
// InstallFlow never returns an error; failures are reported in the result.
type FlowController interface {
	InstallFlow(ctx context.Context, flow model.Flow) model.InstallResult
	Topology(ctx context.Context) (map[string]any, error)
	Nodes(ctx context.Context) ([]model.Node, error)
	Flows(ctx context.Context, nodeID int) ([]model.Flow, error)
	NodeStats(ctx context.Context, nodeID int) (*model.NodeStats, error)
}
