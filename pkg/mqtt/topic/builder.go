package topic

import (
	"strings"
)

// Constants defining the standard topic segments shared with device firmware.
// Changing these values breaks every deployed device.
const (
	// SuffixCommand is the downstream command segment (orchestrator -> device).
	// Structure: [{root}/]{deviceID}/{service}/command
	SuffixCommand = "command"

	// SuffixAck is the upstream acknowledgement segment (device -> orchestrator).
	// Structure: [{root}/]{deviceID}/{service}/ack
	SuffixAck = "ack"

	// SuffixStatus carries the retained online/offline state of a client.
	// Structure: [{root}/]{clientID}/status
	SuffixStatus = "status"

	// wildcard matches exactly one topic level.
	wildcard = "+"
)

// TopicBuilder encapsulates the logic for constructing MQTT topic strings.
type TopicBuilder struct {
	// root is an optional namespace for all topics (e.g. "wsn/v1").
	root string
}

// NewTopicBuilder creates a TopicBuilder. An empty root yields bare device topics.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: strings.Trim(root, "/")}
}

// Command returns the topic used to send a command to one service of a device.
func (b *TopicBuilder) Command(deviceID, service string) string {
	return b.build(deviceID, service, SuffixCommand)
}

// Ack returns the topic a device uses to acknowledge a command.
func (b *TopicBuilder) Ack(deviceID, service string) string {
	return b.build(deviceID, service, SuffixAck)
}

// AckWildcard subscribes to acknowledgements from every device and service.
func (b *TopicBuilder) AckWildcard() string {
	return b.build(wildcard, wildcard, SuffixAck)
}

// Status returns the presence topic of an MQTT client.
func (b *TopicBuilder) Status(clientID string) string {
	return b.build(clientID, SuffixStatus)
}

// build joins the segments. Pattern: [{root}/]{device}/{service}/{suffix}
func (b *TopicBuilder) build(parts ...string) string {
	if b.root != "" {
		parts = append([]string{b.root}, parts...)
	}
	return strings.Join(parts, "/")
}
