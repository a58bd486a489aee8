package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicBuilder(t *testing.T) {
	tests := []struct {
		name string
		root string
		got  func(b *TopicBuilder) string
		want string
	}{
		{"bare command", "", func(b *TopicBuilder) string { return b.Command("esp32-001", "camera") }, "esp32-001/camera/command"},
		{"rooted command", "wsn/v1", func(b *TopicBuilder) string { return b.Command("esp32-001", "camera") }, "wsn/v1/esp32-001/camera/command"},
		{"slashes trimmed", "/wsn/", func(b *TopicBuilder) string { return b.Ack("n1", "motion") }, "wsn/n1/motion/ack"},
		{"client status", "wsn", func(b *TopicBuilder) string { return b.Status("wise-orchestrator") }, "wsn/wise-orchestrator/status"},
		{"ack wildcard", "", func(b *TopicBuilder) string { return b.AckWildcard() }, "+/+/ack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got(NewTopicBuilder(tt.root)))
		})
	}
}
