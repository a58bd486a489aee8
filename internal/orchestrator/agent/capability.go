package agent

import (
	"context"
	"fmt"
	"net/http"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

// Insight is the additive output of an insight agent for one task request.
type Insight struct {
	// Agents names the agents that contributed, for the X-Server-Agent header.
	Agents []string
	Data   any
}

// Capability produces optional insights for task requests. Implementations are
// chosen once at startup.
type Capability interface {
	Insight(ctx context.Context, task string, payload any) (*Insight, error)
	Available() bool
}

// New returns an HTTP backed capability when an endpoint is configured and the
// unavailable variant otherwise.
func New(opts *options.AgentOptions, transport core.DeviceTransport) Capability {
	if opts == nil || opts.Endpoint == "" {
		return Unavailable{}
	}
	return &Remote{endpoint: opts.Endpoint, opts: opts, transport: transport}
}

// Unavailable never produces insights.
type Unavailable struct{}

func (Unavailable) Insight(context.Context, string, any) (*Insight, error) { return nil, nil }

func (Unavailable) Available() bool { return false }

// Remote posts {task, payload} to an agent service.
type Remote struct {
	endpoint  string
	opts      *options.AgentOptions
	transport core.DeviceTransport
}

func (r *Remote) Available() bool { return true }

func (r *Remote) Insight(ctx context.Context, task string, payload any) (*Insight, error) {
	resp, err := r.transport.Do(ctx, &core.DeviceRequest{
		Method:  http.MethodPost,
		URL:     r.endpoint,
		Body:    map[string]any{"task": task, "payload": payload},
		Timeout: r.opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("agent service returned %d", resp.StatusCode)
	}
	if resp.Body == nil {
		return nil, nil
	}
	return &Insight{Agents: agentNames(resp.Body), Data: resp.Body}, nil
}

// agentNames collects "agent" fields at the top level and one level down.
func agentNames(body any) []string {
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}

	names := sets.New[string]()
	if name, ok := m["agent"].(string); ok && name != "" {
		names.Insert(name)
	}
	for _, v := range m {
		if nested, ok := v.(map[string]any); ok {
			if name, ok := nested["agent"].(string); ok && name != "" {
				names.Insert(name)
			}
		}
	}
	return sets.List(names)
}
