package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AgentOptions)(nil)

// AgentOptions point at the optional insight agent service.
type AgentOptions struct {
	// Endpoint of the agent service. Empty means insights are unavailable.
	Endpoint string        `json:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		Timeout: 5 * time.Second,
	}
}

func (o *AgentOptions) Validate() []error {
	var errs []error

	if o.Endpoint != "" {
		if err := ValidateURL(o.Endpoint, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("--agent.timeout must be positive, got %s", o.Timeout))
	}

	return errs
}

func (o *AgentOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Endpoint, "agent.endpoint", o.Endpoint, "Insight agent endpoint. Empty disables insights.")
	fs.DurationVar(&o.Timeout, "agent.timeout", o.Timeout, "Timeout for a single insight request.")
}
