package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ExecutorOptions)(nil)

// ExecutorOptions tune plan execution and device calls.
type ExecutorOptions struct {
	// Concurrency caps the number of steps running at once in parallel mode.
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`

	// PlanTimeout bounds a whole plan run. It has to stay below http.timeout so
	// a stopped plan can still be reported. Zero means no plan-level limit.
	PlanTimeout time.Duration `json:"plan-timeout" mapstructure:"plan-timeout"`

	// DevicePort is used when neither the step nor the device names a port.
	DevicePort int `json:"device-port" mapstructure:"device-port"`

	// MaxRetries is the number of extra attempts for a device HTTP call that failed
	// with a transport error or a 5xx. Timeouts are never retried.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// RetryBackoff is the initial backoff between attempts.
	RetryBackoff time.Duration `json:"retry-backoff" mapstructure:"retry-backoff"`
}

func NewExecutorOptions() *ExecutorOptions {
	return &ExecutorOptions{
		Concurrency:  8,
		PlanTimeout:  45 * time.Second,
		DevicePort:   80,
		MaxRetries:   0,
		RetryBackoff: 200 * time.Millisecond,
	}
}

func (o *ExecutorOptions) Validate() []error {
	var errs []error

	if o.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("--executor.concurrency must be positive, got %d", o.Concurrency))
	}
	if o.PlanTimeout < 0 {
		errs = append(errs, fmt.Errorf("--executor.plan-timeout must not be negative, got %s", o.PlanTimeout))
	}
	if o.DevicePort <= 0 || o.DevicePort > 65535 {
		errs = append(errs, fmt.Errorf("--executor.device-port out of range: %d", o.DevicePort))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("--executor.max-retries must not be negative, got %d", o.MaxRetries))
	}

	return errs
}

func (o *ExecutorOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.Concurrency, "executor.concurrency", o.Concurrency, "Maximum steps running at once in parallel mode.")
	fs.DurationVar(&o.PlanTimeout, "executor.plan-timeout", o.PlanTimeout, "Upper bound for a whole plan run (0 disables).")
	fs.IntVar(&o.DevicePort, "executor.device-port", o.DevicePort, "Default device HTTP port.")
	fs.IntVar(&o.MaxRetries, "executor.max-retries", o.MaxRetries, "Extra attempts for failed device HTTP calls.")
	fs.DurationVar(&o.RetryBackoff, "executor.retry-backoff", o.RetryBackoff, "Initial backoff between device HTTP attempts.")
}
