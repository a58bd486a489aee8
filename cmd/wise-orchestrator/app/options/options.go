package options

import (
	"fmt"
	"os"
	"path/filepath"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator"
	"github.com/wisesdn-io/wisesdn/pkg/app"
	"github.com/wisesdn-io/wisesdn/pkg/log"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

type OrchestratorOptions struct {
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	GrpcOptions     *options.GrpcOptions     `json:"grpc" mapstructure:"grpc"`
	MqttOptions     *options.MqttOptions     `json:"mqtt" mapstructure:"mqtt"`
	S3Options       *options.S3Options       `json:"s3" mapstructure:"s3"`
	OnosOptions     *options.OnosOptions     `json:"onos" mapstructure:"onos"`
	RedisOptions    *options.RedisOptions    `json:"redis" mapstructure:"redis"`
	StoreOptions    *options.StoreOptions    `json:"store" mapstructure:"store"`
	ExecutorOptions *options.ExecutorOptions `json:"executor" mapstructure:"executor"`
	OTAOptions      *options.OTAOptions      `json:"ota" mapstructure:"ota"`
	AgentOptions    *options.AgentOptions    `json:"agent" mapstructure:"agent"`
	Log             *log.Options             `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*OrchestratorOptions)(nil)
	_ app.LogOptionsGetter    = (*OrchestratorOptions)(nil)
)

func NewOrchestratorOptions() *OrchestratorOptions {
	return &OrchestratorOptions{
		HttpOptions:     options.NewHttpOptions(),
		GrpcOptions:     options.NewGrpcOptions(),
		MqttOptions:     options.NewMqttOptions(),
		S3Options:       options.NewS3Options(),
		OnosOptions:     options.NewOnosOptions(),
		RedisOptions:    options.NewRedisOptions(),
		StoreOptions:    options.NewStoreOptions(),
		ExecutorOptions: options.NewExecutorOptions(),
		OTAOptions:      options.NewOTAOptions(),
		AgentOptions:    options.NewAgentOptions(),
		Log:             log.NewOptions(),
	}
}

func (o *OrchestratorOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.OnosOptions.AddFlags(fss.FlagSet("onos"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.ExecutorOptions.AddFlags(fss.FlagSet("executor"))
	o.OTAOptions.AddFlags(fss.FlagSet("ota"))
	o.AgentOptions.AddFlags(fss.FlagSet("agent"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete resolves the data directory and derives a per-host MQTT client id.
func (o *OrchestratorOptions) Complete() error {
	if o.StoreOptions.DataDir != "" {
		dir, err := filepath.Abs(o.StoreOptions.DataDir)
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		o.StoreOptions.DataDir = dir
	}

	if o.MqttOptions.ClientID == "" {
		hostname, _ := os.Hostname()
		o.MqttOptions.ClientID = fmt.Sprintf("wise-orchestrator-%s", hostname)
	}
	return nil
}

func (o *OrchestratorOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.OnosOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.ExecutorOptions.Validate()...)
	errs = append(errs, o.OTAOptions.Validate()...)
	errs = append(errs, o.AgentOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)

	if pt, ht := o.ExecutorOptions.PlanTimeout, o.HttpOptions.Timeout; pt >= ht && ht > 0 {
		errs = append(errs, fmt.Errorf("--executor.plan-timeout (%s) must be lower than --http.timeout (%s)", pt, ht))
	}
	return utilerrors.NewAggregate(errs)
}

func (o *OrchestratorOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *OrchestratorOptions) Config() (*orchestrator.Config, error) {
	return &orchestrator.Config{
		HttpOptions:     o.HttpOptions,
		GrpcOptions:     o.GrpcOptions,
		MqttOptions:     o.MqttOptions,
		S3Options:       o.S3Options,
		OnosOptions:     o.OnosOptions,
		RedisOptions:    o.RedisOptions,
		StoreOptions:    o.StoreOptions,
		ExecutorOptions: o.ExecutorOptions,
		OTAOptions:      o.OTAOptions,
		AgentOptions:    o.AgentOptions,
	}, nil
}
