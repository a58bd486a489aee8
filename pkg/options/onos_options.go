package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*OnosOptions)(nil)

// OnosOptions locate the SDN controller REST API.
type OnosOptions struct {
	URL      string        `json:"url" mapstructure:"url"`
	Username string        `json:"username" mapstructure:"username"`
	Password string        `json:"password" mapstructure:"password"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

func NewOnosOptions() *OnosOptions {
	return &OnosOptions{
		URL:      "http://172.25.0.2:8181",
		Username: "onos",
		Password: "rocks",
		Timeout:  10 * time.Second,
	}
}

func (o *OnosOptions) Validate() []error {
	var errs []error

	if err := ValidateURL(o.URL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("--onos.timeout must be positive, got %s", o.Timeout))
	}

	return errs
}

func (o *OnosOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, "onos.url", o.URL, "Base URL of the ONOS controller.")
	fs.StringVar(&o.Username, "onos.username", o.Username, "ONOS REST username.")
	fs.StringVar(&o.Password, "onos.password", o.Password, "ONOS REST password.")
	fs.DurationVar(&o.Timeout, "onos.timeout", o.Timeout, "Timeout for a single ONOS REST call.")
}
