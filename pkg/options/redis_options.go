package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RedisOptions)(nil)

// RedisOptions select the redis execution history backend. An empty address keeps
// history in the data directory.
type RedisOptions struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
	Key      string `json:"key" mapstructure:"key"`
}

func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		Key: "wisesdn:executions",
	}
}

// Enabled reports whether the redis backend is selected.
func (o *RedisOptions) Enabled() bool {
	return o != nil && o.Addr != ""
}

func (o *RedisOptions) Validate() []error {
	var errs []error

	if !o.Enabled() {
		return errs
	}
	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	if o.Key == "" {
		errs = append(errs, errors.New("--redis.key is required when --redis.addr is set"))
	}
	if o.DB < 0 {
		errs = append(errs, errors.New("--redis.db must not be negative"))
	}

	return errs
}

func (o *RedisOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "redis.addr", o.Addr, "Redis address for execution history. Empty keeps history on disk.")
	fs.StringVar(&o.Password, "redis.password", o.Password, "Redis password.")
	fs.IntVar(&o.DB, "redis.db", o.DB, "Redis database number.")
	fs.StringVar(&o.Key, "redis.key", o.Key, "Redis list key holding execution records.")
}
