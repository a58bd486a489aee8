package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*StoreOptions)(nil)

// StoreOptions locate the JSON documents backing the registries and history.
type StoreOptions struct {
	// DataDir holds devices.json, deployment_monitoring.json and the other documents.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// Watch reloads the device registry when its documents change on disk.
	Watch bool `json:"watch" mapstructure:"watch"`

	// HistoryBuffer is the capacity of the asynchronous history queue.
	HistoryBuffer int `json:"history-buffer" mapstructure:"history-buffer"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		DataDir:       "data",
		Watch:         true,
		HistoryBuffer: 256,
	}
}

func (o *StoreOptions) Validate() []error {
	var errs []error

	if o.DataDir == "" {
		errs = append(errs, errors.New("--store.data-dir is required"))
	}
	if o.HistoryBuffer <= 0 {
		errs = append(errs, errors.New("--store.history-buffer must be positive"))
	}

	return errs
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.DataDir, "store.data-dir", o.DataDir, "Directory holding the JSON documents.")
	fs.BoolVar(&o.Watch, "store.watch", o.Watch, "Reload the device registry when its documents change.")
	fs.IntVar(&o.HistoryBuffer, "store.history-buffer", o.HistoryBuffer, "Capacity of the asynchronous execution history queue.")
}
