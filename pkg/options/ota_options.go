package options

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*OTAOptions)(nil)

// OTAOptions configure firmware signature checks and download links.
type OTAOptions struct {
	// PublicKeyFile is a PEM RSA public key. When empty any non-empty signature is accepted.
	PublicKeyFile string `json:"public-key-file" mapstructure:"public-key-file"`

	// URLExpiry is the lifetime of presigned firmware download links.
	URLExpiry time.Duration `json:"url-expiry" mapstructure:"url-expiry"`

	// DevicePort receives pushed updates at /ota-update.
	DevicePort int `json:"device-port" mapstructure:"device-port"`
}

func NewOTAOptions() *OTAOptions {
	return &OTAOptions{
		URLExpiry:  time.Hour,
		DevicePort: 80,
	}
}

func (o *OTAOptions) Validate() []error {
	var errs []error

	if o.PublicKeyFile != "" {
		if _, err := os.Stat(o.PublicKeyFile); err != nil {
			errs = append(errs, fmt.Errorf("--ota.public-key-file: %w", err))
		}
	}
	if o.URLExpiry <= 0 {
		errs = append(errs, fmt.Errorf("--ota.url-expiry must be positive, got %s", o.URLExpiry))
	}
	if o.DevicePort <= 0 || o.DevicePort > 65535 {
		errs = append(errs, fmt.Errorf("--ota.device-port out of range: %d", o.DevicePort))
	}

	return errs
}

func (o *OTAOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.PublicKeyFile, "ota.public-key-file", o.PublicKeyFile, "PEM RSA public key used to verify firmware signatures.")
	fs.DurationVar(&o.URLExpiry, "ota.url-expiry", o.URLExpiry, "Lifetime of presigned firmware download URLs.")
	fs.IntVar(&o.DevicePort, "ota.device-port", o.DevicePort, "Device port receiving pushed updates.")
}
