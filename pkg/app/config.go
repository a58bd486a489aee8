package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const configFlagName = "config"

func addConfigFlag(fs *pflag.FlagSet) {
	fs.StringP(configFlagName, "c", "", "Read configuration from the specified file; supports JSON, TOML, YAML, HCL, or Java properties formats.")
}

// loadConfig layers flags over environment over the config file and decodes the
// result into the options.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper

	if a.envPrefix != "" {
		v.SetEnvPrefix(a.envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if !a.noConfig {
		cfgFile, _ := cmd.Flags().GetString(configFlagName)
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			v.SetConfigName(a.name)
			v.AddConfigPath(".")
			if home, err := os.UserHomeDir(); err == nil {
				v.AddConfigPath(filepath.Join(home, "."+a.name))
			}
			v.AddConfigPath(filepath.Join("/etc", a.name))
		}

		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; a named one is not.
			if cfgFile != "" {
				return fmt.Errorf("failed to read configuration file %q: %w", cfgFile, err)
			}
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if a.options == nil {
		return nil
	}
	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}
