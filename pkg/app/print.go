package app

import (
	"fmt"
	"io"
	"sort"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const printConfigFlagName = "print-config"

func addPrintConfigFlag(fs *pflag.FlagSet) {
	fs.Bool(printConfigFlagName, false, "Print the effective configuration and exit.")
}

func printConfigRequested(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool(printConfigFlagName)
	return v
}

var secretKeys = map[string]bool{
	"mqtt.password":        true,
	"onos.password":        true,
	"redis.password":       true,
	"s3.secret-access-key": true,
}

// printConfig writes every resolved setting as a two column table. Secrets are masked.
func printConfig(w io.Writer, v *viper.Viper) {
	keys := v.AllKeys()
	sort.Strings(keys)

	table := uitable.New()
	table.Separator = " "
	table.MaxColWidth = 80
	for _, k := range keys {
		if k == configFlagName || k == printConfigFlagName || k == "help" {
			continue
		}
		val := fmt.Sprint(v.Get(k))
		if secretKeys[k] && val != "" {
			val = "******"
		}
		table.AddRow(k+":", val)
	}
	fmt.Fprintln(w, table)
}
