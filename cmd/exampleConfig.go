package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// exampleConfigCmd represents the exampleConfig command
var exampleConfigCmd = &cobra.Command{
	Use:   "exampleConfig",
	Short: "Write current flags and config values to a YAML file.",
	Long: `Dumps every configuration key, with values resolved from flags, environment and
any existing config file. Output can be placed at $HOME/.gopherdecap.yaml or passed
with --config later on.

Example usage:
gopherDecap exampleConfig --config decap.yaml --esp-config esp.conf --out-gzip
`,
	Run: func(cmd *cobra.Command, args []string) {
		path := cfgFile
		if path == "" {
			path = "gopherdecap.yaml"
		}
		logrus.Infof("Writing config to %s", path)
		if err := viper.WriteConfigAs(path); err != nil {
			logrus.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(exampleConfigCmd)
}
