/*
Copyright © 2024 Stamus Networks oss@stamus-networks.com

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/StamusNetworks/gopherdecap/pkg/esp"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

type flowView struct {
	Line   int    `yaml:"line"`
	Src    string `yaml:"src"`
	Dst    string `yaml:"dst"`
	SPI    string `yaml:"spi"`
	Cipher string `yaml:"cipher"`
	Auth   string `yaml:"auth"`
	Key    string `yaml:"key,omitempty"`
}

func newFlowView(f *esp.Flow, showKey bool) flowView {
	v := flowView{
		Line:   f.Line,
		Src:    f.Src.String(),
		Dst:    f.Dst.String(),
		SPI:    fmt.Sprintf("0x%08x", f.SPI),
		Cipher: f.Cipher.Name,
		Auth:   f.Auth.Name,
	}
	switch {
	case len(f.Key) == 0:
	case showKey:
		v.Key = "0x" + hex.EncodeToString(f.Key)
	default:
		v.Key = fmt.Sprintf("<%d bytes>", len(f.Key))
	}
	return v
}

// flowsCmd represents the flows command
var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Validate ESP flow table and dump it as YAML.",
	Long: `Parses --esp-config and reports the first invalid line, if any. Valid flows
are written to stdout in lookup order. Keys are redacted unless --show-keys is set.

Example usage:
gopherDecap flows --esp-config esp.conf
`,
	Run: func(cmd *cobra.Command, args []string) {
		path := viper.GetString("esp.config")
		if path == "" {
			logrus.Fatal("Missing ESP config, use --esp-config")
		}
		table, err := esp.LoadFile(path)
		if err != nil {
			logrus.Fatal(err)
		}
		defer table.Close()

		showKeys := viper.GetBool("flows.show-keys")
		out := make([]flowView, 0, table.Len())
		for _, f := range table.Flows() {
			out = append(out, newFlowView(f, showKeys))
		}
		data, err := yaml.Marshal(map[string][]flowView{"flows": out})
		if err != nil {
			logrus.Fatal(err)
		}
		os.Stdout.Write(data)
		logrus.Infof("%s: %d valid flows", path, table.Len())
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)

	flowsCmd.PersistentFlags().Bool("show-keys", false, `Print keys in clear.`)
	viper.BindPFlag("flows.show-keys", flowsCmd.PersistentFlags().Lookup("show-keys"))
}
