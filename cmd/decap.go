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
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/StamusNetworks/gopherdecap/pkg/decap"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// decapCmd represents the decap command
var decapCmd = &cobra.Command{
	Use:   "decap",
	Short: "Remove tunnel encapsulation from a single PCAP file.",
	Long: `Reads a pcap or pcapng file, optionally gzip or bzip2 compressed, and writes
a pcap file where IPIP, IPv6 in IPv4, GRE and ESP outer headers are removed. ESP
payloads are decrypted when a flow in --esp-config matches outer addresses and SPI.
Packets that are not tunneled, or that can not be decapsulated, are copied as is.

Example usage:
gopherDecap decap \
	--in /mnt/pcap/tunnel.pcap \
	--out /mnt/pcap/clear.pcap \
	--esp-config esp.conf
`,
	Run: func(cmd *cobra.Command, args []string) {
		table, skipESP := loadFlows()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := &decap.Config{
			Session:      decap.NewSession(table, skipESP),
			FilterFor:    filterFor(),
			Compress:     viper.GetBool("output.gzip"),
			StatFunc:     logStats,
			StatInterval: viper.GetDuration("decap.stat-interval"),
			Ctx:          ctx,
		}
		c.File.Input = viper.GetString("decap.input")
		c.File.Output = viper.GetString("decap.output")

		res, err := decap.Run(c)
		table.Close()
		if errors.Is(err, decap.ErrEarlyExit{}) {
			logrus.Warn("Interrupted, output is incomplete")
			logResult(res)
			return
		} else if err != nil {
			logrus.Fatal(err)
		}
		logResult(res)
	},
}

func init() {
	rootCmd.AddCommand(decapCmd)

	decapCmd.PersistentFlags().StringP("in", "i", "", `Input pcap or pcapng file.`)
	viper.BindPFlag("decap.input", decapCmd.PersistentFlags().Lookup("in"))

	decapCmd.PersistentFlags().StringP("out", "o", "", `Output pcap file.`)
	viper.BindPFlag("decap.output", decapCmd.PersistentFlags().Lookup("out"))

	decapCmd.PersistentFlags().Duration("stat-interval", 0,
		`Periodic progress report interval. Defaults to 5s.`)
	viper.BindPFlag("decap.stat-interval", decapCmd.PersistentFlags().Lookup("stat-interval"))
}
