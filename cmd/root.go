/*
Copyright © 2020 Stamus Networks oss@stamus-networks.com

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gopherDecap",
	Short: "Remove IPIP, IPv6-in-IP, GRE and ESP encapsulation from PCAP files.",
	Long: `Usage examples:

Decapsulate a single capture, decrypting ESP flows listed in esp.conf:
gopherDecap decap \
	--in /mnt/pcap/tunnel.pcap \
	--out /mnt/pcap/clear.pcap \
	--esp-config esp.conf

Only keep GRE traffic from a gzipped capture, verbose per packet logging:
gopherDecap decap \
	--in tunnel.pcap.gz --out gre.pcap \
	--filter "ip proto 47" --verbose

Decapsulate a whole folder with 8 workers, mirroring its layout:
gopherDecap decapDir \
	--dir-src /mnt/pcap/raw \
	--dir-out /mnt/pcap/clear \
	--file-suffix pcap.gz \
	--workers 8 --out-gzip

Each subcommand has separate --help. Please refer to that for more specific usage.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gopherdecap.yaml)")

	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		`Log every packet that could not be decapsulated, and why.`)
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.PersistentFlags().String("log-file", "",
		`Also write logs to this file. File is rotated once it grows beyond 100MB.`)
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.PersistentFlags().String("esp-config", "",
		`ESP flow table. One flow per line: `+
			`<src ip> <dst ip> <cipher> <auth> <0xkey> <0xspi>. `+
			`ESP decapsulation is disabled when empty or unreadable.`)
	viper.BindPFlag("esp.config", rootCmd.PersistentFlags().Lookup("esp-config"))

	rootCmd.PersistentFlags().String("filter", "",
		`BPF expression. Only matching packets are decapsulated and written.`)
	viper.BindPFlag("filter.bpf", rootCmd.PersistentFlags().Lookup("filter"))

	rootCmd.PersistentFlags().String("filter-yaml", "",
		`YAML list of subnet and port conditions. All conditions must hold for packet to be written.`)
	viper.BindPFlag("filter.yaml", rootCmd.PersistentFlags().Lookup("filter-yaml"))

	rootCmd.PersistentFlags().Bool("out-gzip", false,
		`Compress output files with gzip. .gz suffix is added when missing.`)
	viper.BindPFlag("output.gzip", rootCmd.PersistentFlags().Lookup("out-gzip"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".gopherdecap" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".gopherdecap")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	err := viper.ReadInConfig()

	initLogging()
	if err == nil {
		logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func initLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	if path := viper.GetString("log.file"); path != "" {
		logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}
}
