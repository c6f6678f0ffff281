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
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/StamusNetworks/gopherdecap/pkg/decap"
	"github.com/StamusNetworks/gopherdecap/pkg/fs"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// decapDirCmd represents the decapDir command
var decapDirCmd = &cobra.Command{
	Use:   "decapDir",
	Short: "Remove tunnel encapsulation from every PCAP file in a folder.",
	Long: `Recursively discovers capture files in --dir-src and decapsulates them in
parallel. Output files are written to --dir-out, mirroring source folder layout.
ESP flow table is loaded once and shared by all workers. A file that fails is
reported and does not stop the others.

Example usage:
gopherDecap decapDir \
	--dir-src /mnt/pcap/raw \
	--dir-out /mnt/pcap/clear \
	--file-suffix pcap.gz \
	--workers 8
`,
	Run: func(cmd *cobra.Command, args []string) {
		workers := viper.GetInt("decap.workers")
		if workers < 1 {
			logrus.Fatalf("Invalid worker count: %d", workers)
		}
		output := viper.GetString("dir.out")
		if output == "" {
			logrus.Fatal(errors.New("Missing output folder"))
		}
		files, err := fs.NewPcapList(viper.GetString("dir.src"), viper.GetString("file.suffix"))
		if err != nil {
			logrus.Fatalf("PCAP list gen: %s", err)
		}
		tasks, skipped, err := fs.NewTasks(files, output)
		if err != nil {
			logrus.Fatal(err)
		}
		var failed atomic.Int64
		for _, p := range skipped {
			logrus.Warnf("Skipping %s, output path already taken by another file", p.Path)
			failed.Add(1)
		}
		logrus.Infof("Found %d files, decapsulating with %d workers", len(tasks), workers)

		table, skipESP := loadFlows()
		defer table.Close()
		session := decap.NewSession(table, skipESP)
		filters := filterFor()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		results := make(chan *decap.Result, workers)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for res := range results {
				logResult(res)
			}
		}()

	loop:
		for i, task := range tasks {
			if err := os.MkdirAll(filepath.Dir(task.Output), 0750); err != nil {
				logrus.Fatal(err)
			}
			select {
			case <-ctx.Done():
				break loop
			default:
			}

			c := &decap.Config{
				ID:           i,
				Session:      session,
				FilterFor:    filters,
				Compress:     viper.GetBool("output.gzip"),
				StatFunc:     logStats,
				StatInterval: viper.GetDuration("decap.stat-interval"),
				Ctx:          ctx,
			}
			c.File.Input = task.Path
			c.File.Output = task.Output

			g.Go(func() error {
				res, err := decap.Run(c)
				if errors.Is(err, decap.ErrEarlyExit{}) {
					return err
				} else if err != nil {
					logrus.Error(c.File.Input, " ", err)
					failed.Add(1)
					return nil
				}
				results <- res
				return nil
			})
		}
		err = g.Wait()
		close(results)
		<-done

		if err != nil {
			logrus.Warn("Interrupted, some output files are incomplete")
		}
		if n := failed.Load(); n > 0 {
			logrus.Warnf("%d files could not be processed", n)
		}
	},
}

func init() {
	rootCmd.AddCommand(decapDirCmd)

	decapDirCmd.PersistentFlags().String("dir-src", "",
		`Source folder for recursive pcap search.`)
	viper.BindPFlag("dir.src", decapDirCmd.PersistentFlags().Lookup("dir-src"))

	decapDirCmd.PersistentFlags().String("dir-out", "",
		`Output folder for decapsulated PCAP files.`)
	viper.BindPFlag("dir.out", decapDirCmd.PersistentFlags().Lookup("dir-out"))

	decapDirCmd.PersistentFlags().String("file-suffix", "pcap",
		`Suffix used for file discovery.`)
	viper.BindPFlag("file.suffix", decapDirCmd.PersistentFlags().Lookup("file-suffix"))

	decapDirCmd.PersistentFlags().Int("workers", 4,
		`Number of PCAP files to be decapsulated at once.`)
	viper.BindPFlag("decap.workers", decapDirCmd.PersistentFlags().Lookup("workers"))
}
