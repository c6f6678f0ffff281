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
	"errors"

	"github.com/StamusNetworks/gopherdecap/pkg/decap"
	"github.com/StamusNetworks/gopherdecap/pkg/esp"
	"github.com/StamusNetworks/gopherdecap/pkg/filter"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/net/bpf"
)

/*
loadFlows reads the ESP flow table. A config that can not be opened or parsed is
reported and ESP decapsulation is disabled, other tunnels are still handled.
*/
func loadFlows() (table *esp.Table, skipESP bool) {
	path := viper.GetString("esp.config")
	if path == "" {
		logrus.Info("No ESP config, ESP packets will be copied as is")
		return nil, false
	}
	table, err := esp.LoadFile(path)
	switch {
	case errors.Is(err, esp.ErrConfigNotFound):
		logrus.Warnf("ESP config unavailable, disabling ESP decapsulation: %s", err)
		return nil, true
	case errors.Is(err, esp.ErrConfigMalformed):
		logrus.Warnf("Invalid ESP config, disabling ESP decapsulation: %s", err)
		return nil, true
	case err != nil:
		logrus.Warnf("Disabling ESP decapsulation: %s", err)
		return nil, true
	}
	logrus.Infof("Loaded %d ESP flows from %s", table.Len(), path)
	for _, f := range table.Flows() {
		logrus.Debugf("ESP flow line %d: %s", f.Line, f)
	}
	return table, false
}

/*
filterFor sets up optional BPF and YAML filters. Filters depend on input link type,
so they are built by the run once capture header is read. Nil means no filtering.
*/
func filterFor() func(layers.LinkType) (filter.Matcher, error) {
	expr := viper.GetString("filter.bpf")
	yamlPath := viper.GetString("filter.yaml")
	if expr == "" && yamlPath == "" {
		return nil
	}
	var conditions *filter.CombinedConfig
	if yamlPath != "" {
		var err error
		if conditions, err = filter.LoadYAML(yamlPath); err != nil {
			logrus.Fatal(err)
		}
	}
	return func(linkType layers.LinkType) (filter.Matcher, error) {
		matchers := make(filter.All, 0, 2)
		if expr != "" {
			m, err := compileBPF(linkType, expr)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
		}
		if conditions != nil {
			m, err := filter.NewCombined(*conditions, linkType)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
		}
		if len(matchers) == 1 {
			return matchers[0], nil
		}
		return matchers, nil
	}
}

// compileBPF runs libpcap compiler and loads program in the bpf VM. Libpcap
// matcher is used when the VM can not run the program.
func compileBPF(linkType layers.LinkType, expr string) (filter.Matcher, error) {
	insts, err := pcap.CompileBPFFilter(linkType, decap.MaxSnaplen, expr)
	if err != nil {
		return nil, err
	}
	raw := make([]bpf.RawInstruction, len(insts))
	for i, ins := range insts {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	m, err := filter.NewBPFMatcher(raw)
	if err == nil {
		return m, nil
	}
	logrus.Debugf("%s, falling back to libpcap matcher", err)
	native, err := pcap.NewBPF(linkType, decap.MaxSnaplen, expr)
	if err != nil {
		return nil, err
	}
	return filter.MatcherFunc(native.Matches), nil
}

func logResult(res *decap.Result) {
	logrus.WithFields(logrus.Fields{
		"worker":   res.ID,
		"read":     res.Read,
		"filtered": res.Filtered,
		"written":  res.Written.Packets,
		"errors":   res.Errors,
		"outcomes": res.Outcomes,
		"took":     res.Took,
		"rate":     res.Rate,
	}).Infof("Wrote %s", res.Output)
}

func logStats(res decap.Result) {
	logrus.Infof("worker %d: %d packets read, %d written, %s", res.ID, res.Read, res.Written.Packets, res.Rate)
}
