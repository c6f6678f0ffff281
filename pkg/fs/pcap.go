/*
Copyright © 2020 Stamus Networks oss@stamus-networks.com

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
package fs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

/*
Pcap is a capture file discovered on filesystem
*/
type Pcap struct {
	Path string `json:"path"`
	Root string `json:"root"`

	fi os.FileInfo
}

// Size of file on disk, 0 when unknown
func (p Pcap) Size() int64 {
	if p.fi == nil {
		return 0
	}
	return p.fi.Size()
}

/*
OutputPath mirrors location of pcap relative to its discovery root under dir.
Compression suffixes are dropped, output writer decides on its own.
*/
func (p Pcap) OutputPath(dir string) (string, error) {
	rel, err := filepath.Rel(p.Root, p.Path)
	if err != nil {
		return "", err
	}
	for _, suffix := range []string{".gz", ".bz2"} {
		rel = strings.TrimSuffix(rel, suffix)
	}
	return filepath.Join(dir, rel), nil
}

// Task pairs a discovered capture with the file its output goes to
type Task struct {
	Pcap
	Output string
}

/*
NewTasks maps files to output paths under dir. Files whose output would collide with
an earlier one, such as a.pcap next to a.pcap.gz, are returned as skipped.
*/
func NewTasks(files []Pcap, dir string) (tasks []Task, skipped []Pcap, err error) {
	tasks = make([]Task, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		out, err := f.OutputPath(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		if seen[out] {
			skipped = append(skipped, f)
			continue
		}
		seen[out] = true
		tasks = append(tasks, Task{Pcap: f, Output: out})
	}
	return tasks, skipped, nil
}

// PacketSource is implemented by pcap and pcapng readers
type PacketSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

/*
NewPacketSource sets up a pcap or pcapng reader depending on stream magic. Stream
should already be decompressed, see Open.
*/
func NewPacketSource(r io.Reader) (PacketSource, error) {
	buffered := bufio.NewReader(r)
	m, err := peek(buffered)
	if err != nil {
		return nil, err
	}
	switch m {
	case PcapFile:
		h, err := pcapgo.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("pcap open: %s", err)
		}
		return h, nil
	case PcapNG:
		h, err := pcapgo.NewNgReader(buffered, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("pcapng open: %s", err)
		}
		return h, nil
	default:
		return nil, fmt.Errorf("unsupported capture format %s", m)
	}
}
