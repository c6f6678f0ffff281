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
	"bytes"
	"encoding/binary"
	"io"
)

/*
Content is enum signifying common file formats
*/
type Content int

const (
	Octet Content = iota
	Gzip
	Xz
	Bzip
	PcapFile
	PcapNG
)

func (c Content) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Xz:
		return "xz"
	case Bzip:
		return "bzip2"
	case PcapFile:
		return "pcap"
	case PcapNG:
		return "pcapng"
	default:
		return "octet"
	}
}

var (
	magicXz     = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicBzip   = []byte("BZh")
	magicPcapNG = []byte{0x0a, 0x0d, 0x0d, 0x0a}
)

// pcap magic in either byte order, microsecond and nanosecond flavors
var magicPcap = map[uint32]bool{
	0xa1b2c3d4: true,
	0xd4c3b2a1: true,
	0xa1b23c4d: true,
	0x4d3cb2a1: true,
}

/*
detect file magic from a few leading bytes without relying on http package
*/
func detect(mag []byte) Content {
	switch {
	case len(mag) >= 2 && mag[0] == 31 && mag[1] == 139:
		return Gzip
	case bytes.HasPrefix(mag, magicXz):
		return Xz
	case bytes.HasPrefix(mag, magicBzip):
		return Bzip
	case bytes.HasPrefix(mag, magicPcapNG):
		return PcapNG
	case len(mag) >= 4 && magicPcap[binary.BigEndian.Uint32(mag[:4])]:
		return PcapFile
	default:
		return Octet
	}
}

// peek detects content of a buffered stream without consuming it
func peek(r *bufio.Reader) (Content, error) {
	mag, err := r.Peek(8)
	if err != nil && err != io.EOF {
		return Octet, err
	}
	return detect(mag), nil
}
