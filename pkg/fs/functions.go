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
package fs

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

/*
FilePathWalkDir walks a root directory recursively, extracting relevant pcap files
*/
func FilePathWalkDir(root, suffix string) <-chan Pcap {
	tx := make(chan Pcap)
	go func() {
		defer close(tx)
		filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if !info.IsDir() && strings.HasSuffix(path, suffix) {
				tx <- Pcap{
					Root: root,
					Path: path,
					fi:   info,
				}
			}
			return nil
		})
	}()
	return tx
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

/*
Open opens a file handle while accounting for compression extracted from file magic
*/
func Open(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, errors.New("Missing file path")
	}
	handle, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewReader(handle)
	m, err := peek(buffered)
	if err != nil {
		handle.Close()
		return nil, err
	}
	switch m {
	case Gzip:
		gzipHandle, err := gzip.NewReader(buffered)
		if err != nil {
			handle.Close()
			return nil, err
		}
		return multiCloser{Reader: gzipHandle, closers: []io.Closer{gzipHandle, handle}}, nil
	case Bzip:
		return multiCloser{Reader: bzip2.NewReader(buffered), closers: []io.Closer{handle}}, nil
	case Xz:
		handle.Close()
		return nil, fmt.Errorf("%s: xz compression is not supported", path)
	}
	return multiCloser{Reader: buffered, closers: []io.Closer{handle}}, nil
}

/*
Create opens an output file, wrapping it in gzip writer when compress is set. Gzip
suffix is appended to path if missing. Returned closer flushes compression and closes
the file.
*/
func Create(path string, compress bool) (io.WriteCloser, string, error) {
	if path == "" {
		return nil, "", errors.New("Missing file path")
	}
	if compress && !strings.HasSuffix(path, ".gz") {
		path += ".gz"
	}
	handle, err := os.Create(path)
	if err != nil {
		return nil, path, err
	}
	if !compress {
		return handle, path, nil
	}
	gw := gzip.NewWriter(handle)
	gw.Name = strings.TrimSuffix(filepath.Base(path), ".gz")
	return &gzipFile{Writer: gw, file: handle}, path, nil
}

type gzipFile struct {
	*gzip.Writer
	file *os.File
}

func (g *gzipFile) Close() error {
	if err := g.Writer.Close(); err != nil {
		g.file.Close()
		return err
	}
	return g.file.Close()
}
