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
	"fmt"
	"os"
	"sort"
)

/*
NewPcapList recursively discovers capture files under root, sorted by path so that
runs over the same folder assign files to workers in the same order. Optional
suffix limits discovery to matching names, such as pcap.gz.
*/
func NewPcapList(root, suffix string) ([]Pcap, error) {
	if root == "" {
		return nil, fmt.Errorf("empty root folder for capture discovery")
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("capture root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("capture root %s should be a folder", root)
	}
	tx := make([]Pcap, 0)
	for p := range FilePathWalkDir(root, suffix) {
		tx = append(tx, p)
	}
	sort.Slice(tx, func(i, j int) bool { return tx[i].Path < tx[j].Path })
	return tx, nil
}
