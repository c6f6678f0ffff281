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
	"fmt"

	"github.com/StamusNetworks/gopherdecap/pkg/esp"

	"github.com/spf13/cobra"
)

// algorithmsCmd represents the algorithms command
var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List ESP encryption and authentication algorithms usable in ESP config.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Supported ESP algorithms:")
		fmt.Println()
		fmt.Println("\tEncryption:")
		fmt.Println()
		for _, c := range esp.Ciphers() {
			if c.IsNull() {
				fmt.Printf("\t\t%-16s no encryption\n", c.Name)
				continue
			}
			fmt.Printf("\t\t%-16s %d byte key\n", c.Name, c.KeySize)
		}
		fmt.Println()
		fmt.Println("\tAuthentication:")
		fmt.Println()
		for _, a := range esp.Auths() {
			fmt.Printf("\t\t%-16s %d byte trailer\n", a.Name, a.TrailerLen)
		}
	},
}

func init() {
	rootCmd.AddCommand(algorithmsCmd)
}
