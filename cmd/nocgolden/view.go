package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/nocgolden/mem"
	"github.com/sarchlab/nocgolden/routing"
)

var viewCmd = &cobra.Command{
	Use:   "view <dump> [addr|start-end]",
	Short: "Print cells of an exported memory dump.",
	Long: `Print cells of an exported memory dump.

Addresses take decimal or 0x hex, single or as an inclusive start-end
range. Without an address every cell the dump names is printed.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		im := mem.NewImage(0)
		if err := mem.LoadImageFile(args[0], im); err != nil {
			log.Fatalf("Error loading dump: %v", err)
		}

		var addrs []int
		if len(args) == 2 {
			var err error
			addrs, err = parseAddrRange(args[1])
			if err != nil {
				log.Fatalf("Error parsing address: %v", err)
			}
		} else {
			addrs = im.Touched()
		}

		decode, _ := cmd.Flags().GetBool("decode")

		for _, addr := range addrs {
			cell, err := im.ReadCell(addr)
			if err != nil {
				log.Fatalf("Error reading cell %#x: %v", addr, err)
			}

			fmt.Printf("@%04x %s\n", addr, hex.EncodeToString(cell[:]))

			if decode {
				even, odd := routing.UnpackRow(cell)
				fmt.Printf("  even: %s\n", routing.Decode(even))
				fmt.Printf("  odd:  %s\n", routing.Decode(odd))
			}
		}
	},
}

func parseAddrRange(s string) ([]int, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		end = start
	}

	lo, err := strconv.ParseInt(start, 0, 64)
	if err != nil {
		return nil, err
	}

	hi, err := strconv.ParseInt(end, 0, 64)
	if err != nil {
		return nil, err
	}

	if hi < lo {
		return nil, fmt.Errorf("empty range %s", s)
	}

	addrs := make([]int, 0, hi-lo+1)
	for a := lo; a <= hi; a++ {
		addrs = append(addrs, int(a))
	}

	return addrs, nil
}

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().Bool("decode", false,
		"Also decode each cell as a routing message pair")
}
