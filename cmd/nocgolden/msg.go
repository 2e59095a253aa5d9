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

var msgCmd = &cobra.Command{
	Use:   "msg",
	Short: "Encode and decode routing messages.",
}

var msgEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode message fields into a 128-bit wire word.",
	Run: func(cmd *cobra.Command, _ []string) {
		sparse, _ := cmd.Flags().GetUint8("sparse")
		y, _ := cmd.Flags().GetInt8("y")
		x, _ := cmd.Flags().GetInt8("x")
		a0, _ := cmd.Flags().GetUint16("a0")
		cnt, _ := cmd.Flags().GetUint16("cnt")
		aOffset, _ := cmd.Flags().GetInt16("a-offset")
		constRaw, _ := cmd.Flags().GetUint8("const")
		handshake, _ := cmd.Flags().GetBool("handshake")
		tagID, _ := cmd.Flags().GetUint8("tag")
		en, _ := cmd.Flags().GetBool("en")

		m := routing.Message{
			Sparse:    sparse,
			Y:         y,
			X:         x,
			A0:        a0,
			Cnt:       cnt,
			AOffset:   aOffset,
			Const:     constRaw,
			Handshake: handshake,
			TagID:     tagID,
			En:        en,
		}

		w, err := routing.Encode(m)
		if err != nil {
			log.Fatalf("Error encoding message: %v", err)
		}

		fmt.Printf("lo=%#016x hi=%#016x\n", w.Lo, w.Hi)
		fmt.Println(m)
	},
}

var msgDecodeCmd = &cobra.Command{
	Use:   "decode [hex]",
	Short: "Decode a 128-bit wire word into message fields.",
	Long: `Decode a 128-bit wire word into message fields.

The word can be given as 32 hex digits, or as a whole 64-digit cell row
whose two messages are both decoded. Without an argument the --lo and
--hi flags supply the word.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			decodeHexArg(args[0])
			return
		}

		loStr, _ := cmd.Flags().GetString("lo")
		hiStr, _ := cmd.Flags().GetString("hi")

		lo, err := strconv.ParseUint(loStr, 0, 64)
		if err != nil {
			log.Fatalf("Error parsing lo: %v", err)
		}

		hi, err := strconv.ParseUint(hiStr, 0, 64)
		if err != nil {
			log.Fatalf("Error parsing hi: %v", err)
		}

		printMessage(routing.Word{Lo: lo, Hi: hi})
	},
}

func decodeHexArg(s string) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")

	switch len(s) {
	case 32:
		hi, err := strconv.ParseUint(s[:16], 16, 64)
		if err != nil {
			log.Fatalf("Error parsing word: %v", err)
		}
		lo, err := strconv.ParseUint(s[16:], 16, 64)
		if err != nil {
			log.Fatalf("Error parsing word: %v", err)
		}

		printMessage(routing.Word{Lo: lo, Hi: hi})

	case 64:
		raw, err := hex.DecodeString(s)
		if err != nil {
			log.Fatalf("Error parsing row: %v", err)
		}

		even, odd := routing.UnpackRow([mem.CellBytes]byte(raw))

		fmt.Println("even:")
		printMessage(even)
		fmt.Println("odd:")
		printMessage(odd)

	default:
		log.Fatalf("Error: want 32 or 64 hex digits, got %d", len(s))
	}
}

func printMessage(w routing.Word) {
	m := routing.Decode(w)

	fmt.Println(m)
	fmt.Printf("units: %v\n", m.Walk().Addrs())
}

func init() {
	rootCmd.AddCommand(msgCmd)
	msgCmd.AddCommand(msgEncodeCmd)
	msgCmd.AddCommand(msgDecodeCmd)

	msgEncodeCmd.Flags().Uint8("sparse", 0, "Sparse nibble, stored as is")
	msgEncodeCmd.Flags().Int8("y", 0, "Destination row or row delta")
	msgEncodeCmd.Flags().Int8("x", 0, "Destination column or column delta")
	msgEncodeCmd.Flags().Uint16("a0", 0, "First destination unit address")
	msgEncodeCmd.Flags().Uint16("cnt", 0, "Unit count, 0 counts as 1")
	msgEncodeCmd.Flags().Int16("a-offset", 0, "Stride between unit groups")
	msgEncodeCmd.Flags().Uint8("const", 0, "Group size minus one")
	msgEncodeCmd.Flags().Bool("handshake", false, "Buffer until the tag resolves")
	msgEncodeCmd.Flags().Uint8("tag", 0, "Tag the receive must match")
	msgEncodeCmd.Flags().Bool("en", false, "Enable delivery of this message")

	msgDecodeCmd.Flags().String("lo", "0", "Low 64 bits, 0x prefix allowed")
	msgDecodeCmd.Flags().String("hi", "0", "High 64 bits, 0x prefix allowed")
}
