package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/nocgolden/recording"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect a recorded trace database.",
	Long: "`inspect --db trace` lists the recorded tables. Add --table " +
		"to print rows from one of them.",
	Run: func(cmd *cobra.Command, _ []string) {
		dbPath, _ := cmd.Flags().GetString("db")
		table, _ := cmd.Flags().GetString("table")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		reader := recording.NewReader(dbPath)
		defer reader.Close()

		reader.MapTable(recording.PrimTable, recording.PrimRow{})
		reader.MapTable(recording.DeliveryTable, recording.DeliveryRow{})
		reader.MapTable(recording.CellTable, recording.CellRow{})

		ctx := context.Background()

		if table == "" {
			for _, t := range []string{
				recording.PrimTable,
				recording.DeliveryTable,
				recording.CellTable,
			} {
				_, total, err := reader.Query(ctx, t,
					recording.QueryParams{Limit: 1})
				if err != nil {
					log.Fatalf("Error reading %s: %v", t, err)
				}

				fmt.Printf("%-12s %d rows\n", t, total)
			}

			return
		}

		rows, total, err := reader.Query(ctx, table, recording.QueryParams{
			OrderBy: orderFor(table),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			log.Fatalf("Error reading %s: %v", table, err)
		}

		for _, row := range rows {
			printRow(row)
		}

		fmt.Printf("%d of %d rows\n", len(rows), total)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("db", "", "Trace database path")
	inspectCmd.Flags().String("table", "",
		"Table to print, empty to list tables")
	inspectCmd.Flags().Int("limit", 20, "Maximum rows to print")
	inspectCmd.Flags().Int("offset", 0, "Rows to skip")

	_ = inspectCmd.MarkFlagRequired("db")
}

func orderFor(table string) string {
	if table == recording.CellTable {
		return "Y, X, Addr"
	}

	return "Seq"
}

func printRow(row any) {
	switch r := row.(type) {
	case *recording.PrimRow:
		fmt.Printf("%6d  round %-4d (%d,%d)  %s\n",
			r.Seq, r.Round, r.Y, r.X, r.Prim)
	case *recording.DeliveryRow:
		state := "committed"
		if r.Buffered {
			state = "buffered"
		}

		fmt.Printf("%6d  round %-4d (%d,%d) -> (%d,%d)  tag %#04x  %s a=%d  %s  %s\n",
			r.Seq, r.Round, r.SrcY, r.SrcX, r.DstY, r.DstX,
			r.Tag, r.Mode, r.Addr, r.Data, state)
	case *recording.CellRow:
		fmt.Printf("(%d,%d)  @%04x  %s\n", r.Y, r.X, r.Addr, r.Data)
	default:
		fmt.Printf("%+v\n", row)
	}
}
