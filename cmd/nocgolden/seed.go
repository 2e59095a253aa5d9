package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/nocgolden/config"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Build the fabric and export the seeded memories.",
	Long: "`seed --config fabric.json` loads the initial memory images, " +
		"encodes the configured message runs into them, and writes one " +
		"memory dump per core without running any primitive.",
	Run: func(cmd *cobra.Command, _ []string) {
		configPath, _ := cmd.Flags().GetString("config")
		outDir, _ := cmd.Flags().GetString("out")

		c, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}

		s, err := c.Build("seed")
		if err != nil {
			log.Fatalf("Error building fabric: %v", err)
		}

		exportImages(s, outDir, "_mem_config.txt")

		fmt.Printf("Seeded %d memories into %s\n", len(s.Nodes()), outDir)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("config", "config/sample_config.json",
		"Fabric configuration file")
	seedCmd.Flags().String("out", "seeded_mem",
		"Directory for the seeded memory dumps")
}
