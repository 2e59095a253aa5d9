package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/nocgolden/config"
	"github.com/sarchlab/nocgolden/mem"
	"github.com/sarchlab/nocgolden/monitoring"
	"github.com/sarchlab/nocgolden/noc"
	"github.com/sarchlab/nocgolden/recording"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a fabric configuration and export the final memories.",
	Long: "`run --config fabric.json` builds the fabric the configuration " +
		"describes, drives it round by round until every core has drained " +
		"its queue, and writes one memory dump per core into the output " +
		"directory.",
	Run: func(cmd *cobra.Command, _ []string) {
		configPath, _ := cmd.Flags().GetString("config")
		outDir, _ := cmd.Flags().GetString("out")
		seededDir, _ := cmd.Flags().GetString("seeded-dir")
		seedOnly, _ := cmd.Flags().GetBool("seed-only")
		record, _ := cmd.Flags().GetBool("record")
		recordPath, _ := cmd.Flags().GetString("record-path")
		monitorOn, _ := cmd.Flags().GetBool("monitor")
		monitorPort, _ := cmd.Flags().GetInt("monitor-port")
		openBrowser, _ := cmd.Flags().GetBool("open")
		logPrims, _ := cmd.Flags().GetBool("log-prims")
		logDeliveries, _ := cmd.Flags().GetBool("log-deliveries")
		name, _ := cmd.Flags().GetString("name")

		if !cmd.Flags().Changed("out") {
			if v := os.Getenv("NOCGOLDEN_OUT"); v != "" {
				outDir = v
			}
		}

		c, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}

		s, err := c.Build(name)
		if err != nil {
			log.Fatalf("Error building fabric: %v", err)
		}

		if seededDir != "" {
			exportImages(s, seededDir, "_mem_config.txt")
		}

		if seedOnly {
			if seededDir == "" {
				exportImages(s, outDir, "_mem_config.txt")
			}
			atexit.Exit(0)
		}

		logger := log.New(os.Stdout, "", 0)
		if logPrims {
			s.AcceptHook(noc.NewPrimLogger(logger))
		}
		if logDeliveries {
			s.AcceptHook(noc.NewDeliveryLogger(logger))
		}

		var tracer *recording.Tracer
		var rec recording.DataRecorder
		if record {
			rec = recording.New(recordPath)
			tracer = recording.NewTracer(rec)
			s.AcceptHook(tracer)
		}

		if monitorOn {
			if monitorPort == 0 {
				if v := os.Getenv("NOCGOLDEN_MONITOR_PORT"); v != "" {
					monitorPort, _ = strconv.Atoi(v)
				}
			}

			m := monitoring.NewMonitor()
			if monitorPort > 0 {
				m.WithPortNumber(monitorPort)
			}
			if openBrowser {
				m.WithBrowserOnStart()
			}
			m.RegisterSimulator(s)
			m.StartServer()
		}

		if err := s.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)

			if tracer != nil {
				if err := tracer.RecordMemory(s); err != nil {
					fmt.Fprintf(os.Stderr,
						"Error recording memories: %v\n", err)
				}
				rec.Flush()
			}

			atexit.Exit(1)
		}

		if tracer != nil {
			if err := tracer.RecordMemory(s); err != nil {
				log.Fatalf("Error recording memories: %v", err)
			}
			rec.Flush()
		}

		exportImages(s, outDir, "_mem_config.txt")

		fmt.Printf("Completed %d rounds, %d primitives\n",
			s.Round(), s.Executed())
		atexit.Exit(0)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("config", "config/sample_config.json",
		"Fabric configuration file")
	runCmd.Flags().String("out", "out_mem",
		"Directory for the final memory dumps")
	runCmd.Flags().String("seeded-dir", "",
		"Directory for pre-run memory dumps, empty to skip them")
	runCmd.Flags().Bool("seed-only", false,
		"Export seeded memories and exit without running")
	runCmd.Flags().Bool("record", false,
		"Record primitives, deliveries, and final memories into SQLite")
	runCmd.Flags().String("record-path", "",
		"Recording database path, empty for a generated name")
	runCmd.Flags().Bool("monitor", false,
		"Start the monitoring web server")
	runCmd.Flags().Int("monitor-port", 0,
		"Monitoring server port, 0 for a random port")
	runCmd.Flags().Bool("open", false,
		"Open the monitoring dashboard in the browser")
	runCmd.Flags().Bool("log-prims", false,
		"Log every executed primitive")
	runCmd.Flags().Bool("log-deliveries", false,
		"Log every delivered unit")
	runCmd.Flags().String("name", "fabric", "Fabric name")
}

func exportImages(s *noc.Simulator, dir, suffix string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Error creating %s: %v", dir, err)
	}

	for _, n := range s.Nodes() {
		name := fmt.Sprintf("%d_%d%s", n.Coord().Y, n.Coord().X, suffix)

		err := mem.SaveImageFile(filepath.Join(dir, name), n.Image())
		if err != nil {
			log.Fatalf("Error writing %s: %v", name, err)
		}
	}
}
