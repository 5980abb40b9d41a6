package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gilchrisn/graph-sketching-service/pkg/pipeline"
	"github.com/gilchrisn/graph-sketching-service/pkg/wlsketch"
)

// flagToKey maps CLI flags onto configuration keys.
var flagToKey = map[string]string{
	"base":        "input.base",
	"stream":      "input.stream",
	"output":      "output.sketch",
	"sketch-size": "sketch.size",
	"k-hops":      "sketch.k_hops",
	"decay":       "sketch.decay",
	"window":      "sketch.window",
	"lambda":      "sketch.lambda",
	"chunkify":    "sketch.chunkify",
	"chunk-size":  "sketch.chunk_size",
	"memory":      "sketch.memory",
	"pregen":      "sketch.pregen",
	"workers":     "performance.num_workers",
	"batch-size":  "performance.batch_size",
	"log-level":   "logging.level",
}

func newRootCmd() *cobra.Command {
	cfg := wlsketch.NewConfig()
	var configFile string

	cmd := &cobra.Command{
		Use:   "graph-sketching-service",
		Short: "Streaming Weisfeiler-Lehman graph sketching",
		Long: `Consumes a base graph and a stream of edge additions, relabels affected
vertices up to K hops, and maintains a fixed-size weighted min-hash sketch
of the decaying label histogram. Sketch lines are appended to the output
file at the configured window.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := cfg.LoadFromFile(configFile); err != nil {
					return fmt.Errorf("loading config file: %w", err)
				}
			}
			// Explicit flags win over the config file.
			cmd.Flags().Visit(func(f *pflag.Flag) {
				if key, ok := flagToKey[f.Name]; ok {
					cfg.Set(key, f.Value.String())
				}
			})
			return pipeline.Run(cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "configuration file (yaml/json/toml)")
	cmd.Flags().String("base", "", "base graph edge list")
	cmd.Flags().String("stream", "", "streamed edge list (optional)")
	cmd.Flags().String("output", "sketch.txt", "sketch output file")
	cmd.Flags().Int("sketch-size", 2000, "number of sketch slots")
	cmd.Flags().Int("k-hops", 3, "WL neighborhood depth")
	cmd.Flags().Int("decay", 10, "passes between decays")
	cmd.Flags().Int("window", 1, "passes between sketch emissions")
	cmd.Flags().Float64("lambda", 0.02, "decay rate, 0 disables decay")
	cmd.Flags().Bool("chunkify", false, "hash relabel strings in chunks")
	cmd.Flags().Int("chunk-size", 5, "tokens per chunk")
	cmd.Flags().Bool("memory", false, "pregenerate hash parameter table")
	cmd.Flags().Int("pregen", 10000, "pregenerated parameter rows")
	cmd.Flags().Int("workers", 1, "update workers; 1 for reproducible runs")
	cmd.Flags().Int("batch-size", 1000, "streamed edges per ingested batch")
	cmd.Flags().String("log-level", "info", "zerolog level")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
