// Package pipeline wires the parser, the dynamic graph engine and the
// sketching core into one run: load the base snapshot, relabel it for K+1
// iterations, then alternate between draining the engine and ingesting
// streamed edge batches until the stream is exhausted.
package pipeline

import (
	"bufio"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-sketching-service/pkg/engine"
	"github.com/gilchrisn/graph-sketching-service/pkg/parser"
	"github.com/gilchrisn/graph-sketching-service/pkg/wlsketch"
)

// Run executes one full sketching run from config.
func Run(cfg *wlsketch.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cfg.CreateLogger().With().Str("run_id", uuid.NewString()).Logger()

	sinkFile, err := os.Create(cfg.SketchFile())
	if err != nil {
		return fmt.Errorf("creating sketch file: %w", err)
	}
	defer sinkFile.Close()
	sink := bufio.NewWriter(sinkFile)

	gen, err := wlsketch.NewParamGenerator(cfg.SketchSize(), cfg.Memory(), cfg.Pregen())
	if err != nil {
		return fmt.Errorf("building parameter generator: %w", err)
	}
	hist := wlsketch.NewHistogram(cfg.SketchSize(), cfg.DecayEvery(), cfg.Window(), cfg.Lambda(), gen, sink, logger)
	coord := wlsketch.NewCoordinator()
	relabeler := wlsketch.NewRelabeler(cfg.KHops(), cfg.Chunkify(), cfg.ChunkSize(), hist, coord, logger)

	graph := engine.NewGraph()
	baseEdges, err := parser.ParseBaseGraph(cfg.BaseFile())
	if err != nil {
		return err
	}
	for _, rec := range baseEdges {
		graph.AddBaseEdge(rec.Src, rec.Dst,
			wlsketch.NewEdgeLabel(cfg.KHops(), rec.SrcType, rec.DstType, rec.EdgeType, rec.Timestamp))
	}
	logger.Info().
		Int("vertices", graph.NumVertices()).
		Int("edges", graph.NumEdges()).
		Int("k_hops", cfg.KHops()).
		Int("sketch_size", cfg.SketchSize()).
		Msg("base graph loaded")

	eng := engine.NewEngine(graph, relabeler, coord, cfg.NumWorkers(), cfg.MaxIterations(), logger)

	if cfg.StreamFile() == "" {
		// No stream: the engine stops at its first quiescent pass.
		coord.Stop.Store(true)
	} else {
		reader, err := parser.NewStreamReader(cfg.StreamFile())
		if err != nil {
			return err
		}
		defer reader.Close()
		go ingest(eng, coord, reader, cfg, logger)
	}

	if err := eng.Run(); err != nil {
		return fmt.Errorf("engine run: %w", err)
	}
	if err := relabeler.Err(); err != nil {
		return err
	}
	if err := sink.Flush(); err != nil {
		return fmt.Errorf("flushing sketch file: %w", err)
	}
	logger.Info().Str("sketch_file", cfg.SketchFile()).Msg("run complete")
	return nil
}

// ingest delivers stream batches to the engine. Each round rendezvouses with
// the relabeler's after-iteration hook: meet at the stream barrier once the
// engine is quiescent, insert the batch (or flip Stop when the stream is
// dry), then release the engine through the graph barrier.
func ingest(eng *engine.Engine, coord *wlsketch.Coordinator, reader *parser.StreamReader, cfg *wlsketch.Config, logger zerolog.Logger) {
	kHops := cfg.KHops()
	batchSize := cfg.BatchSize()
	total := 0
	for {
		coord.StreamBarrier.Wait()

		batch, err := reader.NextBatch(batchSize)
		if err != nil {
			logger.Error().Err(err).Msg("stream read failed, stopping after current state")
			batch = nil
		}
		if len(batch) == 0 {
			coord.Stop.Store(true)
			coord.GraphBarrier.Wait()
			logger.Info().Int("streamed_edges", total).Msg("stream exhausted")
			return
		}

		for _, rec := range batch {
			eng.AddStreamedEdge(rec.Src, rec.Dst,
				wlsketch.NewEdgeLabel(kHops, rec.SrcType, rec.DstType, rec.EdgeType, rec.Timestamp))
		}
		total += len(batch)
		logger.Debug().Int("batch", len(batch)).Int("streamed_edges", total).Msg("batch ingested")
		coord.GraphBarrier.Wait()
	}
}
