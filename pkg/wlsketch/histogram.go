package wlsketch

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Histogram maps labels to decaying real-valued counters and maintains the
// consistent-weighted-min-hash sketch over them. One instance is shared by
// all vertex callbacks; a single mutex protects the map, the sketch slots and
// the tick counters, so concurrent updates serialize.
type Histogram struct {
	mu     sync.Mutex
	counts map[uint64]float64

	// sketch[i] is the label currently realizing the slot minimum, hash[i]
	// the minimum hash value witnessed so far.
	sketch []uint64
	hash   []float64

	// Tick counters, advanced once per quiescent pass. t triggers decay at
	// decayEvery, w triggers sketch emission at window.
	t int
	w int

	size       int
	decayEvery int
	window     int
	lambda     float64
	powerful   float64 // e^(-lambda)

	params *ParamGenerator
	sink   io.Writer
	logger zerolog.Logger
}

// NewHistogram builds the shared histogram. sink receives one line of
// sketchSize integers every window quiescent passes.
func NewHistogram(sketchSize, decayEvery, window int, lambda float64, params *ParamGenerator, sink io.Writer, logger zerolog.Logger) *Histogram {
	h := &Histogram{
		counts:     make(map[uint64]float64),
		sketch:     make([]uint64, sketchSize),
		hash:       make([]float64, sketchSize),
		size:       sketchSize,
		decayEvery: decayEvery,
		window:     window,
		lambda:     lambda,
		powerful:   math.Exp(-lambda),
		params:     params,
		sink:       sink,
		logger:     logger,
	}
	for i := range h.hash {
		h.hash[i] = math.Inf(1)
	}
	return h
}

// slotHash computes the per-slot ICWS hash A(label, i, count) from the
// label's parameter row.
func slotHash(row *ParamRow, i int, count float64) float64 {
	y := math.Exp(math.Log(count) - row.R[i]*row.Beta[i])
	return row.C[i] / (y * math.Exp(row.R[i]))
}

// Update inserts the label with count 1 or increments the existing counter.
// During streaming (base == false) the sketch slots are re-evaluated for
// this label; during base-graph construction the slots are left alone and
// initialized later by CreateSketch.
func (h *Histogram) Update(label uint64, base bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[label]++
	if base {
		return
	}

	count := h.counts[label]
	row := h.params.Params(label)
	for i := 0; i < h.size; i++ {
		if a := slotHash(row, i, count); a < h.hash[i] {
			h.hash[i] = a
			h.sketch[i] = label
		}
	}
}

// CreateSketch initializes the sketch slots from the current histogram
// contents. Called exactly once, at the transition from base-graph
// processing to streaming; every later Update with base == false maintains
// the slots incrementally.
//
// Labels are scanned in ascending order so that argmin ties resolve the same
// way on every run.
func (h *Histogram) CreateSketch() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.params.Memory() {
		h.params.Pregenerate()
	}

	labels := make([]uint64, 0, len(h.counts))
	for label := range h.counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	// The base graph is small; saving the parameter rows locally avoids
	// re-deriving them once per slot.
	baseMap := make(map[uint64]*ParamRow, len(labels))
	for _, label := range labels {
		baseMap[label] = h.params.Params(label)
	}

	for i := 0; i < h.size; i++ {
		minHash := math.Inf(1)
		var minLabel uint64
		for _, label := range labels {
			row, ok := baseMap[label]
			if !ok {
				panic(fmt.Sprintf("wlsketch: label %d missing from base parameter map", label))
			}
			if a := slotHash(row, i, h.counts[label]); a < minHash {
				minHash = a
				minLabel = label
			}
		}
		h.sketch[i] = minLabel
		h.hash[i] = minHash
	}
	h.logger.Info().Int("labels", len(labels)).Int("slots", h.size).Msg("sketch created from base graph")
}

// Decay advances the pass tick counters; the driver calls it once per
// quiescent pass. When t reaches the decay interval every counter and every
// slot hash is multiplied by e^(-lambda) (a no-op when lambda is zero), and
// when w reaches the window one sketch line is written to the sink.
//
// Scaling the slot hashes alongside the counters preserves the ordering
// among surviving labels because r and beta are fixed per label; new labels
// appearing after a decay compete against already-decayed hashes.
func (h *Histogram) Decay() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.t++
	h.w++
	if h.t >= h.decayEvery {
		if h.lambda != 0 {
			for label := range h.counts {
				h.counts[label] *= h.powerful
			}
			floats.Scale(h.powerful, h.hash)
		}
		h.t = 0
	}
	if h.w >= h.window {
		if err := h.writeSketch(h.sink); err != nil {
			return fmt.Errorf("recording sketch: %w", err)
		}
		h.w = 0
	}
	return nil
}

// RecordSketch writes the current sketch labels to w as a single
// space-separated line with a trailing newline.
func (h *Histogram) RecordSketch(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writeSketch(w)
}

// writeSketch emits one sketch line. Caller holds the lock.
func (h *Histogram) writeSketch(w io.Writer) error {
	for i, label := range h.sketch {
		sep := " "
		if i == 0 {
			sep = ""
		}
		if _, err := fmt.Fprintf(w, "%s%d", sep, label); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Count returns the current counter of a label, 0 if absent.
func (h *Histogram) Count(label uint64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[label]
}

// Size returns the number of distinct labels in the histogram.
func (h *Histogram) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.counts)
}

// TotalCount returns the sum of all counters.
func (h *Histogram) TotalCount() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0.0
	for _, c := range h.counts {
		total += c
	}
	return total
}

// Sketch returns a copy of the current sketch labels.
func (h *Histogram) Sketch() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]uint64, len(h.sketch))
	copy(out, h.sketch)
	return out
}

// SlotHashes returns a copy of the current slot minima.
func (h *Histogram) SlotHashes() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.hash))
	copy(out, h.hash)
	return out
}
