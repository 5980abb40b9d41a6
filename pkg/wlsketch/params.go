package wlsketch

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// pregenMasterSeed seeds the PRNG that derives the per-row seeds of the
// pregenerated parameter table.
const pregenMasterSeed = 36

// paramCacheSize bounds the per-label parameter cache in on-the-fly mode.
const paramCacheSize = 4096

// ParamRow holds the consistent-weighted-min-hash parameters of one label:
// for each sketch slot i, R[i] and C[i] are Gamma(2,1) variates and Beta[i]
// is Uniform[0,1).
type ParamRow struct {
	R    []float64
	Beta []float64
	C    []float64
}

// ParamGenerator produces ICWS hash parameters per label. Both modes are
// deterministic functions of the label for the lifetime of the process;
// a given (label, count) therefore always yields the same slot hash.
//
// In on-the-fly mode every request re-derives the row from PRNGs seeded by
// the label; an LRU cache short-circuits repeat labels (safe, since rows are
// pure functions of the label). In memory (pregen) mode a fixed table of
// rows is generated once and labels pick two rows via a label-seeded PRNG.
type ParamGenerator struct {
	size   int
	memory bool
	pregen int

	gammaParam   [][]float64
	uniformParam [][]float64

	cache *lru.Cache[uint64, *ParamRow]
}

// NewParamGenerator builds a generator for sketchSize slots. pregenRows is
// only consulted in memory mode.
func NewParamGenerator(sketchSize int, memory bool, pregenRows int) (*ParamGenerator, error) {
	g := &ParamGenerator{
		size:   sketchSize,
		memory: memory,
		pregen: pregenRows,
	}
	if memory {
		if pregenRows <= 0 {
			return nil, fmt.Errorf("pregen row count must be positive, got %d", pregenRows)
		}
	} else {
		cache, err := lru.New[uint64, *ParamRow](paramCacheSize)
		if err != nil {
			return nil, fmt.Errorf("param cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

// Memory reports whether the generator runs in pregenerated-table mode.
func (g *ParamGenerator) Memory() bool { return g.memory }

// Pregenerate fills the parameter table in memory mode. Called once, at
// sketch creation time. Each row gets its own seed drawn from the master
// PRNG; the row's Gamma and Uniform streams share that seed.
func (g *ParamGenerator) Pregenerate() {
	if !g.memory {
		return
	}
	g.gammaParam = make([][]float64, g.pregen)
	g.uniformParam = make([][]float64, g.pregen)

	master := rand.New(rand.NewSource(pregenMasterSeed))
	for row := 0; row < g.pregen; row++ {
		seed := master.Uint64()
		gamma := distuv.Gamma{Alpha: 2, Beta: 1, Src: rand.NewSource(seed)}
		uniform := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(seed)}

		g.gammaParam[row] = make([]float64, g.size)
		g.uniformParam[row] = make([]float64, g.size)
		for i := 0; i < g.size; i++ {
			g.gammaParam[row][i] = gamma.Rand()
			g.uniformParam[row][i] = uniform.Rand()
		}
	}
}

// Params returns the parameter row for a label.
func (g *ParamGenerator) Params(label uint64) *ParamRow {
	if g.memory {
		return g.lookupPregen(label)
	}
	if row, ok := g.cache.Get(label); ok {
		return row
	}
	row := g.construct(label)
	g.cache.Add(label, row)
	return row
}

// construct derives a fresh parameter row in on-the-fly mode. Three sources
// are seeded from the label: r and beta share the label seed (through
// independent distribution streams), c uses label/2. Distribution state is
// per-label, so results do not depend on call order.
func (g *ParamGenerator) construct(label uint64) *ParamRow {
	rGamma := distuv.Gamma{Alpha: 2, Beta: 1, Src: rand.NewSource(label)}
	cGamma := distuv.Gamma{Alpha: 2, Beta: 1, Src: rand.NewSource(label / 2)}
	beta := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(label)}

	row := &ParamRow{
		R:    make([]float64, g.size),
		Beta: make([]float64, g.size),
		C:    make([]float64, g.size),
	}
	for i := 0; i < g.size; i++ {
		row.R[i] = rGamma.Rand()
		row.Beta[i] = beta.Rand()
		row.C[i] = cGamma.Rand()
	}
	return row
}

// lookupPregen assembles a row from the pregenerated table: r and beta come
// from row pos1, c from the gamma values of row pos2, both positions drawn
// from a label-seeded PRNG.
func (g *ParamGenerator) lookupPregen(label uint64) *ParamRow {
	if g.gammaParam == nil {
		panic("wlsketch: pregen parameter table not generated; CreateSketch must run before streaming updates")
	}
	src := rand.New(rand.NewSource(label))
	pos1 := int(src.Uint64() % uint64(g.pregen))
	pos2 := int(src.Uint64() % uint64(g.pregen))
	return &ParamRow{
		R:    g.gammaParam[pos1],
		Beta: g.uniformParam[pos1],
		C:    g.gammaParam[pos2],
	}
}
