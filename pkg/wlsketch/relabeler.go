package wlsketch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Relabeler is the Weisfeiler-Lehman vertex program. It runs as the vertex
// update callback inside the host's bulk-synchronous scheduler: iterations
// 0..K build the base-graph labels, every later iteration incrementally
// extends labels as streamed edges arrive. Every produced label is published
// into the shared histogram.
type Relabeler struct {
	kHops     int
	chunkify  bool
	chunkSize int

	hist   *Histogram
	coord  *Coordinator
	logger zerolog.Logger

	err error
}

// NewRelabeler wires the vertex program to the shared histogram and the
// drain/ingest coordinator.
func NewRelabeler(kHops int, chunkify bool, chunkSize int, hist *Histogram, coord *Coordinator, logger zerolog.Logger) *Relabeler {
	return &Relabeler{
		kHops:     kHops,
		chunkify:  chunkify,
		chunkSize: chunkSize,
		hist:      hist,
		coord:     coord,
		logger:    logger,
	}
}

// Err returns the first sink error observed while recording sketches.
func (r *Relabeler) Err() error { return r.err }

// Update is the per-vertex callback. A vertex is never updated concurrently
// with itself; edge handles are safe for both endpoints within an iteration.
func (r *Relabeler) Update(v Vertex, ctx Context) {
	if v.NumInEdges() == 0 && v.NumOutEdges() == 0 {
		r.logger.Debug().Uint32("vertex", v.ID()).Msg("isolated vertex skipped")
		return
	}

	iteration := ctx.Iteration()
	switch {
	case iteration == 0:
		r.baseInit(v, ctx)
	case iteration <= r.kHops:
		r.basePropagate(v, ctx, iteration)
	default:
		r.stream(v, ctx)
	}
}

// baseInit assigns the generation-0 label from the vertex's type: the
// destination-type label of any in-edge, or the source-type label published
// on an out-edge for vertices with no inbound edges.
func (r *Relabeler) baseInit(v Vertex, ctx Context) {
	nl := NewNodeLabel(r.kHops)

	if v.NumInEdges() > 0 {
		nl.Lb[0] = v.InEdge(0).Data().Dst
		nl.IsLeaf = false
		// Every base-graph in-edge starts contributing at generation 1.
		for i := 0; i < v.NumInEdges(); i++ {
			edge := v.InEdge(i)
			el := edge.Data()
			el.Itr++
			edge.SetData(el)
		}
	} else {
		nl.Lb[0] = v.RandomOutEdge().Data().Src[0]
		nl.IsLeaf = true
	}
	nl.Tm[0] = 0
	v.SetData(nl)

	r.hist.Update(nl.Lb[0], true)
	ctx.AddTask(v.ID())
}

// basePropagate computes generation g of a base-graph vertex from the
// generation g-1 labels its in-edges carry.
func (r *Relabeler) basePropagate(v Vertex, ctx Context, g int) {
	neighborhood := make([]EdgeLabel, 0, v.NumInEdges())
	for i := 0; i < v.NumInEdges(); i++ {
		edge := v.InEdge(i)
		el := edge.Data()
		if el.Itr != g {
			panic(fmt.Sprintf("wlsketch: vertex %d in-edge itr %d != base iteration %d", v.ID(), el.Itr, g))
		}
		neighborhood = append(neighborhood, el)
		el.Itr++
		edge.SetData(el)
	}

	nl := v.Data()

	if len(neighborhood) == 0 {
		// No inbound neighbors: the new label derives from the previous self.
		newLabel := HashString(strconv.FormatUint(nl.Lb[g-1], 10))
		r.hist.Update(newLabel, true)

		nl.Lb[g] = newLabel
		nl.Tm[g] = nl.Tm[g-1]
		v.SetData(nl)

		for i := 0; i < v.NumOutEdges(); i++ {
			edge := v.OutEdge(i)
			el := edge.Data()
			el.Src[g] = newLabel
			el.Tme[g] = el.Tme[g-1]
			edge.SetData(el)
		}
	} else {
		sortNeighborhood(neighborhood, g-1)

		labelStr := relabelString(nl.Lb[g-1], neighborhood, g-1, g == 1)
		newLabel := HashString(labelStr)
		r.publish(labelStr, newLabel, true)

		nl.Lb[g] = newLabel
		nl.Tm[g] = neighborhood[0].Tme[g-1]
		v.SetData(nl)

		for i := 0; i < v.NumOutEdges(); i++ {
			edge := v.OutEdge(i)
			el := edge.Data()
			el.Src[g] = newLabel
			el.Tme[g] = nl.Tm[g]
			edge.SetData(el)
		}
	}

	if g < r.kHops {
		ctx.AddTask(v.ID())
	}
}

// stream handles a vertex scheduled after the base graph is complete.
func (r *Relabeler) stream(v Vertex, ctx Context) {
	// The vertex is new iff any of its edges still marks the endpoint new.
	isNew := false
	for i := 0; i < v.NumOutEdges() && !isNew; i++ {
		isNew = v.OutEdge(i).Data().NewSrc
	}
	for i := 0; i < v.NumInEdges() && !isNew; i++ {
		isNew = v.InEdge(i).Data().NewDst
	}

	if isNew {
		if v.NumInEdges() == 0 {
			r.streamInitLeaf(v)
			return
		}
		r.streamInitNonLeaf(v)
	}

	if v.NumInEdges() == 0 {
		// An existing leaf was scheduled: at least one out-edge still needs
		// its labels. Copy the leaf chain onto every out-edge; some of this
		// repeats work, but there is no record of which edge is missing.
		nl := v.Data()
		if !nl.IsLeaf {
			panic(fmt.Sprintf("wlsketch: vertex %d has no in-edges but is not marked leaf", v.ID()))
		}
		for i := 0; i < v.NumOutEdges(); i++ {
			edge := v.OutEdge(i)
			el := edge.Data()
			for j := 1; j <= r.kHops; j++ {
				el.Src[j] = nl.Lb[j]
				el.Tme[j] = el.Tme[j-1]
			}
			edge.SetData(el)
		}
		return
	}

	r.streamRelabel(v, ctx)
}

// streamInitLeaf populates the full label chain of a freshly streamed vertex
// that has no inbound edges. The whole chain is a repeated self-hash of the
// type label, published immediately; the vertex is not rescheduled unless
// new edges attach to it later.
func (r *Relabeler) streamInitLeaf(v Vertex) {
	if v.NumOutEdges() == 0 {
		panic(fmt.Sprintf("wlsketch: new leaf vertex %d has no out-edges", v.ID()))
	}

	nl := NewNodeLabel(r.kHops)
	nl.Lb[0] = v.RandomOutEdge().Data().Src[0]
	nl.Tm[0] = 0
	for i := 1; i <= r.kHops; i++ {
		nl.Lb[i] = HashString(strconv.FormatUint(nl.Lb[i-1], 10))
		nl.Tm[i] = 0
	}
	nl.IsLeaf = true
	v.SetData(nl)

	for i := 0; i <= r.kHops; i++ {
		r.hist.Update(nl.Lb[i], false)
	}

	for i := 0; i < v.NumOutEdges(); i++ {
		edge := v.OutEdge(i)
		el := edge.Data()
		for j := 1; j <= r.kHops; j++ {
			el.Src[j] = nl.Lb[j]
			el.Tme[j] = el.Tme[j-1]
		}
		el.NewSrc = false
		edge.SetData(el)
	}
}

// streamInitNonLeaf initializes a freshly streamed vertex that has inbound
// edges: generation 0 comes from the destination-type label, later
// generations stay zero until the incremental relabeler produces them.
func (r *Relabeler) streamInitNonLeaf(v Vertex) {
	nl := v.Data()
	if nl == nil {
		nl = NewNodeLabel(r.kHops)
	}
	nl.Lb[0] = v.InEdge(0).Data().Dst
	nl.Tm[0] = 0
	nl.IsLeaf = false
	for i := 1; i <= r.kHops; i++ {
		nl.Lb[i] = 0
	}
	v.SetData(nl)

	for i := 0; i < v.NumInEdges(); i++ {
		edge := v.InEdge(i)
		el := edge.Data()
		if el.Itr != 0 {
			panic(fmt.Sprintf("wlsketch: new vertex %d has in-edge with itr %d", v.ID(), el.Itr))
		}
		el.Itr++
		el.NewDst = false
		edge.SetData(el)
	}
	for i := 0; i < v.NumOutEdges(); i++ {
		edge := v.OutEdge(i)
		el := edge.Data()
		el.NewSrc = false
		edge.SetData(el)
	}

	r.hist.Update(nl.Lb[0], false)
}

// streamRelabel advances a vertex with inbound edges by one generation. The
// minimum in-edge cursor names the single generation this vertex currently
// owes, so each generation is emitted exactly once per relevant change.
func (r *Relabeler) streamRelabel(v Vertex, ctx Context) {
	nl := v.Data()
	if nl.IsLeaf {
		// A leaf gained inbound edges; it stops being a leaf.
		nl.IsLeaf = false
	}

	// A new edge between two existing vertices carries none of the source's
	// labels yet; sync every out-edge with the current chain.
	for i := 0; i < v.NumOutEdges(); i++ {
		edge := v.OutEdge(i)
		el := edge.Data()
		for j := 1; j <= r.kHops; j++ {
			el.Src[j] = nl.Lb[j]
			el.Tme[j] = nl.Tm[j]
		}
		edge.SetData(el)
	}

	minItr := r.kHops + 2
	for i := 0; i < v.NumInEdges(); i++ {
		edge := v.InEdge(i)
		el := edge.Data()
		if el.Itr == 0 {
			el.Itr++
			edge.SetData(el)
		}
		if el.Itr < minItr {
			minItr = el.Itr
		}
	}
	if minItr < 1 || minItr > r.kHops+1 {
		panic(fmt.Sprintf("wlsketch: vertex %d min in-edge itr %d out of range", v.ID(), minItr))
	}
	if minItr == r.kHops+1 {
		// Saturated: every in-edge has contributed through generation K.
		// The vertex may be, say, the source endpoint of a freshly added
		// edge; nothing to relabel, nothing to reschedule.
		return
	}

	neighborhood := make([]EdgeLabel, 0, v.NumInEdges())
	for i := 0; i < v.NumInEdges(); i++ {
		edge := v.InEdge(i)
		el := edge.Data()
		neighborhood = append(neighborhood, el)
		if el.Itr < r.kHops+1 {
			el.Itr++
			edge.SetData(el)
		}
	}
	sortNeighborhood(neighborhood, minItr-1)

	labelStr := relabelString(nl.Lb[minItr-1], neighborhood, minItr-1, minItr == 1)
	newLabel := HashString(labelStr)
	r.publish(labelStr, newLabel, false)

	nl.Lb[minItr] = newLabel
	v.SetData(nl)

	for i := 0; i < v.NumOutEdges(); i++ {
		edge := v.OutEdge(i)
		el := edge.Data()
		el.Src[minItr] = newLabel
		el.Tme[minItr] = neighborhood[0].Tme[minItr-1]
		if el.Itr == r.kHops+1 {
			// The downstream endpoint is saturated and would otherwise never
			// pick this label up; rewind the cursor so it participates again.
			el.Itr = minItr + 1
		}
		edge.SetData(el)

		if minItr < r.kHops {
			ctx.AddTask(edge.VertexID())
		}
	}

	if minItr < r.kHops+1 {
		ctx.AddTask(v.ID())
	}
}

// AfterIteration runs at every bulk-synchronous iteration boundary. At the
// end of iteration K the base graph is complete and the sketch is created;
// at quiescence the pass tick fires and, unless stopping, the hook waits for
// the ingester to deliver the next batch.
func (r *Relabeler) AfterIteration(iteration int, ctx Context) {
	if iteration == r.kHops {
		r.coord.BaseGraphConstructed.Store(true)
		r.hist.CreateSketch()
	}
	if !r.coord.NoNewTasks.Load() {
		return
	}

	if err := r.hist.Decay(); err != nil {
		if r.err == nil {
			r.err = err
		}
		r.logger.Error().Err(err).Msg("sketch sink write failed")
	}

	if r.coord.Stop.Load() {
		r.logger.Debug().Int("iteration", iteration).Msg("stream exhausted, stopping engine")
		ctx.SetLastIteration(iteration)
		return
	}
	r.coord.StreamBarrier.Wait()
	r.coord.NoNewTasks.Store(false)
	r.coord.GraphBarrier.Wait()
	// The ingester flips Stop between the two barriers when the stream runs
	// dry; in that case there is no batch to process and no further pass.
	if r.coord.Stop.Load() {
		ctx.SetLastIteration(iteration)
	}
}

// publish inserts a relabeling into the histogram, either as the single
// hashed label or, when chunkify is on, as one entry per chunk of the
// relabel string.
func (r *Relabeler) publish(labelStr string, newLabel uint64, base bool) {
	if !r.chunkify {
		r.hist.Update(newLabel, base)
		return
	}
	for _, chunk := range Chunkify([]byte(labelStr), r.chunkSize) {
		r.hist.Update(chunk, base)
	}
}

// relabelString builds the WL relabeling string: the vertex's previous label
// followed by each sorted neighbor's label at the given generation, with
// edge-type labels interleaved on the first generation only.
func relabelString(prev uint64, neighborhood []EdgeLabel, generation int, includeEdgeTypes bool) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(prev, 10))
	for _, n := range neighborhood {
		if includeEdgeTypes {
			sb.WriteByte(' ')
			sb.WriteString(strconv.FormatUint(n.Edg, 10))
		}
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatUint(n.Src[generation], 10))
	}
	return sb.String()
}
