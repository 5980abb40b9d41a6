package wlsketch

import "sort"

// NodeLabel is the per-vertex relabeling state. Lb[h] summarizes the h-hop
// inbound neighborhood of the vertex; Tm[h] is the minimum inbound timestamp
// observed at that generation. Both slices have length K+1.
type NodeLabel struct {
	Lb     []uint64
	Tm     []int64
	IsLeaf bool
}

// NewNodeLabel allocates label state for a K-hop run.
func NewNodeLabel(kHops int) *NodeLabel {
	return &NodeLabel{
		Lb: make([]uint64, kHops+1),
		Tm: make([]int64, kHops+1),
	}
}

// EdgeLabel is the per-edge state. Src[h] is the source vertex's label at
// generation h as published onto this edge, Tme[h] the timestamp carried
// alongside it. Dst and Edg hold the original destination-type and edge-type
// labels from the input. Itr is the generation cursor: 0 = never seen,
// g = contributed to generation g-1, K+1 once saturated. A saturated-edge
// rewind moves a saturated cursor back to a lower generation.
type EdgeLabel struct {
	Src []uint64
	Tme []int64
	Dst uint64
	Edg uint64
	Itr int

	// First time the engine sees the endpoint as a streamed vertex.
	NewSrc bool
	NewDst bool
}

// NewEdgeLabel builds the initial edge state from parsed input. Src[0] carries
// the source vertex's type label; Tme[0] the edge timestamp.
func NewEdgeLabel(kHops int, srcType, dstType, edgeType uint64, timestamp int64) EdgeLabel {
	el := EdgeLabel{
		Src: make([]uint64, kHops+1),
		Tme: make([]int64, kHops+1),
		Dst: dstType,
		Edg: edgeType,
	}
	el.Src[0] = srcType
	el.Tme[0] = timestamp
	return el
}

// Clone deep-copies the edge state so callers get value semantics.
func (el EdgeLabel) Clone() EdgeLabel {
	out := el
	out.Src = make([]uint64, len(el.Src))
	out.Tme = make([]int64, len(el.Tme))
	copy(out.Src, el.Src)
	copy(out.Tme, el.Tme)
	return out
}

// sortNeighborhood orders captured in-edge states by their timestamp at the
// given generation, ascending. Stable so that equal timestamps keep input
// order and relabeling stays deterministic.
func sortNeighborhood(neighborhood []EdgeLabel, generation int) {
	sort.SliceStable(neighborhood, func(i, j int) bool {
		return neighborhood[i].Tme[generation] < neighborhood[j].Tme[generation]
	})
}

// Vertex is the handle the host graph engine passes to the vertex update
// callback. A vertex is never updated concurrently with itself; edge handles
// are safe for the two endpoints within one iteration.
type Vertex interface {
	ID() uint32
	Data() *NodeLabel
	SetData(*NodeLabel)
	NumInEdges() int
	NumOutEdges() int
	InEdge(i int) Edge
	OutEdge(i int) Edge
	RandomOutEdge() Edge
}

// Edge is the host's edge handle. Data returns a copy; mutations must go back
// through SetData.
type Edge interface {
	Data() EdgeLabel
	SetData(EdgeLabel)
	VertexID() uint32
}

// Context is the scheduler surface the host exposes during an update.
type Context interface {
	Iteration() int
	AddTask(vertexID uint32)
	SetLastIteration(n int)
}

// VertexProgram is implemented by the relabeler and driven by the host's
// bulk-synchronous iteration loop.
type VertexProgram interface {
	Update(v Vertex, ctx Context)
	AfterIteration(iteration int, ctx Context)
}
