package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gilchrisn/graph-sketching-service/pkg/wlsketch"
)

// Graph is the in-memory dynamic graph store. Vertices and edges carry the
// relabeler's state; topology only mutates between iterations, while the
// ingester holds the engine at the graph barrier.
type Graph struct {
	mu       sync.RWMutex
	vertices map[uint32]*Vertex
	numEdges int

	// known marks endpoints the engine has already seen, either in the base
	// graph or in an earlier streamed batch. A streamed edge whose endpoint
	// is not yet known marks that endpoint new.
	known map[uint32]bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		vertices: make(map[uint32]*Vertex),
		known:    make(map[uint32]bool),
	}
}

// Vertex returns the handle for a vertex ID, nil if absent.
func (g *Graph) Vertex(id uint32) *Vertex {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.vertices[id]
}

// NumVertices returns the number of vertices.
func (g *Graph) NumVertices() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vertices)
}

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.numEdges
}

// VertexIDs returns all vertex IDs in ascending order.
func (g *Graph) VertexIDs() []uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]uint32, 0, len(g.vertices))
	for id := range g.vertices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddBaseEdge inserts an edge of the initial snapshot. Both endpoints are
// marked known so later streamed edges do not treat them as new.
func (g *Graph) AddBaseEdge(src, dst uint32, el wlsketch.EdgeLabel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.insert(src, dst, el)
	g.known[src] = true
	g.known[dst] = true
}

// addStreamedEdge inserts a streamed edge, marking endpoints new on first
// sight. Scheduling the endpoints is left to Engine.AddStreamedEdge.
func (g *Graph) addStreamedEdge(src, dst uint32, el wlsketch.EdgeLabel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	el.NewSrc = !g.known[src]
	el.NewDst = !g.known[dst]
	el.Itr = 0
	g.known[src] = true
	g.known[dst] = true
	g.insert(src, dst, el)
}

// insert attaches the edge to both endpoints. Caller holds the lock.
func (g *Graph) insert(src, dst uint32, el wlsketch.EdgeLabel) {
	e := &edge{src: src, dst: dst, data: el.Clone()}
	g.ensureVertex(src).out = append(g.vertices[src].out, e)
	g.ensureVertex(dst).in = append(g.vertices[dst].in, e)
	g.numEdges++
}

// ensureVertex returns the vertex, creating it if needed. Caller holds the lock.
func (g *Graph) ensureVertex(id uint32) *Vertex {
	v, ok := g.vertices[id]
	if !ok {
		v = &Vertex{id: id}
		g.vertices[id] = v
	}
	return v
}

// Vertex is the engine's vertex handle, implementing wlsketch.Vertex. The
// engine never updates a vertex concurrently with itself, so the label state
// needs no lock of its own.
type Vertex struct {
	id   uint32
	data *wlsketch.NodeLabel
	in   []*edge
	out  []*edge
}

func (v *Vertex) ID() uint32                     { return v.id }
func (v *Vertex) Data() *wlsketch.NodeLabel      { return v.data }
func (v *Vertex) SetData(nl *wlsketch.NodeLabel) { v.data = nl }
func (v *Vertex) NumInEdges() int                { return len(v.in) }
func (v *Vertex) NumOutEdges() int               { return len(v.out) }

// InEdge returns the i-th inbound edge; VertexID on the handle names the
// source endpoint.
func (v *Vertex) InEdge(i int) wlsketch.Edge {
	e := v.in[i]
	return edgeHandle{edge: e, other: e.src}
}

// OutEdge returns the i-th outbound edge; VertexID on the handle names the
// destination endpoint.
func (v *Vertex) OutEdge(i int) wlsketch.Edge {
	e := v.out[i]
	return edgeHandle{edge: e, other: e.dst}
}

// RandomOutEdge returns a deterministic choice: out-edge 0. The relabeler
// only calls this on vertices required to have at least one out-edge.
func (v *Vertex) RandomOutEdge() wlsketch.Edge {
	if len(v.out) == 0 {
		panic(fmt.Sprintf("engine: vertex %d has no out-edges", v.id))
	}
	return v.OutEdge(0)
}

// edge is the shared edge record. Both endpoint callbacks may touch it in
// the same iteration, so access goes through a lock and value copies.
type edge struct {
	mu   sync.Mutex
	src  uint32
	dst  uint32
	data wlsketch.EdgeLabel
}

// edgeHandle adapts an edge for one endpoint's view.
type edgeHandle struct {
	edge  *edge
	other uint32
}

func (h edgeHandle) Data() wlsketch.EdgeLabel {
	h.edge.mu.Lock()
	defer h.edge.mu.Unlock()
	return h.edge.data.Clone()
}

func (h edgeHandle) SetData(el wlsketch.EdgeLabel) {
	h.edge.mu.Lock()
	defer h.edge.mu.Unlock()
	h.edge.data = el.Clone()
}

func (h edgeHandle) VertexID() uint32 { return h.other }
