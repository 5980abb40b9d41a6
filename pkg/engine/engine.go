package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-sketching-service/pkg/wlsketch"
)

// Engine drives a vertex program over the graph in bulk-synchronous
// iterations. Within an iteration scheduled vertices run on a worker pool;
// vertices scheduled during iteration i run at iteration i+1. With one
// worker the execution order is ascending vertex ID and runs are
// reproducible.
type Engine struct {
	graph   *Graph
	program wlsketch.VertexProgram
	coord   *wlsketch.Coordinator

	numWorkers    int
	maxIterations int
	logger        zerolog.Logger

	mu            sync.Mutex
	next          map[uint32]struct{}
	iteration     int
	lastIteration int
}

// NewEngine wires a program to a graph and the drain/ingest coordinator.
func NewEngine(graph *Graph, program wlsketch.VertexProgram, coord *wlsketch.Coordinator, numWorkers, maxIterations int, logger zerolog.Logger) *Engine {
	return &Engine{
		graph:         graph,
		program:       program,
		coord:         coord,
		numWorkers:    numWorkers,
		maxIterations: maxIterations,
		logger:        logger,
		next:          make(map[uint32]struct{}),
		lastIteration: -1,
	}
}

// Graph returns the underlying graph store.
func (e *Engine) Graph() *Graph { return e.graph }

// Iteration returns the next iteration number the engine will run.
func (e *Engine) Iteration() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iteration
}

// Schedule queues a vertex for the next iteration.
func (e *Engine) Schedule(id uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next[id] = struct{}{}
}

// ScheduleAll queues every vertex for the next iteration.
func (e *Engine) ScheduleAll() {
	for _, id := range e.graph.VertexIDs() {
		e.Schedule(id)
	}
}

// AddStreamedEdge inserts a streamed edge and schedules both endpoints. Only
// safe while the engine is parked between iterations, which is what the
// coordinator's barriers guarantee.
func (e *Engine) AddStreamedEdge(src, dst uint32, el wlsketch.EdgeLabel) {
	e.graph.addStreamedEdge(src, dst, el)
	e.Schedule(src)
	e.Schedule(dst)
}

// Run executes iterations until the program declares a last iteration. On
// the first ever run every vertex is scheduled; a later Run resumes with
// whatever the ingester scheduled meanwhile.
func (e *Engine) Run() error {
	e.mu.Lock()
	if e.iteration == 0 && len(e.next) == 0 {
		e.mu.Unlock()
		e.ScheduleAll()
		e.mu.Lock()
	}
	e.lastIteration = -1
	e.mu.Unlock()

	for {
		tasks, iteration := e.takeScheduled()
		ctx := &context{engine: e, iteration: iteration}

		if len(tasks) > 0 {
			e.runTasks(tasks, ctx)
		}

		e.mu.Lock()
		e.coord.NoNewTasks.Store(len(e.next) == 0)
		e.mu.Unlock()

		e.program.AfterIteration(iteration, ctx)

		e.mu.Lock()
		e.iteration++
		done := e.lastIteration >= 0 && iteration >= e.lastIteration
		overrun := e.iteration > e.maxIterations
		e.mu.Unlock()

		if done {
			return nil
		}
		if overrun {
			return fmt.Errorf("engine: exceeded %d iterations without quiescing", e.maxIterations)
		}
	}
}

// takeScheduled swaps out the pending task set, sorted for determinism.
func (e *Engine) takeScheduled() ([]uint32, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := make([]uint32, 0, len(e.next))
	for id := range e.next {
		tasks = append(tasks, id)
	}
	e.next = make(map[uint32]struct{})
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })
	return tasks, e.iteration
}

// runTasks updates the scheduled vertices, sequentially for a single worker
// and over a pool otherwise.
func (e *Engine) runTasks(tasks []uint32, ctx *context) {
	if e.numWorkers <= 1 {
		for _, id := range tasks {
			e.program.Update(e.graph.Vertex(id), ctx)
		}
		return
	}

	work := make(chan uint32)
	var wg sync.WaitGroup
	for w := 0; w < e.numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				e.program.Update(e.graph.Vertex(id), ctx)
			}
		}()
	}
	for _, id := range tasks {
		work <- id
	}
	close(work)
	wg.Wait()
}

// setLastIteration records the iteration after which Run returns.
func (e *Engine) setLastIteration(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastIteration = n
}

// context implements wlsketch.Context for one iteration.
type context struct {
	engine    *Engine
	iteration int
}

func (c *context) Iteration() int          { return c.iteration }
func (c *context) AddTask(vertexID uint32) { c.engine.Schedule(vertexID) }
func (c *context) SetLastIteration(n int)  { c.engine.setLastIteration(n) }
