package wlsketch

import (
	"sync"
	"sync/atomic"
)

// Barrier is a cyclic rendezvous for a fixed number of parties. Wait blocks
// until all parties have arrived, then releases them together and resets for
// the next cycle.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	arrived    int
	generation int
}

// NewBarrier builds a barrier for the given number of parties.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties have called Wait for the current cycle.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.generation
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}

// Coordinator carries the two-phase drain/ingest handshake between the
// relabeler's after-iteration hook and the edge ingester. When the engine
// quiesces the relabeler waits on StreamBarrier; the ingester inserts the
// next batch of edges, and both sides meet again on GraphBarrier before the
// engine resumes.
type Coordinator struct {
	BaseGraphConstructed atomic.Bool
	NoNewTasks           atomic.Bool
	Stop                 atomic.Bool

	StreamBarrier *Barrier
	GraphBarrier  *Barrier
}

// NewCoordinator builds the coordination state with two 2-party barriers.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		StreamBarrier: NewBarrier(2),
		GraphBarrier:  NewBarrier(2),
	}
}
