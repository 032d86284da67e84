package core

import (
	"fmt"
	"strings"
	"sync"
)

const defaultSlabSize = 256

// Allocator is the storage source for Task objects.
//
// Task creation sits on the hot path of every simulation step, so the scheduler
// takes task storage from a pluggable Allocator instead of the general heap. Free
// is always called with a task produced by the same Allocator, after the task has
// run. Implementations must be safe for concurrent use by all workers.
type Allocator interface {
	Allocate() *Task
	Free(t *Task)
}

// Allocator kinds accepted by NewAllocator.
const (
	AllocatorHeap = "heap"
	AllocatorPool = "pool"
	AllocatorSlab = "slab"
)

// NewAllocator builds an Allocator by kind name. slabSize is only used by the
// slab allocator; values below 1 select the default.
func NewAllocator(kind string, slabSize int) (Allocator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", AllocatorHeap:
		return HeapAllocator{}, nil
	case AllocatorPool:
		return NewPoolAllocator(), nil
	case AllocatorSlab:
		return NewSlabAllocator(slabSize), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAllocator, kind)
	}
}

// =============================================================================
// HeapAllocator: delegates to the Go heap
// =============================================================================

// HeapAllocator allocates every task with new and lets the garbage collector
// reclaim it.
type HeapAllocator struct{}

func (HeapAllocator) Allocate() *Task { return new(Task) }

func (HeapAllocator) Free(t *Task) { t.reset() }

// =============================================================================
// PoolAllocator: sync.Pool recycled tasks
// =============================================================================

// PoolAllocator recycles tasks through a sync.Pool.
type PoolAllocator struct {
	pool sync.Pool
}

// NewPoolAllocator creates an empty PoolAllocator.
func NewPoolAllocator() *PoolAllocator {
	return &PoolAllocator{
		pool: sync.Pool{
			New: func() any {
				return new(Task)
			},
		},
	}
}

func (a *PoolAllocator) Allocate() *Task {
	return a.pool.Get().(*Task)
}

func (a *PoolAllocator) Free(t *Task) {
	// Clear all references before returning to the pool
	t.reset()
	a.pool.Put(t)
}

// =============================================================================
// SlabAllocator: fixed-size slabs with a free list
// =============================================================================

// SlabAllocator carves tasks out of pre-allocated slabs and keeps released tasks
// on a free list. It grows one slab at a time and keeps its memory for the life
// of the allocator, which suits the steady per-step task footprint of a
// simulation.
type SlabAllocator struct {
	mu       sync.Mutex
	slabSize int
	slabs    [][]Task
	free     []*Task
}

// NewSlabAllocator creates a SlabAllocator whose slabs hold slabSize tasks.
func NewSlabAllocator(slabSize int) *SlabAllocator {
	if slabSize < 1 {
		slabSize = defaultSlabSize
	}
	return &SlabAllocator{
		slabSize: slabSize,
		free:     make([]*Task, 0, slabSize),
	}
}

func (a *SlabAllocator) Allocate() *Task {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.free) == 0 {
		a.growLocked()
	}
	n := len(a.free) - 1
	t := a.free[n]
	a.free[n] = nil
	a.free = a.free[:n]
	return t
}

func (a *SlabAllocator) Free(t *Task) {
	t.reset()
	a.mu.Lock()
	a.free = append(a.free, t)
	a.mu.Unlock()
}

// Capacity returns the total number of task slots carved so far.
func (a *SlabAllocator) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slabs) * a.slabSize
}

// Available returns the number of slots currently on the free list.
func (a *SlabAllocator) Available() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

func (a *SlabAllocator) growLocked() {
	slab := make([]Task, a.slabSize)
	a.slabs = append(a.slabs, slab)
	for i := len(slab) - 1; i >= 0; i-- {
		a.free = append(a.free, &slab[i])
	}
}
