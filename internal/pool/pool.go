// Package pool provides an unordered collection that supports constant-time
// insertion and constant-time removal of a uniformly random element.
//
// The scheduler keeps one pool per learning stage (study, quiz, done) and
// moves items between them by drawing at random, so draw order carries no
// information about insertion order.
package pool

import (
	"errors"
	"math/rand/v2"
)

// ErrEmptyPool is returned when a random removal is requested from an empty pool.
var ErrEmptyPool = errors.New("pool is empty")

// Source supplies uniform integers in [0, n). *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// RandomPool is an unordered multiset of T with O(1) Add and O(1) RemoveRandom.
//
// RandomPool is not safe for concurrent use; the scheduler owns its pools
// from a single goroutine.
type RandomPool[T any] struct {
	items []T
	rng   Source
}

// New creates an empty pool drawing from rng. A nil rng uses a
// process-seeded generator.
func New[T any](rng Source) *RandomPool[T] {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomPool[T]{rng: rng}
}

// NewSeeded creates an empty pool with a deterministic generator.
func NewSeeded[T any](seed uint64) *RandomPool[T] {
	return New[T](rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Add inserts item. Duplicates are allowed.
func (p *RandomPool[T]) Add(item T) {
	p.items = append(p.items, item)
}

// RemoveRandom removes and returns a uniformly chosen element.
// The chosen slot is filled with the last element and the slice shrinks by one.
func (p *RandomPool[T]) RemoveRandom() (T, error) {
	var zero T
	n := len(p.items)
	if n == 0 {
		return zero, ErrEmptyPool
	}

	i := p.rng.IntN(n)
	item := p.items[i]
	p.items[i] = p.items[n-1]
	p.items[n-1] = zero
	p.items = p.items[:n-1]
	return item, nil
}

// Count returns the number of elements.
func (p *RandomPool[T]) Count() int {
	return len(p.items)
}

// Empty reports whether the pool has no elements.
func (p *RandomPool[T]) Empty() bool {
	return len(p.items) == 0
}

// Snapshot returns a copy of the current elements in storage order.
// Storage order is an implementation detail and must not be relied on.
func (p *RandomPool[T]) Snapshot() []T {
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}
