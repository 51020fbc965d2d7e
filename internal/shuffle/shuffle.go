// Package shuffle produces non-repeating random traversal orders over a
// content list.
package shuffle

import (
	"math/rand"
	"time"
)

// Rand is the subset of *rand.Rand the engine draws from. Tests inject a
// seeded source to make traversals reproducible.
type Rand interface {
	Intn(n int) int
}

// NewRand returns a time-seeded source.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Shuffle returns a Fisher–Yates permutation of 0..n-1. When the first
// element equals avoid and n > 1 it is swapped with the last one.
func Shuffle(n, avoid int, rng Rand) []int {
	if n <= 0 {
		return nil
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	if n > 1 && order[0] == avoid {
		order[0], order[n-1] = order[n-1], order[0]
	}
	return order
}

// Queue is the shuffle queue: indices consumed front to back, regenerated
// when exhausted.
type Queue struct {
	order []int
	size  int
	rng   Rand
}

func NewQueue(rng Rand) *Queue {
	return &Queue{rng: rng}
}

// Reset invalidates the pending order, e.g. after the content list changed.
func (q *Queue) Reset(n int) {
	q.order = nil
	q.size = n
}

// Len is the number of indices left before the next regeneration.
func (q *Queue) Len() int {
	return len(q.order)
}

// Pending returns a copy of the remaining order.
func (q *Queue) Pending() []int {
	return append([]int(nil), q.order...)
}

// Next pops the next index, never returning current when size > 1.
func (q *Queue) Next(current int) int {
	if q.size <= 0 {
		return 0
	}
	if len(q.order) == 1 && q.order[0] == current && q.size > 1 {
		q.order = nil
	}
	if len(q.order) == 0 {
		q.order = Shuffle(q.size, current, q.rng)
	} else if q.order[0] == current && len(q.order) > 1 {
		q.order = append(q.order[1:], q.order[0])
	}
	next := q.order[0]
	q.order = q.order[1:]
	return next
}
