// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package memtrace

import "github.com/jonahbeckford/memtrace/internal/depthset"

// leafQueue is a depth-indexed set of doubly linked lists of every
// node that currently carries a count datum. Order within a depth is
// insertion order; compression walks depths from deepest to
// shallowest so that, by the time a node is examined, every node
// below it has already been resolved.
type leafQueue struct {
	buckets []queueBucket
	active  depthset.Set
}

type queueBucket struct {
	head, tail nodeIndex
}

func newLeafQueue() *leafQueue {
	return &leafQueue{}
}

func (q *leafQueue) ensureDepth(depth int) {
	for len(q.buckets) <= depth {
		q.buckets = append(q.buckets, queueBucket{head: dummyIndex, tail: dummyIndex})
	}
}

// push appends n (a node now carrying a count) to the back of its
// depth's list.
func (q *leafQueue) push(a *arena, n nodeIndex, depth int) {
	q.ensureDepth(depth)
	b := &q.buckets[depth]
	nn := a.at(n)
	nn.queuePrev = b.tail
	nn.queueNext = dummyIndex

	if b.tail == dummyIndex {
		b.head = n
	} else {
		a.at(b.tail).queueNext = n
	}
	b.tail = n
	q.active.Mark(depth)
}

// remove unlinks n from its depth's list, using n's stored queuePrev
// and queueNext to splice the gap. Safe to call mid-walk: see
// iterDeepToShallow, which captures a node's next pointer before
// invoking the callback that may remove it.
func (q *leafQueue) remove(a *arena, n nodeIndex, depth int) {
	nn := a.at(n)
	if nn.queuePrev != dummyIndex {
		a.at(nn.queuePrev).queueNext = nn.queueNext
	} else {
		q.buckets[depth].head = nn.queueNext
	}
	if nn.queueNext != dummyIndex {
		a.at(nn.queueNext).queuePrev = nn.queuePrev
	} else {
		q.buckets[depth].tail = nn.queuePrev
	}
	nn.queuePrev = dummyIndex
	nn.queueNext = dummyIndex

	if q.buckets[depth].head == dummyIndex {
		q.active.Unmark(depth)
	}
}

// iterDeepToShallow calls visit for every queued node, deepest depth
// first, in insertion order within a depth. visit may remove the
// current cell (squash it) — the next pointer is read before the
// callback runs, so removal of the current cell never disturbs the
// walk.
func (q *leafQueue) iterDeepToShallow(a *arena, visit func(n nodeIndex, depth int)) {
	for _, depth := range q.active.DepthsDeepToShallow() {
		n := q.buckets[depth].head
		for n != dummyIndex {
			next := a.at(n).queueNext
			visit(n, depth)
			n = next
		}
	}
}
