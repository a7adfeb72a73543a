// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package memtrace

import "math"

// insertMode tracks how the engine should interpret the next call to
// Insert, carried over from the end of the previous one.
type insertMode int

const (
	modeUncompressed insertMode = iota
	modeCompressed
)

// Engine owns the suffix tree, the leaf queue, the active cursor, and
// the lossy-counting bucket state. It is single-threaded and
// not re-entrant: every call must complete before the next begins,
// and the cursor is exclusively engine-owned.
type Engine struct {
	tree  *arena
	queue *leafQueue
	cur   cursor

	bucketSize            int
	currentBucket         int64
	remainingInCurrBucket int

	mode       insertMode
	prevLength int      // valid when mode == modeUncompressed
	prevLabel  []Symbol // valid when mode == modeCompressed

	grandTotal int64
}

// Create builds a new engine. errorBound must be in (0, 1); it
// governs the lossy-counting error bound: bucketSize = ceil(1/error).
func Create(errorBound float64) *Engine {
	if !(errorBound > 0 && errorBound < 1) {
		panic("memtrace: create: error must satisfy 0 < error < 1")
	}

	bucketSize := int(math.Ceil(1 / errorBound))

	e := &Engine{
		tree:                  newArena(),
		queue:                 newLeafQueue(),
		bucketSize:            bucketSize,
		remainingInCurrBucket: bucketSize,
		mode:                  modeCompressed,
	}
	e.gotoNode(&e.cur, rootIndex)
	return e
}

// Insert extends the tree with the string formed by taking
// commonPrefix symbols from the previously inserted string and
// appending extension, then records count additional weight at the
// node representing the resulting complete string.
//
// commonPrefix must not exceed the length of the previously inserted
// string (0 is required, and the only legal value, for the very
// first call). count must be non-negative, and the last symbol of
// every distinct inserted string must be unique to that string (see
// Symbol). Violating either contract is undefined behavior and
// panics here rather than silently clamping or ignoring it.
func (e *Engine) Insert(commonPrefix int, extension []Symbol, count int64) {
	if count < 0 {
		panic("memtrace: insert: count must be non-negative")
	}

	switch e.mode {
	case modeUncompressed:
		if commonPrefix > e.prevLength {
			panic("memtrace: insert: commonPrefix exceeds previously inserted length")
		}
		e.retract(&e.cur, e.prevLength-commonPrefix)
	case modeCompressed:
		if commonPrefix > len(e.prevLabel) {
			panic("memtrace: insert: commonPrefix exceeds previous label length")
		}
		combined := make([]Symbol, 0, commonPrefix+len(extension))
		combined = append(combined, e.prevLabel[:commonPrefix]...)
		combined = append(combined, extension...)
		extension = combined
		e.gotoNode(&e.cur, rootIndex)
	}

	dest := e.ukkonenExtend(extension)
	e.ensureSuffix(dest)
	e.addToCount(dest, count)
	e.grandTotal += count

	totalLen := e.tree.at(dest).depth

	// The active point the remainder loop leaves behind tracks the
	// shortest still-pending suffix, not the string just inserted.
	// Re-anchor it on dest so the next call's retract (which assumes
	// the cursor sits at depth totalLen, at the end of the string
	// that was just inserted) has a meaningful starting point.
	e.gotoNode(&e.cur, dest)

	e.remainingInCurrBucket--
	if e.remainingInCurrBucket <= 0 {
		e.currentBucket++
		e.remainingInCurrBucket = e.bucketSize

		label := make([]Symbol, totalLen)
		e.collectLabel(dest, label)

		e.gotoNode(&e.cur, rootIndex)
		e.mode = modeCompressed
		e.prevLabel = label

		e.compress()
	} else {
		e.prevLength = totalLen
		e.mode = modeUncompressed
	}
}

// ukkonenExtend runs Ukkonen's online construction for extension,
// starting from the engine's active point e.cur (already positioned
// by the caller at the shared commonPrefix depth), creating leaves
// and interior nodes and wiring suffix links as it goes.
//
// It returns the node representing the complete string that was just
// inserted (root-label-path equal to the full commonPrefix+extension
// string). That node is always the leaf created for the longest
// pending suffix — the suffix starting at position 0 of this call's
// combined string — the first time the active point requires an
// explicit insertion (every later phase, that leaf's edge already
// reaches the true end of extension, by construction, so nothing
// downstream ever needs to touch it again).
func (e *Engine) ukkonenExtend(extension []Symbol) nodeIndex {
	remainder := e.tree.at(e.cur.parent).depth + e.cur.length
	lastInternal := dummyIndex
	dest := dummyIndex

	for i := 0; i < len(extension); i++ {
		remainder++
		lastInternal = dummyIndex

		for remainder > 0 {
			sym := extension[i]

			if e.cur.atNode() {
				child, ok := e.tree.findChild(e.cur.parent, sym)
				if ok {
					e.cur.child = child
					e.cur.length = 1
					e.snapDown(&e.cur)
					if lastInternal != dummyIndex {
						e.tree.setSuffixLink(lastInternal, e.cur.parent)
					}
					break // rule 3: already present, stop this phase group
				}

				// rule 2, no split: new leaf directly under the active node
				leaf := e.tree.addLeaf(e.cur.parent, extension, i)
				if dest == dummyIndex {
					dest = leaf
				}
				if lastInternal != dummyIndex {
					e.tree.setSuffixLink(lastInternal, e.cur.parent)
				}
				lastInternal = dummyIndex
				remainder--

				if e.cur.parent != rootIndex {
					e.ensureSuffix(e.cur.parent)
					e.cur.parent = e.tree.at(e.cur.parent).suffixLink
				}
				continue
			}

			// mid-edge
			if e.tree.at(e.cur.child).edge.at(e.cur.length) == sym {
				e.cur.length++
				if lastInternal != dummyIndex {
					e.tree.setSuffixLink(lastInternal, e.cur.parent)
				}
				e.snapDown(&e.cur)
				break // rule 3
			}

			// rule 2, split required
			hopKey := e.tree.at(e.cur.child).edge.key()
			oldParent := e.cur.parent
			length := e.cur.length

			mid := e.tree.splitEdge(e.cur.parent, e.cur.child, length)
			leaf := e.tree.addLeaf(mid, extension, i)
			if dest == dummyIndex {
				dest = leaf
			}

			if lastInternal != dummyIndex {
				e.tree.setSuffixLink(lastInternal, mid)
			}
			lastInternal = mid
			remainder--

			if oldParent == rootIndex {
				if length == 1 {
					e.cur = cursor{parent: rootIndex, child: dummyIndex, length: 0}
				} else {
					// shift the active edge by one symbol: the symbol
					// now needed is the second symbol of the edge we
					// just matched against, which mid still owns.
					nextKey := e.tree.at(mid).edge.at(1)
					child := e.tree.getChild(rootIndex, nextKey)
					e.cur = cursor{parent: rootIndex, child: child, length: length - 1}
				}
			} else {
				e.ensureSuffix(oldParent)
				newParent := e.tree.at(oldParent).suffixLink
				child := e.tree.getChild(newParent, hopKey)
				e.cur = cursor{parent: newParent, child: child, length: length}
			}
			// walk the shifted active point down past any node it crosses
			off := 0
			if oldParent == rootIndex {
				off = 1
			}
			for e.cur.length > 0 && e.cur.length >= e.tree.at(e.cur.child).edge.length {
				off += e.tree.at(e.cur.child).edge.length
				rest := e.cur.length - e.tree.at(e.cur.child).edge.length
				e.gotoNode(&e.cur, e.cur.child)
				if rest > 0 {
					e.cur = cursor{parent: e.cur.parent, child: e.tree.getChild(e.cur.parent, e.tree.at(mid).edge.at(off)), length: rest}
				}
			}
		}
	}

	if dest != dummyIndex {
		return dest
	}

	// Defensive fallback: every phase matched an existing path (rule
	// 3 all the way through), so the complete string was already
	// present verbatim. The caller's unique-terminator contract makes
	// this unreachable in practice, but the active point is still an
	// accurate position for it if it happens.
	return e.splitAt(&e.cur)
}

// addToCount adds delta to n's count datum, creating one (and
// enqueuing it into the leaf queue at n's depth) if n does not
// already carry one.
func (e *Engine) addToCount(n nodeIndex, delta int64) {
	nn := e.tree.at(n)
	if !nn.hasCount {
		nn.hasCount = true
		nn.count = delta
		nn.refcount += 2
		e.queue.push(e.tree, n, nn.depth)
		return
	}
	nn.count += delta
}

// removeCount drops n's count datum entirely (used by squash).
func (e *Engine) removeCount(n nodeIndex) {
	nn := e.tree.at(n)
	if !nn.hasCount {
		return
	}
	e.queue.remove(e.tree, n, nn.depth)
	nn.hasCount = false
	nn.count = 0
	nn.refcount -= 2
}
