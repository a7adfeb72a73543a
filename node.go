// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package memtrace

// nodeIndex addresses a treeNode inside an arena. The tree is cyclic
// (parent/child, suffix links, leaf-queue membership) so it is held in
// a slice with stable integer indices rather than as language-managed
// pointers; dummyIndex is the sentinel for "no such node".
type nodeIndex int32

const (
	dummyIndex nodeIndex = -1
	rootIndex  nodeIndex = 0
)

// edgeLabel is the symbol sequence on the incoming edge of a node,
// represented as a slice of a possibly-shared backing array plus a
// start offset and length, with the first symbol cached implicitly as
// arr[start] for fast child dispatch.
type edgeLabel struct {
	arr    []Symbol
	start  int
	length int
}

// key returns the first symbol of the label, used to dispatch among a
// node's children.
func (e edgeLabel) key() Symbol {
	return e.arr[e.start]
}

// at returns the i-th symbol of the label.
func (e edgeLabel) at(i int) Symbol {
	return e.arr[e.start+i]
}

// symbols returns the label's symbols as a slice view.
func (e edgeLabel) symbols() []Symbol {
	return e.arr[e.start : e.start+e.length]
}

// treeNode is a vertex of the suffix tree. A non-root node's refcount
// tracks 2*(incoming suffix links) + 2*(1 if it carries a count) +
// (number of children); it is the sole signal used to detect when a
// node becomes eligible for deletion or merging during compression.
type treeNode struct {
	edge  edgeLabel
	depth int // length of the path label from root to this node

	parent      nodeIndex
	suffixLink  nodeIndex
	firstChild  nodeIndex
	nextSibling nodeIndex

	refcount int

	hasCount  bool
	count     int64
	queuePrev nodeIndex
	queueNext nodeIndex

	maxEdgeSquashed  int64
	maxChildSquashed int64

	// output is the transient accumulator used only during Output();
	// it is meaningless between calls.
	outTotal      int64
	outHeavyTotal int64
}

// arena owns every treeNode. Index 0 is permanently reserved for the
// root, which is never freed, never merged and never carries a count.
type arena struct {
	nodes        []treeNode
	free         []nodeIndex
	rootChildren map[Symbol]nodeIndex
}

func newArena() *arena {
	a := &arena{rootChildren: make(map[Symbol]nodeIndex)}
	a.nodes = append(a.nodes, blankNode())
	return a
}

func blankNode() treeNode {
	return treeNode{
		parent:      dummyIndex,
		suffixLink:  dummyIndex,
		firstChild:  dummyIndex,
		nextSibling: dummyIndex,
		queuePrev:   dummyIndex,
		queueNext:   dummyIndex,
	}
}

func (a *arena) at(i nodeIndex) *treeNode {
	return &a.nodes[i]
}

// allocNode returns a fresh, zeroed node index, reusing a freed slot
// when available.
func (a *arena) allocNode() nodeIndex {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.nodes[idx] = blankNode()
		return idx
	}
	a.nodes = append(a.nodes, blankNode())
	return nodeIndex(len(a.nodes) - 1)
}

func (a *arena) freeNode(i nodeIndex) {
	if i == rootIndex {
		panic("memtrace: attempted to free the root node")
	}
	a.free = append(a.free, i)
}

// findChild dispatches by first symbol: a hash-map lookup at the root,
// a linear scan of the sibling list everywhere else. Runtime alphabet
// fan-out at the root can be large (one call-site code per
// first-seen location); interior fan-out is small, so a sibling list
// is the cheaper choice there.
func (a *arena) findChild(parent nodeIndex, key Symbol) (nodeIndex, bool) {
	if parent == rootIndex {
		c, ok := a.rootChildren[key]
		return c, ok
	}

	for c := a.at(parent).firstChild; c != dummyIndex; c = a.at(c).nextSibling {
		if a.at(c).edge.key() == key {
			return c, true
		}
	}
	return dummyIndex, false
}

// getChild is findChild but panics if the child is absent: callers use
// it only where the child's existence is a construction invariant.
func (a *arena) getChild(parent nodeIndex, key Symbol) nodeIndex {
	c, ok := a.findChild(parent, key)
	if !ok {
		panic("memtrace: getChild: no such child, broken invariant")
	}
	return c
}

// linkChild attaches child under parent with no assumption about
// prior occupancy at that key; used only when the key slot is known
// to be empty (addLeaf's fresh-leaf case).
func (a *arena) linkChild(parent, child nodeIndex) {
	key := a.at(child).edge.key()
	if parent == rootIndex {
		a.rootChildren[key] = child
		return
	}
	pn := a.at(parent)
	a.at(child).nextSibling = pn.firstChild
	pn.firstChild = child
	pn.refcount++
}

// replaceChild swaps oldChild for newChild in parent's child set
// without touching parent's refcount (the number of children did not
// change, only which node occupies the slot).
func (a *arena) replaceChild(parent, oldChild, newChild nodeIndex) {
	key := a.at(oldChild).edge.key()
	if parent == rootIndex {
		a.rootChildren[key] = newChild
		return
	}

	pn := a.at(parent)
	if pn.firstChild == oldChild {
		pn.firstChild = newChild
		a.at(newChild).nextSibling = a.at(oldChild).nextSibling
		return
	}

	prev := pn.firstChild
	for {
		n := a.at(prev)
		if n.nextSibling == oldChild {
			n.nextSibling = newChild
			a.at(newChild).nextSibling = a.at(oldChild).nextSibling
			return
		}
		prev = n.nextSibling
		if prev == dummyIndex {
			panic("memtrace: replaceChild: oldChild not found among siblings")
		}
	}
}

// removeChild unlinks child from parent's child set and decrements
// parent's refcount, mirroring the structural half of a child-count
// contributor disappearing.
func (a *arena) removeChild(parent, child nodeIndex) {
	key := a.at(child).edge.key()
	if parent == rootIndex {
		delete(a.rootChildren, key)
		return
	}

	pn := a.at(parent)
	if pn.firstChild == child {
		pn.firstChild = a.at(child).nextSibling
		pn.refcount--
		return
	}

	prev := pn.firstChild
	for {
		n := a.at(prev)
		if n.nextSibling == child {
			n.nextSibling = a.at(child).nextSibling
			pn.refcount--
			return
		}
		prev = n.nextSibling
		if prev == dummyIndex {
			panic("memtrace: removeChild: child not found among siblings")
		}
	}
}

// addLeaf creates a leaf whose edge is arr[index:], attaches it to
// parent, and initializes both squashed-bound fields from parent's
// maxChildSquashed so a fresh leaf starts out as conservative as
// anything already pruned below its parent.
func (a *arena) addLeaf(parent nodeIndex, arr []Symbol, index int) nodeIndex {
	leaf := a.allocNode()
	ln := a.at(leaf)
	pn := a.at(parent)

	ln.edge = edgeLabel{arr: arr, start: index, length: len(arr) - index}
	ln.parent = parent
	ln.depth = pn.depth + ln.edge.length
	ln.maxEdgeSquashed = pn.maxChildSquashed
	ln.maxChildSquashed = pn.maxChildSquashed

	a.linkChild(parent, leaf)
	return leaf
}

// splitEdge inserts a new interior node on the edge parent->child so
// that the new node's label is the first length symbols of child's
// edge; child keeps the tail of its edge and becomes the new node's
// only child. A length of 0 is a no-op returning parent unchanged.
func (a *arena) splitEdge(parent, child nodeIndex, length int) nodeIndex {
	if length == 0 {
		return parent
	}

	mid := a.allocNode()
	mn := a.at(mid)
	cn := a.at(child)
	mn.edge = edgeLabel{arr: cn.edge.arr, start: cn.edge.start, length: length}
	mn.parent = parent
	mn.depth = a.at(parent).depth + length
	mn.maxEdgeSquashed = cn.maxEdgeSquashed
	mn.maxChildSquashed = cn.maxEdgeSquashed
	mn.refcount = 1 // one child (c) so far

	a.replaceChild(parent, child, mid)

	cn.edge.start += length
	cn.edge.length -= length
	cn.parent = mid
	cn.nextSibling = dummyIndex
	mn.firstChild = child

	return mid
}

// mergeChild collapses t, which must have exactly one child c and
// carry neither a count nor an incoming suffix link, by concatenating
// t's edge onto the front of c's and replacing t with c in parent's
// child set. t's backing array is reused in place when it has spare
// capacity; otherwise a fresh concatenation is allocated.
func (a *arena) mergeChild(t, parent nodeIndex) nodeIndex {
	tn := a.at(t)
	c := tn.firstChild
	cn := a.at(c)

	total := tn.edge.length + cn.edge.length

	var merged edgeLabel
	if cap(tn.edge.arr)-tn.edge.start >= total {
		dst := tn.edge.arr[tn.edge.start : tn.edge.start+total]
		copy(dst[tn.edge.length:], cn.edge.symbols())
		merged = edgeLabel{arr: tn.edge.arr, start: tn.edge.start, length: total}
	} else {
		buf := make([]Symbol, total)
		copy(buf, tn.edge.symbols())
		copy(buf[tn.edge.length:], cn.edge.symbols())
		merged = edgeLabel{arr: buf, start: 0, length: total}
	}

	cn.edge = merged
	cn.parent = parent
	if cn.maxEdgeSquashed < tn.maxEdgeSquashed {
		cn.maxEdgeSquashed = tn.maxEdgeSquashed
	}

	a.replaceChild(parent, t, c)
	a.freeNode(t)

	return c
}

// setSuffixLink points x's suffix link at target, maintaining target's
// (and the old target's) refcount per the 2*(incoming suffix links)
// term of the invariant.
func (a *arena) setSuffixLink(x, target nodeIndex) {
	xn := a.at(x)
	if xn.suffixLink == target {
		return
	}
	if xn.suffixLink != dummyIndex {
		a.at(xn.suffixLink).refcount -= 2
	}
	xn.suffixLink = target
	if target != dummyIndex {
		a.at(target).refcount += 2
	}
}

// clearSuffixLink drops x's outgoing suffix link, if any.
func (a *arena) clearSuffixLink(x nodeIndex) {
	a.setSuffixLink(x, dummyIndex)
}
