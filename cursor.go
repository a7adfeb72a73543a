// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package memtrace

// cursor denotes a position in the tree as (parent, child, length).
// length == 0 means the cursor sits exactly at the node named by
// parent; length > 0 means it sits length symbols into the edge from
// parent to child.
//
// Every cursor-moving method below takes the cursor to operate on
// explicitly: the engine keeps two of them live at once during
// construction (the Ukkonen active point, and the scratch cursor
// ensureSuffix uses to locate a suffix-link target), and both share
// the same set of primitives.
type cursor struct {
	parent nodeIndex
	child  nodeIndex
	length int
}

// atNode reports whether c currently sits exactly on a node.
func (c cursor) atNode() bool {
	return c.length == 0
}

// gotoNode positions c exactly at node n.
func (e *Engine) gotoNode(c *cursor, n nodeIndex) {
	*c = cursor{parent: n, child: dummyIndex, length: 0}
}

// snapDown normalizes c: if it has consumed the whole of the current
// edge, it becomes "at child" rather than "at the end of
// parent->child".
func (e *Engine) snapDown(c *cursor) {
	if c.length > 0 && c.length == e.tree.at(c.child).edge.length {
		e.gotoNode(c, c.child)
	}
}

// retract moves c distance symbols shallower, ascending through
// parents as needed.
func (e *Engine) retract(c *cursor, distance int) {
	remaining := distance

	if c.length > 0 {
		if remaining < c.length {
			c.length -= remaining
			return
		}
		remaining -= c.length
		c.child = dummyIndex
		c.length = 0
	}

	node := c.parent
	for remaining > 0 {
		if node == rootIndex {
			break
		}
		nn := e.tree.at(node)
		p := nn.parent
		edgeLen := nn.edge.length

		switch {
		case remaining < edgeLen:
			*c = cursor{parent: p, child: node, length: edgeLen - remaining}
			return
		case remaining == edgeLen:
			node = p
			remaining = 0
		default:
			remaining -= edgeLen
			node = p
		}
	}

	e.gotoNode(c, node)
}

// scanSymbol attempts to extend c by one symbol. On success it
// advances c (possibly snapping onto the child node if the edge is
// now fully traversed) and returns true; on failure c is left
// untouched.
func (e *Engine) scanSymbol(c *cursor, sym Symbol) bool {
	if c.atNode() {
		child, ok := e.tree.findChild(c.parent, sym)
		if !ok {
			return false
		}
		c.child = child
		c.length = 1
		e.snapDown(c)
		return true
	}

	if e.tree.at(c.child).edge.at(c.length) != sym {
		return false
	}
	c.length++
	e.snapDown(c)
	return true
}

// splitAt ensures c lies exactly on a node, splitting the current
// edge if necessary, and returns that node.
func (e *Engine) splitAt(c *cursor) nodeIndex {
	if c.atNode() {
		return c.parent
	}
	mid := e.tree.splitEdge(c.parent, c.child, c.length)
	e.gotoNode(c, mid)
	return mid
}

// gotoSuffix positions c at the node representing n's label with its
// first symbol removed, using n's suffix link when present, or
// recursing to parent(n) and rescanning the residual edge label
// otherwise. Fast rescans are safe here because every intermediate
// node on the path is guaranteed to already exist during Ukkonen
// construction.
func (e *Engine) gotoSuffix(c *cursor, n nodeIndex) {
	nn := e.tree.at(n)

	if nn.suffixLink != dummyIndex {
		e.gotoNode(c, nn.suffixLink)
		return
	}

	if n == rootIndex {
		e.gotoNode(c, rootIndex)
		return
	}

	parent := nn.parent
	e.gotoSuffix(c, parent)

	start := 0
	if parent == rootIndex {
		start = 1
	}
	for i := start; i < nn.edge.length; i++ {
		if !e.scanSymbol(c, nn.edge.at(i)) {
			panic("memtrace: gotoSuffix: broken rescan invariant")
		}
	}
}

// ensureSuffix guarantees that n has a valid suffix link, recursively
// fixing up ancestors first if they are also missing theirs, and
// splitting an edge to materialize the target node when the suffix
// position falls mid-edge. It uses a scratch cursor of its own so it
// never disturbs the engine's active point.
func (e *Engine) ensureSuffix(n nodeIndex) {
	if n == rootIndex {
		return
	}
	nn := e.tree.at(n)
	if nn.suffixLink != dummyIndex {
		return
	}

	parent := nn.parent
	if parent != rootIndex && e.tree.at(parent).suffixLink == dummyIndex {
		e.ensureSuffix(parent)
	}

	var scratch cursor
	e.gotoSuffix(&scratch, n)
	target := e.splitAt(&scratch)
	e.tree.setSuffixLink(n, target)
}
