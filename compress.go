// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package memtrace

// compress runs the lossy-counting squash pass at a bucket boundary.
// It walks every node still carrying a count, deepest depth first, and
// squashes any whose true count cannot possibly exceed currentBucket
// once its accumulated error bound is taken into account.
func (e *Engine) compress() {
	e.queue.iterDeepToShallow(e.tree, func(n nodeIndex, depth int) {
		nn := e.tree.at(n)
		upperBound := nn.count + nn.maxEdgeSquashed

		if upperBound > e.currentBucket {
			return
		}

		e.squash(n, nn.count, upperBound)
	})
}

// squash removes v's count datum and folds its pruned upper bound into
// the surrounding structure: v's own incoming-edge bound, and its
// parent's max-child bound so a future sibling attached under that
// parent starts out just as conservative.
//
// Dropping v's count does not make its weight vanish: the real mass
// still belongs to every suffix of the string v represents, so it is
// transferred along suffix links exactly as the descendant-count pass
// in Output does it, mirrored in reverse — added to v's parent and to
// v's own suffix-link target, and subtracted from the parent's suffix
// link (the node that would otherwise double-count it once both the
// parent and v's suffix target claim it).
//
// If removing the count leaves v structurally vestigial (no children,
// no incoming suffix link left — refcount 0) it is unlinked from the
// tree outright; a lone surviving child (refcount 1) is merged into v's
// place instead. Either way v's own outgoing suffix link is cleared.
// When v is unlinked outright, its tree parent is checked the same way,
// and if v's suffix link was the last thing keeping its target alive,
// the target is recursively squashed (if it still carries a count whose
// bound does not exceed currentBucket) or cleaned up the same way.
func (e *Engine) squash(v nodeIndex, count, upperBound int64) {
	e.removeCount(v)

	if vn := e.tree.at(v); vn.maxEdgeSquashed < upperBound {
		vn.maxEdgeSquashed = upperBound
	}
	if v == rootIndex {
		return
	}

	p := e.tree.at(v).parent
	if pn := e.tree.at(p); pn.maxChildSquashed < upperBound {
		pn.maxChildSquashed = upperBound
	}

	if p != rootIndex {
		e.ensureSuffix(p)
		if pSuffix := e.tree.at(p).suffixLink; pSuffix != rootIndex {
			e.addToCount(pSuffix, -count)
		}
		e.addToCount(p, count)
	}

	e.ensureSuffix(v)
	vSuffix := e.tree.at(v).suffixLink
	if vSuffix != rootIndex {
		e.addToCount(vSuffix, count)
	}

	switch e.tree.at(v).refcount {
	case 0:
		e.tree.removeChild(p, v)
		e.tree.clearSuffixLink(v)
		e.tree.freeNode(v)
		e.collapseVestigial(p, upperBound)
		e.cascadeSuffixOrphan(vSuffix)
	case 1:
		if e.tree.at(v).firstChild != dummyIndex {
			e.tree.clearSuffixLink(v)
			merged := e.tree.mergeChild(v, p)
			if mn := e.tree.at(merged); mn.maxEdgeSquashed < upperBound {
				mn.maxEdgeSquashed = upperBound
			}
		}
	}
}

// cascadeSuffixOrphan runs after v's outgoing suffix link to target has
// been cleared, which just dropped target's incoming-suffix share of
// its refcount. If target has no other reason to exist any more, it
// either gets squashed too (when it still carries a count whose bound
// does not exceed currentBucket) or cleaned up the same way an
// ordinary vestigial node would be (when it carries no count at all,
// which is the common case: a node's own refcount can only reach zero
// while it still has a count if that count is removed in the same
// breath, and squash already did that above for v itself).
func (e *Engine) cascadeSuffixOrphan(target nodeIndex) {
	if target == dummyIndex || target == rootIndex {
		return
	}

	tn := e.tree.at(target)
	if tn.refcount != 0 {
		return
	}

	if tn.hasCount {
		upperBound := tn.count + tn.maxEdgeSquashed
		if upperBound <= e.currentBucket {
			e.squash(target, tn.count, upperBound)
		}
		return
	}

	e.collapseVestigial(target, tn.maxEdgeSquashed)
}

// collapseVestigial checks whether n has become structurally vestigial
// (no children, no incoming suffix link, no count — refcount 0) or a
// mere pass-through (exactly one child and nothing else — refcount 1)
// and, if so, removes or merges it, propagating the same check up the
// ancestor chain as long as it keeps exposing further vestigial nodes.
// bound is folded into each ancestor's maxChildSquashed along the way.
func (e *Engine) collapseVestigial(n nodeIndex, bound int64) {
	for n != rootIndex {
		nn := e.tree.at(n)
		parent := nn.parent

		pn := e.tree.at(parent)
		if pn.maxChildSquashed < bound {
			pn.maxChildSquashed = bound
		}

		switch nn.refcount {
		case 0:
			e.tree.removeChild(parent, n)
			e.tree.clearSuffixLink(n)
			e.tree.freeNode(n)
			n = parent
			bound = pn.maxChildSquashed
			continue
		case 1:
			if nn.firstChild == dummyIndex {
				// a lone incoming suffix link with no count and no
				// children: nothing to merge, nothing to free, and
				// the chain stops here since the link must still
				// resolve somewhere.
				return
			}
			e.tree.clearSuffixLink(n)
			merged := e.tree.mergeChild(n, parent)
			if e.tree.at(merged).maxEdgeSquashed < bound {
				e.tree.at(merged).maxEdgeSquashed = bound
			}
			return
		default:
			return
		}
	}
}
