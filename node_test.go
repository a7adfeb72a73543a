// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package memtrace

import "testing"

func TestArenaAddLeaf(t *testing.T) {
	t.Parallel()

	a := newArena()
	arr := []Symbol{10, 20, 30}

	leaf := a.addLeaf(rootIndex, arr, 0)
	ln := a.at(leaf)

	if ln.edge.length != 3 {
		t.Fatalf("leaf edge length = %d, want 3", ln.edge.length)
	}
	if ln.depth != 3 {
		t.Fatalf("leaf depth = %d, want 3", ln.depth)
	}
	if ln.parent != rootIndex {
		t.Fatalf("leaf parent = %d, want rootIndex", ln.parent)
	}

	got, ok := a.findChild(rootIndex, Symbol(10))
	if !ok || got != leaf {
		t.Fatalf("findChild(root, 10) = (%d, %v), want (%d, true)", got, ok, leaf)
	}
}

func TestArenaSplitEdge(t *testing.T) {
	t.Parallel()

	a := newArena()
	arr := []Symbol{1, 2, 3, 4}
	leaf := a.addLeaf(rootIndex, arr, 0)

	mid := a.splitEdge(rootIndex, leaf, 2)
	mn := a.at(mid)
	ln := a.at(leaf)

	if mn.edge.length != 2 {
		t.Fatalf("mid edge length = %d, want 2", mn.edge.length)
	}
	if mn.depth != 2 {
		t.Fatalf("mid depth = %d, want 2", mn.depth)
	}
	if ln.parent != mid {
		t.Fatalf("leaf parent after split = %d, want mid %d", ln.parent, mid)
	}
	if ln.edge.length != 2 || ln.edge.at(0) != Symbol(3) {
		t.Fatalf("leaf edge after split = %+v, want start at symbol 3, length 2", ln.edge)
	}

	got, ok := a.findChild(rootIndex, Symbol(1))
	if !ok || got != mid {
		t.Fatalf("findChild(root, 1) after split = (%d, %v), want (%d, true)", got, ok, mid)
	}
}

func TestArenaMergeChild(t *testing.T) {
	t.Parallel()

	a := newArena()
	arr := []Symbol{1, 2, 3, 4}
	leaf := a.addLeaf(rootIndex, arr, 0)
	mid := a.splitEdge(rootIndex, leaf, 2)

	// mid has exactly one child (leaf); merging folds leaf's edge back
	// together and mid disappears.
	merged := a.mergeChild(mid, rootIndex)
	if merged != leaf {
		t.Fatalf("mergeChild returned %d, want leaf %d", merged, leaf)
	}

	mn := a.at(leaf)
	if mn.edge.length != 4 {
		t.Fatalf("merged edge length = %d, want 4", mn.edge.length)
	}
	for i, want := range []Symbol{1, 2, 3, 4} {
		if mn.edge.at(i) != want {
			t.Fatalf("merged edge[%d] = %v, want %v", i, mn.edge.at(i), want)
		}
	}
	if mn.parent != rootIndex {
		t.Fatalf("merged node parent = %d, want rootIndex", mn.parent)
	}

	if _, ok := a.findChild(rootIndex, Symbol(1)); !ok {
		t.Fatalf("root lost its child after merge")
	}
}

func TestArenaSetSuffixLinkRefcount(t *testing.T) {
	t.Parallel()

	a := newArena()
	arr := []Symbol{1, 2}
	x := a.addLeaf(rootIndex, arr, 0)
	y := a.addLeaf(rootIndex, []Symbol{3, 4}, 0)

	a.setSuffixLink(x, y)
	if a.at(y).refcount != 2 {
		t.Fatalf("target refcount = %d, want 2 after one suffix link", a.at(y).refcount)
	}

	a.setSuffixLink(x, rootIndex)
	if a.at(y).refcount != 0 {
		t.Fatalf("old target refcount = %d, want 0 after relink", a.at(y).refcount)
	}

	a.clearSuffixLink(x)
	if a.at(x).suffixLink != dummyIndex {
		t.Fatalf("suffix link not cleared")
	}
}

func TestArenaGetChildPanicsOnMiss(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("getChild on missing key did not panic")
		}
	}()

	a := newArena()
	a.getChild(rootIndex, Symbol(99))
}
