// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package depthset tracks which depths of a depth-indexed structure are
// currently non-empty, so a caller can walk only the occupied depths
// instead of scanning every possible depth.
//
// It wraps a bitset.BitSet the way a popcount-compressed array keyed
// by presence bit wraps one for its occupied slots: presence is a
// single bit test, and enumerating occupied slots is a handful of
// word-at-a-time rank/next-set operations instead of a linear scan.
package depthset

import "github.com/bits-and-blooms/bitset"

// Set records which non-negative depths are currently active (hold at
// least one element). The zero value is ready to use.
type Set struct {
	bits *bitset.BitSet
}

// Mark records depth as active.
func (s *Set) Mark(depth int) {
	if s.bits == nil {
		s.bits = bitset.New(uint(depth) + 1)
	}
	s.bits.Set(uint(depth))
}

// Unmark records depth as no longer active.
func (s *Set) Unmark(depth int) {
	if s.bits == nil {
		return
	}
	s.bits.Clear(uint(depth))
}

// IsActive reports whether depth currently holds at least one element.
func (s *Set) IsActive(depth int) bool {
	if s.bits == nil {
		return false
	}
	return s.bits.Test(uint(depth))
}

// DepthsDeepToShallow returns every currently active depth, ordered
// from deepest (largest) to shallowest (0). This is the order the
// lossy-counting squash pass must visit depths in, so that a node's
// descendants are always resolved before the node itself is examined.
func (s *Set) DepthsDeepToShallow() []int {
	if s.bits == nil {
		return nil
	}

	out := make([]int, 0, s.bits.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out = append(out, int(i))
	}

	// reverse in place: deepest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out
}
