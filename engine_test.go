// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package memtrace

import "testing"

// insertFull tracks the full backtrace externally (as a real caller
// would) and derives the (commonPrefix, extension) pair Insert wants
// from it and the previous full backtrace.
func insertFull(e *Engine, prev, full []Symbol, count int64) []Symbol {
	n := len(prev)
	if len(full) < n {
		n = len(full)
	}
	common := 0
	for common < n && prev[common] == full[common] {
		common++
	}
	e.Insert(common, full[common:], count)
	return full
}

func TestEngineSingleBacktrace(t *testing.T) {
	t.Parallel()

	e := Create(0.1)
	full := []Symbol{1, 2, 3, 9001}
	insertFull(e, nil, full, 5)

	results, total := e.Output(0.01)
	if total != 5 {
		t.Fatalf("grand total = %d, want 5", total)
	}
	if len(results) != 1 {
		t.Fatalf("Output returned %d results, want 1: %+v", len(results), results)
	}
	got := results[0]
	if got.Light != 5 || got.Total != 5 {
		t.Errorf("result = %+v, want Light=Total=5", got)
	}
	if len(got.Label) != len(full) {
		t.Fatalf("label length = %d, want %d", len(got.Label), len(full))
	}
	for i, s := range full {
		if got.Label[i] != s {
			t.Errorf("label[%d] = %v, want %v", i, got.Label[i], s)
		}
	}
}

func TestEngineRepeatedBacktraceAccumulates(t *testing.T) {
	t.Parallel()

	e := Create(0.1)
	full := []Symbol{7, 8, 9, 9002}

	var prev []Symbol
	for i := 0; i < 4; i++ {
		prev = insertFull(e, prev, full, 2)
	}

	results, total := e.Output(0.01)
	if total != 8 {
		t.Fatalf("grand total = %d, want 8", total)
	}
	if len(results) != 1 {
		t.Fatalf("Output returned %d results, want 1: %+v", len(results), results)
	}
	if results[0].Light != 8 {
		t.Errorf("Light = %d, want 8", results[0].Light)
	}
}

func TestEngineSharedPrefixDistinctLeaves(t *testing.T) {
	t.Parallel()

	e := Create(0.1)
	a := []Symbol{1, 2, 3, 9101}
	b := []Symbol{1, 2, 3, 9102}

	prev := insertFull(e, nil, a, 3)
	insertFull(e, prev, b, 4)

	results, total := e.Output(0.01)
	if total != 7 {
		t.Fatalf("grand total = %d, want 7", total)
	}
	if len(results) != 2 {
		t.Fatalf("Output returned %d results, want 2: %+v", len(results), results)
	}

	byLight := map[int64]int{}
	for _, r := range results {
		byLight[r.Light]++
	}
	if byLight[3] != 1 || byLight[4] != 1 {
		t.Fatalf("unexpected light distribution: %+v (results: %+v)", byLight, results)
	}
}

func TestEngineFrequencyThresholdFiltersLightHitters(t *testing.T) {
	t.Parallel()

	e := Create(0.1)
	heavy := []Symbol{1, 2, 3, 9201}
	light := []Symbol{4, 5, 6, 9202}

	prev := insertFull(e, nil, heavy, 100)
	insertFull(e, prev, light, 1)

	results, total := e.Output(0.5)
	if total != 101 {
		t.Fatalf("grand total = %d, want 101", total)
	}
	if len(results) != 1 {
		t.Fatalf("Output(0.5) returned %d results, want 1 (only the heavy hitter): %+v", len(results), results)
	}
	if results[0].Light != 100 {
		t.Errorf("surviving result Light = %d, want 100", results[0].Light)
	}
}

func TestEngineLossyCountingKeepsFrequentBacktrace(t *testing.T) {
	t.Parallel()

	// bucketSize = ceil(1/0.5) = 2, so every other insert triggers a
	// squash pass.
	e := Create(0.5)

	var prev []Symbol
	for i := 0; i < 20; i++ {
		full := []Symbol{Symbol(1000 + i), Symbol(9300 + i)}
		prev = insertFull(e, prev, full, 1)
	}

	heavy := []Symbol{42, 9999}
	for i := 0; i < 50; i++ {
		prev = insertFull(e, prev, heavy, 1)
	}

	results, _ := e.Output(0.2)
	found := false
	for _, r := range results {
		if r.Total >= 50 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the frequent backtrace to survive compression, got %+v", results)
	}
}

func TestEngineCompressionPreservesSharedSuffixWeight(t *testing.T) {
	t.Parallel()

	// bucketSize = ceil(1/0.5) = 2, so the second insert below trips a
	// squash pass while both backtraces' own leaves (count 1 each) sit
	// exactly at the prune threshold, forcing compress to transfer
	// their weight through suffix links rather than drop it.
	e := Create(0.5)

	a := []Symbol{10, 20, 9401} // ..., B, $1
	b := []Symbol{30, 20, 9402} // ..., B, $2

	prev := insertFull(e, nil, a, 1)
	insertFull(e, prev, b, 1)

	results, total := e.Output(0.0)
	if total != 2 {
		t.Fatalf("grand total = %d, want 2", total)
	}

	var shared *HitterResult
	for i := range results {
		if r := &results[i]; len(r.Label) == 1 && r.Label[0] == 20 {
			shared = r
		}
	}
	if shared == nil {
		t.Fatalf("no result reported for the shared suffix [20] (B); results: %+v", results)
	}
	if shared.Total != 2 {
		t.Errorf("shared suffix Total = %d, want 2 (the combined weight of both backtraces)", shared.Total)
	}
}

func TestCreatePanicsOnInvalidErrorBound(t *testing.T) {
	t.Parallel()

	for _, bad := range []float64{0, 1, -0.1, 1.5} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Create(%v) did not panic", bad)
				}
			}()
			Create(bad)
		}()
	}
}

func TestInsertPanicsOnNegativeCount(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("Insert with negative count did not panic")
		}
	}()

	e := Create(0.1)
	e.Insert(0, []Symbol{1, 2}, -1)
}

func TestInsertPanicsOnOversizedCommonPrefix(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("Insert with an oversized commonPrefix did not panic")
		}
	}()

	e := Create(0.1)
	e.Insert(1, []Symbol{1, 2}, 1)
}

func FuzzInsert(f *testing.F) {
	f.Add(uint64(1), 3, 2)
	f.Add(uint64(42), 8, 5)
	f.Add(uint64(0), 1, 1)

	f.Fuzz(func(t *testing.T, seed uint64, n, width int) {
		if n < 1 || n > 200 || width < 1 || width > 8 {
			t.Skip("bounds")
		}

		e := Create(0.1)

		// a small, deterministic pseudo-random generator derived from
		// seed, avoiding math/rand's global state in a fuzz target.
		state := seed | 1

		next := func() uint64 {
			state ^= state << 13
			state ^= state >> 7
			state ^= state << 17
			return state
		}

		var prev []Symbol
		var grand int64
		for i := 0; i < n; i++ {
			length := int(next()%uint64(width)) + 1
			full := make([]Symbol, length+1)
			for j := 0; j < length; j++ {
				full[j] = Symbol(next() % 5)
			}
			full[length] = Symbol(0x8000_0000_0000_0000) | Symbol(i)

			count := int64(next()%3) + 1
			prev = insertFull(e, prev, full, count)
			grand += count
		}

		results, total := e.Output(0.0)
		if total != grand {
			t.Fatalf("grand total = %d, want %d", total, grand)
		}
		var sum int64
		for _, r := range results {
			sum += r.Light
			if r.Light <= 0 {
				t.Fatalf("non-positive Light in result: %+v", r)
			}
		}
	})
}
