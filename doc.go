// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package memtrace maintains an approximate, bounded-memory count of
// the most frequent backtrace substrings seen in a long-running
// stream of allocation events.
//
// Backtraces are inserted incrementally as (commonPrefix, extension)
// pairs against the previously inserted backtrace, avoiding the cost
// of ever materializing a full call stack array. Internally they are
// held in a generalized suffix tree built with Ukkonen's online
// construction algorithm, so that any two backtraces sharing a suffix
// share tree structure.
//
// Exact per-backtrace counts are not kept. Instead, a lossy-counting
// scheme bounds memory to roughly 1/error nodes per distinct prefix
// length class, periodically squashing backtraces whose count plus
// error bound does not exceed the current bucket number and folding
// the pruned weight into a conservative upper bound carried by their
// nearest surviving ancestor.
//
// Engine is the entry point: Create an Engine with the desired error
// bound, call Insert for every observed backtrace, and call Output to
// retrieve the backtrace substrings whose estimated frequency clears a
// given threshold.
package memtrace
