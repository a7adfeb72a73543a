// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package trace

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jonahbeckford/memtrace"
)

// Frame is one resolved call-site location: a location code maps to a
// list of these (inlining can attribute one code to several source
// frames), innermost first.
type Frame struct {
	Filename  string `json:"filename"`
	Line      int    `json:"line"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	Defname   string `json:"defname"`
}

// Resolver maps location codes to resolved frames. It is a thin
// collaborator, not a symbolizer: it never reads DWARF or other debug
// info itself, that obligation lies outside the core and its
// collaborators, it only looks up a table built elsewhere.
type Resolver struct {
	frames map[memtrace.Symbol][]Frame
}

// NewResolver wraps a prebuilt code->frames table.
func NewResolver(table map[memtrace.Symbol][]Frame) *Resolver {
	return &Resolver{frames: table}
}

// Resolve returns the frames attributed to sym, innermost first, and
// whether sym was present in the table at all.
func (res *Resolver) Resolve(sym memtrace.Symbol) ([]Frame, bool) {
	frames, ok := res.frames[sym]
	return frames, ok
}

// symbolTableEntry is the on-disk shape of one resolver table row:
// JSON object keys cannot be arbitrary integers portably, so the code
// is carried as a field rather than as the map key itself.
type symbolTableEntry struct {
	Code   uint64  `json:"code"`
	Frames []Frame `json:"frames"`
}

// LoadResolverJSON reads a JSON array of {code, frames} entries — an
// order-preserving list rather than a JSON object keyed by a
// non-string type — and builds a Resolver from it.
func LoadResolverJSON(r io.Reader) (*Resolver, error) {
	var entries []symbolTableEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("trace: decode symbol table: %w", err)
	}

	table := make(map[memtrace.Symbol][]Frame, len(entries))
	for _, e := range entries {
		table[memtrace.Symbol(e.Code)] = e.Frames
	}

	return NewResolver(table), nil
}
