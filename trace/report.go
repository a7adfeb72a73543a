// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package trace

import (
	"fmt"
	"io"

	"github.com/jonahbeckford/memtrace"
)

// Metadata carries the per-trace context the reporter needs to turn a
// sample count into a byte estimate: none of it is known to the core,
// which only ever deals in opaque counts.
type Metadata struct {
	Executable string
	Pid        int
	SampleRate float64

	// WordSize is the allocator's word size in bytes. The original
	// profiler's own comment on this value was "FIXME: store this in
	// the trace": it genuinely is not carried in the trace format this
	// package reads, so it stays a reporter-supplied constant rather
	// than something threaded through the core.
	WordSize int64
}

// Reporter renders Engine.Output results against a trace's metadata
// and an optional Resolver for human-readable frame names.
type Reporter struct {
	meta     Metadata
	resolver *Resolver
}

// NewReporter builds a Reporter. resolver may be nil, in which case
// frames are rendered as raw location codes.
func NewReporter(meta Metadata, resolver *Resolver) *Reporter {
	return &Reporter{meta: meta, resolver: resolver}
}

// bytes converts a sample count into an estimated byte total.
func (rep *Reporter) bytes(count int64) float64 {
	if rep.meta.SampleRate == 0 {
		return 0
	}
	return float64(count) / rep.meta.SampleRate * float64(rep.meta.WordSize)
}

// Fprint writes a header line with the grand total, then one line per
// hitter, heaviest first (Output already sorts by descending Light), as
//
//	<light>B .. <upper>B  (total <total>B)  <innermost frame>
func (rep *Reporter) Fprint(w io.Writer, results []memtrace.HitterResult, grandTotal int64) error {
	fmt.Fprintf(w, "%s (pid %d): %d total samples\n", rep.meta.Executable, rep.meta.Pid, grandTotal)

	for _, r := range results {
		line := rep.formatFrame(r.Label)
		_, err := fmt.Fprintf(w, "%12.0fB .. %12.0fB  (total %12.0fB)  %s\n",
			rep.bytes(r.Light), rep.bytes(r.Upper), rep.bytes(r.Total), line)
		if err != nil {
			return fmt.Errorf("trace: write report line: %w", err)
		}
	}

	return nil
}

// formatFrame renders a hitter's label as a source location when a
// resolver is available and knows the innermost (first) symbol,
// falling back to the raw location code otherwise.
func (rep *Reporter) formatFrame(label []memtrace.Symbol) string {
	if len(label) == 0 {
		return "<root>"
	}

	sym := label[0]
	if rep.resolver == nil {
		return sym.String()
	}

	frames, ok := rep.resolver.Resolve(sym)
	if !ok || len(frames) == 0 {
		return sym.String()
	}

	f := frames[0]
	return fmt.Sprintf("%s:%d %s", f.Filename, f.Line, f.Defname)
}
