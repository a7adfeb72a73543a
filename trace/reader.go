// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package trace implements the collaborators the core engine expects
// but does not itself provide (see memtrace's top-level doc comment):
// a trace-file reader that turns raw allocation events into the
// (commonPrefix, extension, count) triples Insert wants, a
// location-code resolver, and a byte-size reporter. None of this
// package is part of the core; it exists only to let cmd/memtrace
// drive it against a real trace file.
package trace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jonahbeckford/memtrace"
)

// event tags identify the kind of record on the wire. Only alloc
// records carry a backtrace; promote and collect are emitted by the
// allocator for bookkeeping the core has no use for and are decoded
// only far enough to be skipped.
const (
	tagAlloc   byte = 1
	tagPromote byte = 2
	tagCollect byte = 3
)

// terminalBase marks the high bit of every synthesized terminal
// symbol, keeping it clear of any real location code (Symbol is
// unsigned and location codes in practice occupy the low bits of the
// address space). Insert requires the last symbol of an inserted
// string to be unique to that string and never reused mid-string; the
// trace format does not carry such a symbol on its own, since a raw
// backtrace is the same call chain every time a given site allocates,
// so the reader manufactures one per record instead.
const terminalBase = uint64(1) << 63

// Record is one alloc event, ready to hand to Engine.Insert.
type Record struct {
	// NSamples is the sample weight recorded by the allocator.
	NSamples int64

	// Backtrace is the complete backtrace for this allocation,
	// innermost frame first, including the synthesized terminal
	// symbol. It is provided for resolver/report use; Insert itself
	// only needs CommonPrefix and Extension.
	Backtrace []memtrace.Symbol

	// CommonPrefix is the number of leading symbols this backtrace
	// shares with the previous record's Backtrace, validated by the
	// reader as Insert's contract requires.
	CommonPrefix int

	// Extension is Backtrace[CommonPrefix:], including the terminal.
	Extension []memtrace.Symbol
}

// Reader decodes a length-prefixed binary event stream into Records,
// computing each record's CommonPrefix against the previously emitted
// backtrace via a SeenSet, the way any caller feeding Insert a stream
// of full backtraces is expected to.
type Reader struct {
	r    *bufio.Reader
	seen *memtrace.SeenSet

	nextTerminal uint64
}

// NewReader wraps r as a trace event stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:    bufio.NewReader(r),
		seen: memtrace.NewSeenSet(),
	}
}

// Next decodes the next alloc record, skipping over any promote/collect
// events in between. It returns io.EOF once the stream is exhausted.
func (rd *Reader) Next() (Record, error) {
	for {
		tag, err := rd.r.ReadByte()
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, fmt.Errorf("trace: read event tag: %w", err)
		}

		switch tag {
		case tagAlloc:
			return rd.readAlloc()
		case tagPromote, tagCollect:
			if err := rd.skipIgnored(); err != nil {
				return Record{}, err
			}
		default:
			return Record{}, fmt.Errorf("trace: unknown event tag %d", tag)
		}
	}
}

// skipIgnored discards a promote/collect event: an 8-byte object id,
// nothing more. The core never sees these; they exist on the wire only
// because the allocator emits them inline with alloc events.
func (rd *Reader) skipIgnored() error {
	var id uint64
	if err := binary.Read(rd.r, binary.BigEndian, &id); err != nil {
		return fmt.Errorf("trace: read ignored event payload: %w", err)
	}
	return nil
}

func (rd *Reader) readAlloc() (Record, error) {
	var nsamples uint64
	if err := binary.Read(rd.r, binary.BigEndian, &nsamples); err != nil {
		return Record{}, fmt.Errorf("trace: read nsamples: %w", err)
	}

	var length uint32
	if err := binary.Read(rd.r, binary.BigEndian, &length); err != nil {
		return Record{}, fmt.Errorf("trace: read backtrace length: %w", err)
	}

	raw := make([]memtrace.Symbol, length)
	for i := range raw {
		var code uint64
		if err := binary.Read(rd.r, binary.BigEndian, &code); err != nil {
			return Record{}, fmt.Errorf("trace: read frame %d: %w", i, err)
		}
		raw[i] = memtrace.Symbol(code)
	}

	commonPrefix := rd.seen.CommonPrefixLen(raw)
	rd.seen.PopTo(commonPrefix)
	for _, sym := range raw[commonPrefix:] {
		rd.seen.Push(sym)
	}

	terminal := memtrace.Symbol(terminalBase | rd.nextTerminal)
	rd.nextTerminal++

	full := make([]memtrace.Symbol, len(raw)+1)
	copy(full, raw)
	full[len(raw)] = terminal

	extension := make([]memtrace.Symbol, len(full)-commonPrefix)
	copy(extension, full[commonPrefix:])

	return Record{
		NSamples:     int64(nsamples),
		Backtrace:    full,
		CommonPrefix: commonPrefix,
		Extension:    extension,
	}, nil
}
