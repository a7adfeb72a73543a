// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package trace

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/jonahbeckford/memtrace"
)

func writeAlloc(buf *bytes.Buffer, nsamples uint64, codes []uint64) {
	buf.WriteByte(tagAlloc)
	binary.Write(buf, binary.BigEndian, nsamples)
	binary.Write(buf, binary.BigEndian, uint32(len(codes)))
	for _, c := range codes {
		binary.Write(buf, binary.BigEndian, c)
	}
}

func writeIgnored(buf *bytes.Buffer, tag byte, id uint64) {
	buf.WriteByte(tag)
	binary.Write(buf, binary.BigEndian, id)
}

func TestReaderFirstRecordHasZeroCommonPrefix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeAlloc(&buf, 5, []uint64{1, 2, 3})

	r := NewReader(&buf)
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.CommonPrefix != 0 {
		t.Fatalf("CommonPrefix = %d, want 0", rec.CommonPrefix)
	}
	if rec.NSamples != 5 {
		t.Fatalf("NSamples = %d, want 5", rec.NSamples)
	}
	if len(rec.Extension) != 4 { // 3 frames + synthesized terminal
		t.Fatalf("Extension length = %d, want 4", len(rec.Extension))
	}
	for i, want := range []memtrace.Symbol{1, 2, 3} {
		if rec.Extension[i] != want {
			t.Errorf("Extension[%d] = %v, want %v", i, rec.Extension[i], want)
		}
	}
}

func TestReaderComputesCommonPrefixAcrossRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeAlloc(&buf, 1, []uint64{1, 2, 3})
	writeAlloc(&buf, 1, []uint64{1, 2, 9})

	r := NewReader(&buf)
	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if rec.CommonPrefix != 2 {
		t.Fatalf("CommonPrefix = %d, want 2", rec.CommonPrefix)
	}
	if len(rec.Extension) != 2 { // [9, terminal]
		t.Fatalf("Extension length = %d, want 2", len(rec.Extension))
	}
	if rec.Extension[0] != memtrace.Symbol(9) {
		t.Fatalf("Extension[0] = %v, want 9", rec.Extension[0])
	}
}

func TestReaderSkipsIgnoredEvents(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeIgnored(&buf, tagPromote, 42)
	writeIgnored(&buf, tagCollect, 43)
	writeAlloc(&buf, 2, []uint64{7})

	r := NewReader(&buf)
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.NSamples != 2 {
		t.Fatalf("NSamples = %d, want 2 (ignored events should not surface)", rec.NSamples)
	}
}

func TestReaderReturnsEOF(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeAlloc(&buf, 1, []uint64{1})

	r := NewReader(&buf)
	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("second Next error = %v, want io.EOF", err)
	}
}

func TestReaderTerminalSymbolsAreDistinct(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeAlloc(&buf, 1, []uint64{1, 2})
	writeAlloc(&buf, 1, []uint64{1, 2})

	r := NewReader(&buf)
	rec1, err := r.Next()
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	rec2, err := r.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}

	term1 := rec1.Backtrace[len(rec1.Backtrace)-1]
	term2 := rec2.Backtrace[len(rec2.Backtrace)-1]
	if term1 == term2 {
		t.Fatalf("synthesized terminals collided: %v == %v", term1, term2)
	}
}
