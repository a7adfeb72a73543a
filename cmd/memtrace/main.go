// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Command memtrace reads an allocation trace file and reports the
// backtrace suffixes accounting for more than a chosen fraction of
// total sampled weight.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/jonahbeckford/memtrace"
	"github.com/jonahbeckford/memtrace/trace"
)

const usage = "Usage: memtrace <trace-file> [<frequency> <error>]"

func main() {
	log.SetFlags(0)

	tracePath, frequency, errorBound, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(tracePath, frequency, errorBound, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func parseArgs(args []string) (tracePath string, frequency, errorBound float64, err error) {
	frequency, errorBound = 0.03, 0.01

	switch len(args) {
	case 1:
		tracePath = args[0]
	case 3:
		tracePath = args[0]
		if frequency, err = strconv.ParseFloat(args[1], 64); err != nil {
			return "", 0, 0, fmt.Errorf("invalid frequency %q: %w", args[1], err)
		}
		if errorBound, err = strconv.ParseFloat(args[2], 64); err != nil {
			return "", 0, 0, fmt.Errorf("invalid error %q: %w", args[2], err)
		}
	default:
		return "", 0, 0, fmt.Errorf("expected 1 or 3 arguments, got %d", len(args))
	}

	return tracePath, frequency, errorBound, nil
}

func run(tracePath string, frequency, errorBound float64, w io.Writer) error {
	f, err := os.Open(tracePath)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	engine := memtrace.Create(errorBound)
	reader := trace.NewReader(f)

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read trace: %w", err)
		}
		engine.Insert(rec.CommonPrefix, rec.Extension, rec.NSamples)
	}

	results, grandTotal := engine.Output(frequency)

	reporter := trace.NewReporter(trace.Metadata{
		Executable: tracePath,
		Pid:        os.Getpid(),
		SampleRate: 1,
		WordSize:   8,
	}, nil)

	return reporter.Fprint(w, results, grandTotal)
}
