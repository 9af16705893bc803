// Package chunkfile implements the process driver's input/output plumbing:
// slicing a sender's input file into fixed-size payload chunks up front,
// and truncate-then-append writing of a receiver's output file, per
// spec.md §4.6/§6.
package chunkfile

import (
	"fmt"
	"os"
)

// Chunks reads path fully into memory and slices it into size-byte chunks.
// The final chunk is short whenever len(data) is not a multiple of size —
// this is deliberate, not an edge case to special-case: a short final
// chunk is how the wire protocol marks end-of-stream (spec.md §4.4 step
// 2), so callers must never pad it back up to size.
//
// Reading the whole file into memory before chunking matches
// original_source's open(...).read(), appropriate at the course-project
// scale this protocol targets; it is not meant for multi-gigabyte input.
func Chunks(path string, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunkfile: chunk size must be positive, got %d", size)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chunkfile: %w", err)
	}
	if len(data) == 0 {
		return [][]byte{{}}, nil
	}
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size:size])
		data = data[size:]
	}
	out = append(out, data)
	return out, nil
}

// Appender writes a receiver's reassembled output stream to disk,
// truncating any pre-existing file at open time (spec.md §6: the receiver
// always starts output_file from empty) and appending each delivered
// chunk in the order Write is called — which the receiver only ever does
// in sequence-number order, never out of order.
type Appender struct {
	f *os.File
}

// NewAppender opens path for writing, truncating it if it already exists.
func NewAppender(path string) (*Appender, error) {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("chunkfile: %w", err)
	}
	return &Appender{f: f}, nil
}

// Write appends p to the output file. Satisfies io.Writer so an *Appender
// can be passed directly as a receiver.Receiver's Output.
func (a *Appender) Write(p []byte) (int, error) {
	return a.f.Write(p)
}

// Close flushes and closes the underlying file.
func (a *Appender) Close() error {
	return a.f.Close()
}
