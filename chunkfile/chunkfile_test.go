package chunkfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestChunksSplitsWithShortFinalChunk(t *testing.T) {
	path := writeTemp(t, bytes.Repeat([]byte("a"), 64*3+10))
	chunks, err := Chunks(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i := 0; i < 3; i++ {
		if len(chunks[i]) != 64 {
			t.Fatalf("chunk %d: expected full size 64, got %d", i, len(chunks[i]))
		}
	}
	if len(chunks[3]) != 10 {
		t.Fatalf("final chunk: expected short length 10, got %d", len(chunks[3]))
	}
}

func TestChunksExactMultipleYieldsNoShortFinalChunk(t *testing.T) {
	// A file whose size is an exact multiple of the chunk size ends with a
	// full-size final chunk, not a short one — this matches
	// original_source's file_in.read(chunk_size) loop, which stops as soon
	// as a read returns empty rather than emitting a trailing empty chunk.
	// Such an input has no in-band end-of-stream marker; that is an
	// inherited property of the wire protocol, not something chunkfile
	// papers over.
	path := writeTemp(t, bytes.Repeat([]byte("b"), 64*2))
	chunks, err := Chunks(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 full chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) != 64 {
			t.Fatalf("expected every chunk to be full size, got %d", len(c))
		}
	}
}

func TestChunksEmptyFile(t *testing.T) {
	path := writeTemp(t, nil)
	chunks, err := Chunks(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || len(chunks[0]) != 0 {
		t.Fatalf("expected a single empty chunk for an empty input file, got %v", chunks)
	}
}

func TestChunksRejectsNonPositiveSize(t *testing.T) {
	path := writeTemp(t, []byte("x"))
	if _, err := Chunks(path, 0); err == nil {
		t.Fatal("expected error for size=0")
	}
}

func TestChunksMissingFile(t *testing.T) {
	if _, err := Chunks(filepath.Join(t.TempDir(), "missing"), 64); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestAppenderTruncatesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")
	if err := os.WriteFile(path, []byte("stale contents that must be discarded"), 0644); err != nil {
		t.Fatal(err)
	}
	a, err := NewAppender(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Write([]byte("fresh")); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fresh" {
		t.Fatalf("expected truncate-then-write semantics, got %q", got)
	}
}

func TestAppenderAppendsInCallOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")
	a, err := NewAppender(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"one-", "two-", "three"} {
		if _, err := a.Write([]byte(s)); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one-two-three" {
		t.Fatalf("expected concatenation in write order, got %q", got)
	}
}
