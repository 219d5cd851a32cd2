package logsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStdinSourceStopClosesBatches(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := newStdinSourceWithReader(context.Background(), r)
	src.Stop()

	select {
	case _, ok := <-src.Batches():
		if ok {
			t.Fatal("expected batch channel to be closed after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch channel to close")
	}
}

func TestStdinSourceStopIsIdempotent(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := newStdinSourceWithReader(context.Background(), r)
	src.Stop()
	src.Stop()
}

func TestStdinSourceEmitsWholeInput(t *testing.T) {
	text := "line one\nline two\n"
	src := newStdinSourceWithReader(context.Background(), strings.NewReader(text))
	defer src.Stop()

	select {
	case b, ok := <-src.Batches():
		if !ok {
			t.Fatal("channel closed without a batch")
		}
		if b.Text != text || b.Source != "stdin" {
			t.Fatalf("batch = %+v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}

	if _, ok := <-src.Batches(); ok {
		t.Fatal("expected a single batch")
	}
}

func TestStdinSourceSkipsOversized(t *testing.T) {
	src := newStdinSourceWithReader(context.Background(), strings.NewReader(strings.Repeat("x", 100)), StdinConfig{MaxBatchBytes: 10})
	if _, ok := <-src.Batches(); ok {
		t.Fatal("oversized input should produce no batch")
	}
}

func TestReadBatch(t *testing.T) {
	t.Parallel()

	b, err := ReadBatch(strings.NewReader("exactly10!"), "unit", 10)
	if err != nil || b.Text != "exactly10!" || b.Source != "unit" {
		t.Fatalf("ReadBatch at limit = %+v, %v", b, err)
	}

	_, err = ReadBatch(strings.NewReader("eleven char"), "unit", 10)
	var tooLarge *BatchTooLargeError
	if !errors.As(err, &tooLarge) || tooLarge.Limit != 10 {
		t.Fatalf("err = %v, want BatchTooLargeError", err)
	}
}

func TestFileSourceEmitsOneBatchPerFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	if err := os.WriteFile(a, []byte("alpha log"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("beta log"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(context.Background(), []string{a, filepath.Join(dir, "missing.log"), b}, 0)
	defer src.Stop()

	var got []string
	for batch := range src.Batches() {
		got = append(got, batch.Source+"="+batch.Text)
	}
	want := []string{"file:a.log=alpha log", "file:b.log=beta log"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("batches = %q, want %q", got, want)
	}
}
