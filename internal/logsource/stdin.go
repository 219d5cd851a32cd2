package logsource

import (
	"context"
	"io"
	"log"
	"os"
	"strings"

	"github.com/tinytelemetry/logsift/internal/model"
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	MaxBatchBytes int
}

// StdinSource reads stdin to EOF and emits it as a single batch.
type StdinSource struct {
	ch     chan model.LogBatch
	cancel context.CancelFunc
}

// NewStdinSource creates a StdinSource that reads from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	maxBatchBytes := DefaultMaxBatchBytes
	if len(conf) > 0 && conf[0].MaxBatchBytes > 0 {
		maxBatchBytes = conf[0].MaxBatchBytes
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.LogBatch, 1),
		cancel: cancel,
	}
	go s.read(ctx, r, maxBatchBytes)
	return s
}

func (s *StdinSource) read(ctx context.Context, r io.Reader, maxBatchBytes int) {
	defer close(s.ch)

	// The blocking read runs in its own goroutine so Stop does not wait on EOF.
	type readResult struct {
		batch model.LogBatch
		err   error
	}
	results := make(chan readResult, 1)
	go func() {
		batch, err := ReadBatch(r, s.Name(), maxBatchBytes)
		results <- readResult{batch: batch, err: err}
	}()

	select {
	case <-ctx.Done():
		return
	case res := <-results:
		if res.err != nil {
			log.Printf("logsource: stdin: %v", res.err)
			return
		}
		if strings.TrimSpace(res.batch.Text) == "" {
			return
		}
		select {
		case s.ch <- res.batch:
		case <-ctx.Done():
		}
	}
}

func (s *StdinSource) Batches() <-chan model.LogBatch { return s.ch }
func (s *StdinSource) Stop()                          { s.cancel() }
func (s *StdinSource) Name() string                   { return "stdin" }
