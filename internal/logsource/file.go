package logsource

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinytelemetry/logsift/internal/model"
)

// FileSource reads each file once and emits one batch per file.
type FileSource struct {
	ch     chan model.LogBatch
	cancel context.CancelFunc
}

// NewFileSource reads paths in order in a background goroutine. Unreadable or
// oversized files are logged and skipped.
func NewFileSource(ctx context.Context, paths []string, maxBatchBytes int) *FileSource {
	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		ch:     make(chan model.LogBatch),
		cancel: cancel,
	}
	go s.read(ctx, paths, maxBatchBytes)
	return s
}

func (s *FileSource) read(ctx context.Context, paths []string, maxBatchBytes int) {
	defer close(s.ch)
	for _, path := range paths {
		batch, err := ReadFile(path, maxBatchBytes)
		if err != nil {
			log.Printf("logsource: %v", err)
			continue
		}
		if strings.TrimSpace(batch.Text) == "" {
			continue
		}
		select {
		case s.ch <- batch:
		case <-ctx.Done():
			return
		}
	}
}

// ReadFile reads path as one batch whose source is the file's base name.
func ReadFile(path string, maxBatchBytes int) (model.LogBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.LogBatch{}, err
	}
	defer f.Close()
	return ReadBatch(f, "file:"+filepath.Base(path), maxBatchBytes)
}

func (s *FileSource) Batches() <-chan model.LogBatch { return s.ch }
func (s *FileSource) Stop()                          { s.cancel() }
func (s *FileSource) Name() string                   { return "file" }
