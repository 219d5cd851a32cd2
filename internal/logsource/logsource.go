// Package logsource adapts log inputs (TCP, stdin, files) to a stream of whole-blob batches.
package logsource

import (
	"fmt"
	"io"

	"github.com/tinytelemetry/logsift/internal/model"
)

// DefaultMaxBatchBytes caps a single blob read from a stream source.
const DefaultMaxBatchBytes = 16 * 1024 * 1024 // 16MB

// LogSource is a unified interface for all log input sources (TCP, file, stdin).
type LogSource interface {
	Batches() <-chan model.LogBatch // read-only channel of log blobs
	Stop()                          // graceful shutdown
	Name() string                   // "tcp", "file", "stdin"
}

// BatchTooLargeError is returned by ReadBatch when the input exceeds the byte cap.
type BatchTooLargeError struct {
	Source string
	Limit  int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("logsource: %s exceeds max batch size (%d bytes)", e.Source, e.Limit)
}

// ReadBatch reads r to EOF as one batch. maxBytes <= 0 uses DefaultMaxBatchBytes.
func ReadBatch(r io.Reader, source string, maxBytes int) (model.LogBatch, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBatchBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
	if err != nil {
		return model.LogBatch{}, fmt.Errorf("logsource: read %s: %w", source, err)
	}
	if len(data) > maxBytes {
		return model.LogBatch{}, &BatchTooLargeError{Source: source, Limit: maxBytes}
	}
	return model.LogBatch{Source: source, Text: string(data)}, nil
}
