// Package analysis runs every log analysis over one blob and assembles the
// combined report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/logsift/internal/frequency"
	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/model"
	"github.com/tinytelemetry/logsift/internal/pattern"
	"github.com/tinytelemetry/logsift/internal/timestamp"
)

// Options tunes the pattern and frequency passes.
type Options struct {
	MinOccurrences int
	WindowMinutes  int
}

// Engine is stateless and safe for concurrent use.
type Engine struct {
	opts Options
	now  func() time.Time
}

// New creates an Engine. Zero or negative options fall back to the package defaults.
func New(opts Options) *Engine {
	if opts.MinOccurrences <= 0 {
		opts.MinOccurrences = model.DefaultMinOccurrences
	}
	if opts.WindowMinutes <= 0 {
		opts.WindowMinutes = model.DefaultWindowMinutes
	}
	return &Engine{opts: opts, now: time.Now}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// WithOptions returns a copy of e using opts for fields that are set.
func (e *Engine) WithOptions(opts Options) *Engine {
	merged := e.opts
	if opts.MinOccurrences > 0 {
		merged.MinOccurrences = opts.MinOccurrences
	}
	if opts.WindowMinutes > 0 {
		merged.WindowMinutes = opts.WindowMinutes
	}
	return &Engine{opts: merged, now: e.now}
}

// Analyze runs the error, structured, timestamp, pattern and frequency passes
// concurrently over text. Timestamps are extracted once and shared with the
// frequency pass. Malformed input never fails; only a cancelled ctx does.
func (e *Engine) Analyze(ctx context.Context, source, text string) (*model.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &model.Report{
		ID:             uuid.NewString(),
		Source:         source,
		CreatedAt:      e.now().UTC(),
		MinOccurrences: e.opts.MinOccurrences,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.LineCount = len(logparse.Lines(text))
		report.Errors = logparse.ExtractErrorMessages(text)
		return gctx.Err()
	})
	g.Go(func() error {
		report.StructuredEntries = logparse.ExtractStructuredEntries(text)
		return gctx.Err()
	})
	g.Go(func() error {
		report.Patterns = pattern.FindCommon(text, e.opts.MinOccurrences)
		return gctx.Err()
	})
	// Frequency windows are built from the extracted timestamps.
	g.Go(func() error {
		report.Timestamps = timestamp.Extract(text)
		if err := gctx.Err(); err != nil {
			return err
		}
		freq, err := frequency.AnalyzeLines(report.Timestamps, e.opts.WindowMinutes)
		switch {
		case errors.Is(err, frequency.ErrNoTimestamps):
			report.FrequencyError = model.NoTimestampsMessage
		case err != nil:
			return fmt.Errorf("frequency: %w", err)
		default:
			report.Frequency = freq
		}
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", source, err)
	}
	return report, nil
}
