package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tinytelemetry/logsift/internal/analysis"
	"github.com/tinytelemetry/logsift/internal/journal"
	"github.com/tinytelemetry/logsift/internal/model"
)

const (
	defaultSaveAttempts = 3
	defaultRetryDelay   = 200 * time.Millisecond
)

// batchProcessor analyzes received batches and persists their reports. When a
// journal is configured every batch is recorded before analysis and committed
// once its report is stored.
type batchProcessor struct {
	engine  *analysis.Engine
	writer  model.ReportWriter
	journal *journal.Journal

	saveAttempts int
	retryDelay   time.Duration
}

// record journals batch and returns its sequence number, or 0 when journaling
// is disabled or failed.
func (p *batchProcessor) record(batch model.LogBatch) uint64 {
	if p.journal == nil {
		return 0
	}
	seq, err := p.journal.Append(batch)
	if err != nil {
		log.Printf("server: journal append for %s: %v", batch.Source, err)
		return 0
	}
	return seq
}

// process analyzes one batch and stores the report. Failures are logged so one
// bad batch never stops the pipeline. A batch whose report cannot be stored is
// deferred in the journal and replayed after the next restart.
func (p *batchProcessor) process(ctx context.Context, seq uint64, batch model.LogBatch) {
	report, err := p.engine.Analyze(ctx, batch.Source, batch.Text)
	if err != nil {
		log.Printf("server: analyze batch from %s: %v", batch.Source, err)
		return
	}
	if err := p.save(ctx, report); err != nil {
		log.Printf("server: %v", err)
		p.deferBatch(seq, batch)
		return
	}
	log.Printf("server: report %s from %s: %d lines, %d errors, %d patterns",
		report.ID, report.Source, report.LineCount, len(report.Errors), len(report.Patterns))

	if seq > 0 && p.journal != nil {
		if err := p.journal.Commit(seq); err != nil {
			log.Printf("server: journal commit %d: %v", seq, err)
		}
	}
}

// save stores report, retrying with a linear backoff.
func (p *batchProcessor) save(ctx context.Context, report *model.Report) error {
	attempts := p.saveAttempts
	if attempts <= 0 {
		attempts = defaultSaveAttempts
	}
	delay := p.retryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = p.writer.SaveReport(report); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("store report %s: %w", report.ID, ctx.Err())
		case <-time.After(time.Duration(attempt) * delay):
		}
	}
	return fmt.Errorf("store report %s after %d attempts: %w", report.ID, attempts, err)
}

func (p *batchProcessor) deferBatch(seq uint64, batch model.LogBatch) {
	if seq == 0 || p.journal == nil {
		return
	}
	if err := p.journal.Defer(seq, batch); err != nil {
		log.Printf("server: journal defer %d: %v", seq, err)
		return
	}
	log.Printf("server: deferred batch %d from %s until next start", seq, batch.Source)
}

// replay re-processes batches left uncommitted by a previous run.
func (p *batchProcessor) replay(ctx context.Context) (int, error) {
	if p.journal == nil {
		return 0, nil
	}
	replayed := 0
	err := p.journal.Replay(func(seq uint64, batch model.LogBatch) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.process(ctx, seq, batch)
		replayed++
		return nil
	})
	if replayed > 0 {
		log.Printf("intake journal: replayed %d uncommitted batches", replayed)
	}
	return replayed, err
}
