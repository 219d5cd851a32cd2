package duckdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tinytelemetry/logsift/internal/model"
)

// SaveReport writes the report row and its pattern rows in one transaction.
func (s *Store) SaveReport(report *model.Report) error {
	if report == nil {
		return errors.New("duckdb: nil report")
	}
	if report.ID == "" {
		return errors.New("duckdb: report without id")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", report.ID, err)
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveReportTx(ctx, report, payload); err != nil {
		return fmt.Errorf("save report %s: %w", report.ID, err)
	}
	return nil
}

func (s *Store) saveReportTx(ctx context.Context, report *model.Report, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	sum := report.Summary()
	createdAt := sum.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO reports (id, source, created_at, line_count, error_count, structured_count, timestamp_count, pattern_count, window_minutes, duration_minutes, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.Source, createdAt.UTC(),
		sum.LineCount, sum.ErrorCount, sum.StructuredCount, sum.TimestampCount, sum.PatternCount,
		sum.WindowMinutes, sum.DurationMinutes, string(payload),
	); err != nil {
		return fmt.Errorf("report insert: %w", err)
	}

	if len(report.Patterns) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO report_patterns (report_id, pattern, count) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range report.Patterns {
			if _, err := stmt.ExecContext(ctx, report.ID, p.Pattern, p.Count); err != nil {
				return fmt.Errorf("pattern insert: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DeleteBefore removes reports created before cutoff, with their pattern rows.
// It returns the number of reports deleted.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	cutoff = cutoff.UTC()
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_patterns WHERE report_id IN (SELECT id FROM reports WHERE created_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("delete patterns: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete reports: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return rows, nil
}
