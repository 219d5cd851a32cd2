package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/tinytelemetry/logsift/internal/model"
)

// ErrReportNotFound is returned by GetReport for an unknown id.
var ErrReportNotFound = errors.New("duckdb: report not found")

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// sourceFilter returns a WHERE clause and args when source is non-empty.
func sourceFilter(source string) (clause string, args []any) {
	if source != "" {
		return "WHERE source = ?", []any{source}
	}
	return "", nil
}

// GetReport loads the full report stored under id.
func (s *Store) GetReport(id string) (*model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &report, nil
}

// ListReports returns report summaries, newest first, optionally restricted to source.
func (s *Store) ListReports(limit int, source string) ([]model.ReportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	where, args := sourceFilter(source)
	query := fmt.Sprintf(`
		SELECT id, source, created_at, line_count, error_count, structured_count,
		       timestamp_count, pattern_count, window_minutes, duration_minutes
		FROM reports %s
		ORDER BY created_at DESC, id
		LIMIT ?`, where)

	rows, err := s.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.ReportSummary{}
	for rows.Next() {
		var r model.ReportSummary
		if err := rows.Scan(&r.ID, &r.Source, &r.CreatedAt, &r.LineCount, &r.ErrorCount,
			&r.StructuredCount, &r.TimestampCount, &r.PatternCount, &r.WindowMinutes, &r.DurationMinutes); err != nil {
			log.Printf("duckdb scan error (ListReports): %v", err)
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// TopPatterns aggregates pattern counts across every stored report.
func (s *Store) TopPatterns(limit int) ([]model.PatternCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern, CAST(SUM(count) AS BIGINT) AS total
		FROM report_patterns
		GROUP BY pattern
		ORDER BY total DESC, pattern
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.PatternCount{}
	for rows.Next() {
		var (
			p     model.PatternCount
			total int64
		)
		if err := rows.Scan(&p.Pattern, &total); err != nil {
			log.Printf("duckdb scan error (TopPatterns): %v", err)
			continue
		}
		p.Count = int(total)
		results = append(results, p)
	}
	return results, rows.Err()
}

// TotalReportCount returns the number of stored reports.
func (s *Store) TotalReportCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count)
	return count, err
}
