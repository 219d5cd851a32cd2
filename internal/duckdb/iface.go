package duckdb

import "github.com/tinytelemetry/logsift/internal/model"

var (
	_ model.ReportStore  = (*Store)(nil)
	_ model.ReportWriter = (*Store)(nil)
)
