package model

// ReportWriter persists analysis reports.
type ReportWriter interface {
	SaveReport(report *Report) error
}

// ReportReader provides read-only queries over stored reports.
type ReportReader interface {
	GetReport(id string) (*Report, error)
	ListReports(limit int, source string) ([]ReportSummary, error)
	TopPatterns(limit int) ([]PatternCount, error)
	TotalReportCount() (int64, error)
}

// ReportStore is the unified report storage contract used by the HTTP API and the server.
type ReportStore interface {
	ReportWriter
	ReportReader
}
