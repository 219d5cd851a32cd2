package duckdb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/logsift/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore(\"\") failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testReport(id, source string, createdAt time.Time, patterns ...model.PatternCount) *model.Report {
	if patterns == nil {
		patterns = []model.PatternCount{}
	}
	return &model.Report{
		ID:                id,
		Source:            source,
		CreatedAt:         createdAt,
		LineCount:         4,
		Errors:            []string{"disk full"},
		StructuredEntries: []model.StructuredEntry{{"port": float64(8080)}},
		Timestamps:        []model.TimestampedLine{},
		Patterns:          patterns,
		MinOccurrences:    3,
		FrequencyError:    model.NoTimestampsMessage,
	}
}

func saveTestReports(t *testing.T, store *Store, reports ...*model.Report) {
	t.Helper()
	for _, r := range reports {
		if err := store.SaveReport(r); err != nil {
			t.Fatalf("SaveReport(%s): %v", r.ID, err)
		}
	}
}

func TestSaveAndGetReport(t *testing.T) {
	store := newTestStore(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	in := testReport("r1", "tcp", created, model.PatternCount{Pattern: "<IP> connected", Count: 3})
	saveTestReports(t, store, in)

	got, err := store.GetReport("r1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.ID != "r1" || got.Source != "tcp" || got.LineCount != 4 {
		t.Errorf("GetReport = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if len(got.Errors) != 1 || got.Errors[0] != "disk full" {
		t.Errorf("Errors = %q", got.Errors)
	}
	if len(got.StructuredEntries) != 1 || got.StructuredEntries[0]["port"] != float64(8080) {
		t.Errorf("StructuredEntries = %v", got.StructuredEntries)
	}
	if len(got.Patterns) != 1 || got.Patterns[0].Count != 3 {
		t.Errorf("Patterns = %+v", got.Patterns)
	}
	if got.FrequencyError != model.NoTimestampsMessage || got.Frequency != nil {
		t.Errorf("frequency = %+v / %q", got.Frequency, got.FrequencyError)
	}
}

func TestGetReportNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetReport("missing"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("err = %v, want ErrReportNotFound", err)
	}
}

func TestSaveReportRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveReport(nil); err == nil {
		t.Error("SaveReport(nil) should fail")
	}
	if err := store.SaveReport(&model.Report{}); err == nil {
		t.Error("SaveReport without id should fail")
	}
}

func TestSaveReportDuplicateIDRollsBack(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	saveTestReports(t, store, testReport("dup", "a", now, model.PatternCount{Pattern: "x happened here", Count: 5}))

	if err := store.SaveReport(testReport("dup", "b", now, model.PatternCount{Pattern: "x happened here", Count: 5})); err == nil {
		t.Fatal("expected duplicate id to fail")
	}

	top, err := store.TopPatterns(10)
	if err != nil {
		t.Fatalf("TopPatterns: %v", err)
	}
	if len(top) != 1 || top[0].Count != 5 {
		t.Errorf("TopPatterns = %+v, want pattern rows of the first save only", top)
	}
}

func TestListReports(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	saveTestReports(t, store,
		testReport("old", "tcp", base),
		testReport("mid", "http", base.Add(time.Minute)),
		testReport("new", "tcp", base.Add(2*time.Minute)),
	)

	all, err := store.ListReports(10, "")
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d reports, want 3", len(all))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if all[i].ID != want {
			t.Errorf("all[%d] = %s, want %s", i, all[i].ID, want)
		}
	}
	if all[0].ErrorCount != 1 || all[0].StructuredCount != 1 || all[0].LineCount != 4 {
		t.Errorf("summary = %+v", all[0])
	}

	tcp, err := store.ListReports(10, "tcp")
	if err != nil {
		t.Fatalf("ListReports(tcp): %v", err)
	}
	if len(tcp) != 2 {
		t.Errorf("got %d tcp reports, want 2", len(tcp))
	}

	limited, err := store.ListReports(1, "")
	if err != nil {
		t.Fatalf("ListReports(1): %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "new" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestListReportsEmpty(t *testing.T) {
	store := newTestStore(t)
	got, err := store.ListReports(10, "")
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListReports on empty store = %#v, want empty slice", got)
	}
}

func TestTopPatternsAggregatesAcrossReports(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	saveTestReports(t, store,
		testReport("a", "", now,
			model.PatternCount{Pattern: "user <UUID> logged in", Count: 4},
			model.PatternCount{Pattern: "cache miss for key", Count: 3},
		),
		testReport("b", "", now,
			model.PatternCount{Pattern: "user <UUID> logged in", Count: 2},
			model.PatternCount{Pattern: "GET /health from <IP>", Count: 5},
		),
	)

	top, err := store.TopPatterns(2)
	if err != nil {
		t.Fatalf("TopPatterns: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d patterns, want 2", len(top))
	}
	if top[0].Pattern != "user <UUID> logged in" || top[0].Count != 6 {
		t.Errorf("top[0] = %+v", top[0])
	}
	if top[1].Pattern != "GET /health from <IP>" || top[1].Count != 5 {
		t.Errorf("top[1] = %+v", top[1])
	}
}

func TestDeleteBefore(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()
	saveTestReports(t, store,
		testReport("expired", "", now.Add(-48*time.Hour), model.PatternCount{Pattern: "stale pattern", Count: 3}),
		testReport("fresh", "", now, model.PatternCount{Pattern: "fresh pattern", Count: 3}),
	)

	deleted, err := store.DeleteBefore(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	count, err := store.TotalReportCount()
	if err != nil {
		t.Fatalf("TotalReportCount: %v", err)
	}
	if count != 1 {
		t.Errorf("TotalReportCount = %d, want 1", count)
	}

	top, err := store.TopPatterns(10)
	if err != nil {
		t.Fatalf("TopPatterns: %v", err)
	}
	if len(top) != 1 || top[0].Pattern != "fresh pattern" {
		t.Errorf("TopPatterns = %+v, want only fresh pattern", top)
	}
}

func TestNewStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reports.duckdb")
	store, err := NewStore(path, 5*time.Second)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.QueryTimeout != 5*time.Second {
		t.Errorf("QueryTimeout = %v", store.QueryTimeout)
	}
	if store.DBPath() != path {
		t.Errorf("DBPath = %q", store.DBPath())
	}
	saveTestReports(t, store, testReport("persisted", "file", time.Now()))
	store.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetReport("persisted"); err != nil {
		t.Errorf("GetReport after reopen: %v", err)
	}
}
