// Package ledger persists the rollup state: which raw trade files have
// produced daily reports, which daily reports have been folded into a
// weekly report, and which weekly reports into a monthly one. Rows are
// keyed by their file-store source id and are never deleted; consumption
// is tracked with monotonic flags so every stage can be re-run safely.
package ledger

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trade-pulse/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = eris.New("ledger: not found")

// Counts summarizes ledger contents for status reporting.
type Counts struct {
	RawInputs      int `json:"raw_inputs"`
	RawPending     int `json:"raw_pending"`
	DailyReports   int `json:"daily_reports"`
	DailyPending   int `json:"daily_pending"`
	WeeklyReports  int `json:"weekly_reports"`
	WeeklyPending  int `json:"weekly_pending"`
	MonthlyReports int `json:"monthly_reports"`
}

// Ledger defines the persistence contract shared by the SQLite and
// Postgres backends. Every write is applied atomically: a call either
// fully commits or leaves the ledger untouched.
//
// Upserts are monotonic. Writing a raw input whose source id already
// exists updates the mutable fields, but a non-null derived ref or
// processed-at timestamp is never reverted to null; a fresh non-null
// derived ref may re-point the row and refreshes the timestamp.
type Ledger interface {
	// Raw inputs
	UpsertRawInput(ctx context.Context, sourceID, name string, tradeDate time.Time, derivedRef *string) error
	MarkRawInputProcessed(ctx context.Context, sourceID, derivedRef string) error
	NeedsProcessing(ctx context.Context, sourceID string) (bool, error)
	PendingRawInputs(ctx context.Context) ([]model.RawInput, error)

	// Daily reports
	UpsertDailyReport(ctx context.Context, sourceID, name string, reportDate time.Time) error
	PendingForWeek(ctx context.Context, isoYear, isoWeek int) ([]model.DailyReport, error)
	MarkDailyIncluded(ctx context.Context, ids []int64) error

	// Weekly reports
	UpsertWeeklyReport(ctx context.Context, rep model.WeeklyReport) error
	PendingForMonth(ctx context.Context, year, month int) ([]model.WeeklyReport, error)
	MarkWeeklyIncluded(ctx context.Context, ids []int64) error

	// Monthly reports
	UpsertMonthlyReport(ctx context.Context, rep model.MonthlyReport) error

	// Stage run audit trail
	StartStageRun(ctx context.Context, stage model.Stage) (*model.StageRun, error)
	FinishStageRun(ctx context.Context, runID string, report model.RunReport) error
	ListStageRuns(ctx context.Context, limit int) ([]model.StageRun, error)

	// Status
	Counts(ctx context.Context) (Counts, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "ledger: parse date %q", s)
	}
	return t, nil
}
