package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trade-pulse/internal/ledger"
	"github.com/sells-group/trade-pulse/internal/model"
)

// fixedNow is in March 2024, so the monthly stage targets February 2024.

func newMonthly(l ledger.Ledger, fs *mockFileStore, sum *mockSummarizer) *Monthly {
	return &Monthly{
		Ledger:          l,
		Files:           fs,
		Summarizer:      sum,
		MonthlyFolderID: "monthly-folder",
		Now:             fixedNow,
	}
}

func seedWeekly(t *testing.T, l ledger.Ledger, sourceID string, isoYear, isoWeek int, start, end time.Time) {
	t.Helper()
	require.NoError(t, l.UpsertWeeklyReport(context.Background(), model.WeeklyReport{
		SourceID:  sourceID,
		Name:      sourceID + ".md",
		ISOYear:   isoYear,
		ISOWeek:   isoWeek,
		WeekStart: start,
		WeekEnd:   end,
	}))
}

func TestMonthly_RollsUpPreviousMonth(t *testing.T) {
	l := newTestLedger(t)
	fs := &mockFileStore{}
	sum := &mockSummarizer{}

	// W5 and W9 straddle February's edges; W11 is fully in March.
	seedWeekly(t, l, "weekly-w5", 2024, 5, date(2024, time.January, 29), date(2024, time.February, 4))
	seedWeekly(t, l, "weekly-w9", 2024, 9, date(2024, time.February, 26), date(2024, time.March, 3))
	seedWeekly(t, l, "weekly-w11", 2024, 11, date(2024, time.March, 11), date(2024, time.March, 17))

	fs.On("Download", mock.Anything, "weekly-w5").Return([]byte("week five"), nil)
	fs.On("Download", mock.Anything, "weekly-w9").Return([]byte("week nine"), nil)
	sum.On("Monthly", mock.Anything, date(2024, time.February, 1), date(2024, time.February, 29),
		[]string{"week five", "week nine"}).
		Return("monthly brief", nil)
	fs.On("Upload", mock.Anything, "monthly-folder", "monthly_report_2024_02.md", markdownMIME, []byte("monthly brief")).
		Return("monthly-rep-1", nil)

	report, err := newMonthly(l, fs, sum).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	pending, err := l.PendingForMonth(context.Background(), 2024, 2)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The March-only week is still pending for March.
	march, err := l.PendingForMonth(context.Background(), 2024, 3)
	require.NoError(t, err)
	require.Len(t, march, 1)
	assert.Equal(t, "weekly-w11", march[0].SourceID)

	counts, err := l.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.MonthlyReports)
}

func TestMonthly_EmptyMonthIsNoOp(t *testing.T) {
	l := newTestLedger(t)
	fs := &mockFileStore{}
	sum := &mockSummarizer{}

	report, err := newMonthly(l, fs, sum).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Succeeded)
	sum.AssertNotCalled(t, "Monthly", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMonthly_BoundaryWeekClaimedByFirstRun(t *testing.T) {
	l := newTestLedger(t)
	fs := &mockFileStore{}
	sum := &mockSummarizer{}

	// W9 overlaps both February and March 2024.
	seedWeekly(t, l, "weekly-w9", 2024, 9, date(2024, time.February, 26), date(2024, time.March, 3))

	fs.On("Download", mock.Anything, "weekly-w9").Return([]byte("week nine"), nil)
	sum.On("Monthly", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("monthly brief", nil)
	fs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("monthly-rep-feb", nil)

	// February's rollup claims the boundary week.
	feb := newMonthly(l, fs, sum)
	report, err := feb.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	// March's rollup, a month later, finds nothing left.
	mar := newMonthly(l, fs, sum)
	mar.Now = func() time.Time { return date(2024, time.April, 5) }
	report, err = mar.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Succeeded)
	sum.AssertNumberOfCalls(t, "Monthly", 1)
}

func TestMonthly_SummarizerFailureLeavesWeekliesPending(t *testing.T) {
	l := newTestLedger(t)
	fs := &mockFileStore{}
	sum := &mockSummarizer{}

	seedWeekly(t, l, "weekly-w9", 2024, 9, date(2024, time.February, 26), date(2024, time.March, 3))
	fs.On("Download", mock.Anything, "weekly-w9").Return([]byte("week nine"), nil)
	sum.On("Monthly", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", assert.AnError)

	_, err := newMonthly(l, fs, sum).Run(context.Background())
	require.Error(t, err)

	pending, err := l.PendingForMonth(context.Background(), 2024, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
