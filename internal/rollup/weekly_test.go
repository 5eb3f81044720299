package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trade-pulse/internal/ledger"
)

// fixedNow falls in ISO week 2024-W11 (2024-03-11 through 2024-03-17).

func newWeekly(l ledger.Ledger, fs *mockFileStore, sum *mockSummarizer) *Weekly {
	return &Weekly{
		Ledger:         l,
		Files:          fs,
		Summarizer:     sum,
		WeeklyFolderID: "weekly-folder",
		Now:            fixedNow,
	}
}

func seedDaily(t *testing.T, l ledger.Ledger, sourceID string, reportDate time.Time) {
	t.Helper()
	name := "daily_report_" + reportDate.Format("2006-01-02") + ".md"
	require.NoError(t, l.UpsertDailyReport(context.Background(), sourceID, name, reportDate))
}

func TestWeekly_RollsUpCurrentWeek(t *testing.T) {
	l := newTestLedger(t)
	fs := &mockFileStore{}
	sum := &mockSummarizer{}

	seedDaily(t, l, "daily-mon", date(2024, time.March, 11))
	seedDaily(t, l, "daily-thu", date(2024, time.March, 14))
	seedDaily(t, l, "daily-old", date(2024, time.March, 8)) // previous week

	fs.On("Download", mock.Anything, "daily-mon").Return([]byte("monday brief"), nil)
	fs.On("Download", mock.Anything, "daily-thu").Return([]byte("thursday brief"), nil)
	sum.On("Weekly", mock.Anything, date(2024, time.March, 11), date(2024, time.March, 17),
		[]string{"monday brief", "thursday brief"}).
		Return("weekly brief", nil)
	fs.On("Upload", mock.Anything, "weekly-folder", "weekly_report_2024_11.md", markdownMIME, []byte("weekly brief")).
		Return("weekly-rep-1", nil)

	report, err := newWeekly(l, fs, sum).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Empty(t, report.Failures)

	// In-week dailies are consumed; the out-of-week one is untouched.
	pending, err := l.PendingForWeek(context.Background(), 2024, 11)
	require.NoError(t, err)
	assert.Empty(t, pending)

	previous, err := l.PendingForWeek(context.Background(), 2024, 10)
	require.NoError(t, err)
	assert.Len(t, previous, 1)

	// The weekly report is now pending for March.
	weeklies, err := l.PendingForMonth(context.Background(), 2024, 3)
	require.NoError(t, err)
	require.Len(t, weeklies, 1)
	assert.Equal(t, "weekly-rep-1", weeklies[0].SourceID)
}

func TestWeekly_EmptyWeekIsNoOp(t *testing.T) {
	l := newTestLedger(t)
	fs := &mockFileStore{}
	sum := &mockSummarizer{}

	report, err := newWeekly(l, fs, sum).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Succeeded)
	sum.AssertNotCalled(t, "Weekly", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWeekly_SecondRunIsNoOp(t *testing.T) {
	l := newTestLedger(t)
	fs := &mockFileStore{}
	sum := &mockSummarizer{}

	seedDaily(t, l, "daily-thu", date(2024, time.March, 14))
	fs.On("Download", mock.Anything, "daily-thu").Return([]byte("thursday brief"), nil)
	sum.On("Weekly", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("weekly brief", nil)
	fs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("weekly-rep-1", nil)

	stage := newWeekly(l, fs, sum)

	first, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Succeeded)

	second, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Succeeded)
	sum.AssertNumberOfCalls(t, "Weekly", 1)
}

func TestWeekly_SummarizerFailureLeavesDailiesPending(t *testing.T) {
	l := newTestLedger(t)
	fs := &mockFileStore{}
	sum := &mockSummarizer{}

	seedDaily(t, l, "daily-thu", date(2024, time.March, 14))
	fs.On("Download", mock.Anything, "daily-thu").Return([]byte("thursday brief"), nil)
	sum.On("Weekly", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", assert.AnError)

	_, err := newWeekly(l, fs, sum).Run(context.Background())
	require.Error(t, err)

	pending, err := l.PendingForWeek(context.Background(), 2024, 11)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
