package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/trade-pulse/internal/ledger"
	"github.com/sells-group/trade-pulse/internal/model"
)

func TestFormatStatus(t *testing.T) {
	var b strings.Builder
	counts := ledger.Counts{
		RawInputs:      10,
		RawPending:     2,
		DailyReports:   8,
		DailyPending:   3,
		WeeklyReports:  2,
		WeeklyPending:  1,
		MonthlyReports: 1,
	}
	prevMonth := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	formatStatus(&b, counts, 2024, 11, prevMonth, 3, 1)
	out := b.String()

	assert.Contains(t, out, "Raw inputs:")
	assert.Contains(t, out, "(2 unprocessed)")
	assert.Contains(t, out, "2024-W11")
	assert.Contains(t, out, "February 2024")
}

func TestFormatStageRuns(t *testing.T) {
	var b strings.Builder
	started := time.Date(2024, time.March, 14, 8, 0, 0, 0, time.UTC)
	finished := started.Add(42 * time.Second)

	formatStageRuns(&b, []model.StageRun{
		{ID: "0193cafe-dead-beef-0000-000000000000", Stage: model.StageDaily, StartedAt: started, FinishedAt: &finished, Succeeded: 3, Failed: 1},
		{ID: "0193cafe-feed-face-0000-000000000000", Stage: model.StageWeekly, StartedAt: started},
	})
	out := b.String()

	assert.Contains(t, out, "0193cafe")
	assert.Contains(t, out, "daily")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "running")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abc"))
	assert.Equal(t, "short", truncateID("short"))
}
