package rollup

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trade-pulse/internal/ledger"
	"github.com/sells-group/trade-pulse/internal/model"
	"github.com/sells-group/trade-pulse/internal/period"
	"github.com/sells-group/trade-pulse/internal/render"
	"github.com/sells-group/trade-pulse/internal/summarize"
	"github.com/sells-group/trade-pulse/pkg/filestore"
	"github.com/sells-group/trade-pulse/pkg/mailer"
)

// Weekly folds every daily brief in the current ISO week that has not
// yet been consumed into one weekly brief (N:1). An empty week is a
// clean no-op, not an error.
type Weekly struct {
	Ledger         ledger.Ledger
	Files          filestore.FileStore
	Summarizer     summarize.Summarizer
	Mailer         mailer.Mailer
	WeeklyFolderID string
	Now            func() time.Time
}

func (s *Weekly) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Run executes one weekly rollup pass for the ISO week containing now.
func (s *Weekly) Run(ctx context.Context) (*model.RunReport, error) {
	isoYear, isoWeek := period.ISOWeekKey(s.now())
	log := zap.L().With(
		zap.String("stage", string(model.StageWeekly)),
		zap.Int("iso_year", isoYear),
		zap.Int("iso_week", isoWeek),
	)
	report := &model.RunReport{Stage: model.StageWeekly}

	run, err := s.Ledger.StartStageRun(ctx, model.StageWeekly)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Ledger.FinishStageRun(ctx, run.ID, *report); err != nil {
			log.Warn("failed to record stage run", zap.Error(err))
		}
	}()

	weekStart, weekEnd, err := period.WeekRange(isoYear, isoWeek)
	if err != nil {
		return report, err
	}

	pending, err := s.Ledger.PendingForWeek(ctx, isoYear, isoWeek)
	if err != nil {
		return report, err
	}
	if len(pending) == 0 {
		log.Info("no pending daily reports, nothing to roll up")
		return report, nil
	}
	log.Info("rolling up daily reports", zap.Int("count", len(pending)))

	texts := make([]string, 0, len(pending))
	ids := make([]int64, 0, len(pending))
	for _, d := range pending {
		data, err := s.Files.Download(ctx, d.SourceID)
		if err != nil {
			return report, eris.Wrapf(err, "weekly: download daily report %s", d.SourceID)
		}
		texts = append(texts, string(data))
		ids = append(ids, d.ID)
	}

	text, err := s.Summarizer.Weekly(ctx, weekStart, weekEnd, texts)
	if err != nil {
		return report, err
	}
	title := fmt.Sprintf("Weekly Trade Pulse - %s to %s",
		weekStart.Format("Jan 02"), weekEnd.Format("Jan 02"))
	html, err := render.HTMLReport(title, text, weekEnd)
	if err != nil {
		return report, err
	}

	reportName := fmt.Sprintf("weekly_report_%d_%02d.md", isoYear, isoWeek)
	reportID, err := s.Files.Upload(ctx, s.WeeklyFolderID, reportName, markdownMIME, []byte(text))
	if err != nil {
		return report, eris.Wrapf(err, "weekly: upload %s", reportName)
	}

	err = s.Ledger.UpsertWeeklyReport(ctx, model.WeeklyReport{
		SourceID:  reportID,
		Name:      reportName,
		ISOYear:   isoYear,
		ISOWeek:   isoWeek,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
	})
	if err != nil {
		return report, err
	}
	if err := s.Ledger.MarkDailyIncluded(ctx, ids); err != nil {
		return report, err
	}

	sendReport(ctx, s.Mailer,
		fmt.Sprintf("Weekly Trade Report - %s to %s",
			weekStart.Format("2006-01-02"), weekEnd.Format("2006-01-02")),
		text, html,
		mailer.Attachment{
			Name:        fmt.Sprintf("weekly_report_%d_%02d.html", isoYear, isoWeek),
			Content:     []byte(html),
			ContentType: "text/html",
		},
	)
	report.AddSuccess()
	log.Info("weekly rollup finished",
		zap.String("report_id", reportID),
		zap.Int("dailies_included", len(ids)),
	)
	return report, nil
}
