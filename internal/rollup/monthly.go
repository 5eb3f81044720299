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

// Monthly folds every unconsumed weekly brief whose ISO week overlaps the
// previous calendar month into one monthly brief (N:1). Weeks straddling
// a month boundary are claimed by whichever month rolls up first.
type Monthly struct {
	Ledger          ledger.Ledger
	Files           filestore.FileStore
	Summarizer      summarize.Summarizer
	Mailer          mailer.Mailer
	MonthlyFolderID string
	Now             func() time.Time
}

func (s *Monthly) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Run executes one monthly rollup pass for the month before the one
// containing now.
func (s *Monthly) Run(ctx context.Context) (*model.RunReport, error) {
	monthStart, monthEnd := period.PreviousMonth(s.now())
	log := zap.L().With(
		zap.String("stage", string(model.StageMonthly)),
		zap.String("month", monthStart.Format("2006-01")),
	)
	report := &model.RunReport{Stage: model.StageMonthly}

	run, err := s.Ledger.StartStageRun(ctx, model.StageMonthly)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Ledger.FinishStageRun(ctx, run.ID, *report); err != nil {
			log.Warn("failed to record stage run", zap.Error(err))
		}
	}()

	pending, err := s.Ledger.PendingForMonth(ctx, monthStart.Year(), int(monthStart.Month()))
	if err != nil {
		return report, err
	}
	if len(pending) == 0 {
		log.Info("no pending weekly reports, nothing to roll up")
		return report, nil
	}
	log.Info("rolling up weekly reports", zap.Int("count", len(pending)))

	texts := make([]string, 0, len(pending))
	ids := make([]int64, 0, len(pending))
	for _, w := range pending {
		data, err := s.Files.Download(ctx, w.SourceID)
		if err != nil {
			return report, eris.Wrapf(err, "monthly: download weekly report %s", w.SourceID)
		}
		texts = append(texts, string(data))
		ids = append(ids, w.ID)
	}

	text, err := s.Summarizer.Monthly(ctx, monthStart, monthEnd, texts)
	if err != nil {
		return report, err
	}
	title := fmt.Sprintf("Monthly Trade Pulse - %s", monthStart.Format("January 2006"))
	html, err := render.HTMLReport(title, text, monthEnd)
	if err != nil {
		return report, err
	}

	reportName := fmt.Sprintf("monthly_report_%s.md", monthStart.Format("2006_01"))
	reportID, err := s.Files.Upload(ctx, s.MonthlyFolderID, reportName, markdownMIME, []byte(text))
	if err != nil {
		return report, eris.Wrapf(err, "monthly: upload %s", reportName)
	}

	err = s.Ledger.UpsertMonthlyReport(ctx, model.MonthlyReport{
		SourceID:   reportID,
		Name:       reportName,
		Year:       monthStart.Year(),
		Month:      int(monthStart.Month()),
		MonthStart: monthStart,
		MonthEnd:   monthEnd,
	})
	if err != nil {
		return report, err
	}
	if err := s.Ledger.MarkWeeklyIncluded(ctx, ids); err != nil {
		return report, err
	}

	sendReport(ctx, s.Mailer,
		fmt.Sprintf("Monthly Trade Report - %s", monthStart.Format("January 2006")),
		text, html,
		mailer.Attachment{
			Name:        fmt.Sprintf("monthly_report_%s.html", monthStart.Format("2006_01")),
			Content:     []byte(html),
			ContentType: "text/html",
		},
	)
	report.AddSuccess()
	log.Info("monthly rollup finished",
		zap.String("report_id", reportID),
		zap.Int("weeklies_included", len(ids)),
	)
	return report, nil
}
