// Package rollup implements the three rollup stages. Each run is a single
// pass: collect eligible work from the ledger, produce artifacts through
// the external collaborators, record outputs, and mark inputs consumed.
// No state is carried between runs beyond the ledger itself, so re-running
// any stage is safe.
package rollup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trade-pulse/internal/ledger"
	"github.com/sells-group/trade-pulse/internal/model"
	"github.com/sells-group/trade-pulse/internal/render"
	"github.com/sells-group/trade-pulse/internal/summarize"
	"github.com/sells-group/trade-pulse/internal/trades"
	"github.com/sells-group/trade-pulse/pkg/filestore"
	"github.com/sells-group/trade-pulse/pkg/mailer"
)

const markdownMIME = "text/markdown"

// Daily turns each unprocessed raw trade log into one daily brief (1:1).
// Item failures are logged and counted but never abort the run, so a
// backlog with one malformed file still drains.
type Daily struct {
	Ledger          ledger.Ledger
	Files           filestore.FileStore
	Summarizer      summarize.Summarizer
	Mailer          mailer.Mailer
	RawFolderID     string
	DailyFolderID   string
	TradeSampleRows int
	Now             func() time.Time
}

func (s *Daily) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Run executes one daily rollup pass.
func (s *Daily) Run(ctx context.Context) (*model.RunReport, error) {
	log := zap.L().With(zap.String("stage", string(model.StageDaily)))
	report := &model.RunReport{Stage: model.StageDaily}

	run, err := s.Ledger.StartStageRun(ctx, model.StageDaily)
	if err != nil {
		return nil, err
	}
	defer s.finish(ctx, log, run, report)

	files, err := s.Files.List(ctx, s.RawFolderID)
	if err != nil {
		return report, eris.Wrap(err, "daily: list raw folder")
	}

	var eligible []filestore.FileMeta
	for _, f := range files {
		if !isTradeLog(f.Name) {
			continue
		}
		needs, err := s.Ledger.NeedsProcessing(ctx, f.ID)
		if err != nil {
			return report, eris.Wrap(err, "daily: eligibility check")
		}
		if needs {
			eligible = append(eligible, f)
		}
	}
	log.Info("collected eligible raw files",
		zap.Int("listed", len(files)),
		zap.Int("eligible", len(eligible)),
	)

	for _, f := range eligible {
		if err := s.processFile(ctx, f); err != nil {
			log.Error("failed to process raw file",
				zap.String("file_id", f.ID),
				zap.String("name", f.Name),
				zap.Error(err),
			)
			report.AddFailure(f.ID, f.Name, err)
			continue
		}
		report.AddSuccess()
	}
	return report, nil
}

func (s *Daily) processFile(ctx context.Context, f filestore.FileMeta) error {
	log := zap.L().With(zap.String("file_id", f.ID), zap.String("name", f.Name))
	log.Info("processing raw trade log")

	tradeDate, err := TradeDate(f.Name, f.ModifiedTime, s.now())
	if err != nil {
		return err
	}
	if err := s.Ledger.UpsertRawInput(ctx, f.ID, f.Name, tradeDate, nil); err != nil {
		return err
	}

	data, err := s.Files.Download(ctx, f.ID)
	if err != nil {
		return eris.Wrapf(err, "daily: download %s", f.ID)
	}
	tradeLog, err := trades.Parse(f.Name, data)
	if err != nil {
		return err
	}

	text, err := s.Summarizer.Daily(ctx, tradeDate, tradeLog.Digest(s.TradeSampleRows))
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Daily Trade Pulse - %s", tradeDate.Format("Jan 02, 2006"))
	html, err := render.HTMLReport(title, text, tradeDate)
	if err != nil {
		return err
	}

	reportName := fmt.Sprintf("daily_report_%s.md", tradeDate.Format("2006-01-02"))
	reportID, err := s.Files.Upload(ctx, s.DailyFolderID, reportName, markdownMIME, []byte(text))
	if err != nil {
		return eris.Wrapf(err, "daily: upload %s", reportName)
	}

	if err := s.Ledger.MarkRawInputProcessed(ctx, f.ID, reportID); err != nil {
		return err
	}
	if err := s.Ledger.UpsertDailyReport(ctx, reportID, reportName, tradeDate); err != nil {
		return err
	}

	sendReport(ctx, s.Mailer,
		fmt.Sprintf("Daily Trade Report - %s", tradeDate.Format("2006-01-02")),
		text, html,
		mailer.Attachment{
			Name:        fmt.Sprintf("daily_report_%s.html", tradeDate.Format("2006-01-02")),
			Content:     []byte(html),
			ContentType: "text/html",
		},
	)
	log.Info("finished processing raw trade log", zap.String("report_id", reportID))
	return nil
}

// isTradeLog filters the raw folder down to supported trade-log formats.
func isTradeLog(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".xlsx")
}

// finish closes out the stage-run audit record; failures here are logged
// only, since the rollup work itself has already been persisted.
func (s *Daily) finish(ctx context.Context, log *zap.Logger, run *model.StageRun, report *model.RunReport) {
	if err := s.Ledger.FinishStageRun(ctx, run.ID, *report); err != nil {
		log.Warn("failed to record stage run", zap.Error(err))
	}
	log.Info("stage run finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed()),
	)
}

// sendReport delivers the notification on a best-effort basis. Delivery
// failure never fails the item that produced the report.
func sendReport(ctx context.Context, m mailer.Mailer, subject, text, html string, attachments ...mailer.Attachment) {
	if m == nil {
		return
	}
	if err := m.Send(ctx, subject, text, html, attachments); err != nil {
		zap.L().Warn("email delivery failed", zap.String("subject", subject), zap.Error(err))
	}
}
