package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trade-pulse/internal/model"
	"github.com/sells-group/trade-pulse/internal/rollup"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Generate daily briefs from unprocessed raw trade logs",
	Long:  "Scans the raw folder for trade logs the ledger has not seen yet, generates one daily brief per file, and marks each file processed. Individual failures are logged and retried on the next run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stage := &rollup.Daily{
			Ledger:          env.Ledger,
			Files:           env.Files,
			Summarizer:      env.Summarizer,
			Mailer:          env.Mailer,
			RawFolderID:     cfg.Folders.Raw,
			DailyFolderID:   cfg.Folders.Daily,
			TradeSampleRows: cfg.Rollup.TradeSampleRows,
		}

		report, err := stage.Run(ctx)
		if err != nil {
			return err
		}
		logRunReport(report)
		return nil
	},
}

// logRunReport logs the outcome of a stage run. Per-item failures have
// already been persisted and logged; they do not fail the command.
func logRunReport(report *model.RunReport) {
	for _, f := range report.Failures {
		zap.L().Warn("item failed",
			zap.String("stage", string(report.Stage)),
			zap.String("source_id", f.SourceID),
			zap.String("name", f.Name),
			zap.String("reason", f.Reason),
		)
	}
	zap.L().Info("run complete",
		zap.String("stage", string(report.Stage)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed()),
	)
}

func init() {
	rootCmd.AddCommand(dailyCmd)
}
