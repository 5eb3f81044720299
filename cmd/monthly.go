package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/trade-pulse/internal/rollup"
)

var monthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "Fold last month's weekly briefs into a monthly brief",
	Long:  "Collects weekly briefs overlapping the previous calendar month that have not yet been folded into a monthly brief and generates one. A month with nothing pending is a clean no-op.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stage := &rollup.Monthly{
			Ledger:          env.Ledger,
			Files:           env.Files,
			Summarizer:      env.Summarizer,
			Mailer:          env.Mailer,
			MonthlyFolderID: cfg.Folders.Monthly,
		}

		report, err := stage.Run(ctx)
		if err != nil {
			return err
		}
		logRunReport(report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monthlyCmd)
}
