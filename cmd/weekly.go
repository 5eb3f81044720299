package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/trade-pulse/internal/rollup"
)

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Fold the current week's daily briefs into a weekly brief",
	Long:  "Collects daily briefs from the current ISO week that have not yet been folded into a weekly brief and generates one. A week with nothing pending is a clean no-op.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stage := &rollup.Weekly{
			Ledger:         env.Ledger,
			Files:          env.Files,
			Summarizer:     env.Summarizer,
			Mailer:         env.Mailer,
			WeeklyFolderID: cfg.Folders.Weekly,
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
	rootCmd.AddCommand(weeklyCmd)
}
