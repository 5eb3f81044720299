package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/trade-pulse/internal/ledger"
	"github.com/sells-group/trade-pulse/internal/period"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger counts and pending work",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}
		l, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close() //nolint:errcheck
		if err := l.Migrate(ctx); err != nil {
			return err
		}

		counts, err := l.Counts(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		now := time.Now().UTC()
		isoYear, isoWeek := period.ISOWeekKey(now)
		weekPending, err := l.PendingForWeek(ctx, isoYear, isoWeek)
		if err != nil {
			return eris.Wrap(err, "status: pending for week")
		}

		prevStart, _ := period.PreviousMonth(now)
		monthPending, err := l.PendingForMonth(ctx, prevStart.Year(), int(prevStart.Month()))
		if err != nil {
			return eris.Wrap(err, "status: pending for month")
		}

		formatStatus(os.Stdout, counts, isoYear, isoWeek, prevStart, len(weekPending), len(monthPending))
		return nil
	},
}

// formatStatus writes the ledger summary to w.
func formatStatus(out io.Writer, c ledger.Counts, isoYear, isoWeek int, prevMonth time.Time, weekPending, monthPending int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Raw inputs:\t%d\t(%d unprocessed)\n", c.RawInputs, c.RawPending)
	_, _ = fmt.Fprintf(w, "Daily reports:\t%d\t(%d not in a weekly)\n", c.DailyReports, c.DailyPending)
	_, _ = fmt.Fprintf(w, "Weekly reports:\t%d\t(%d not in a monthly)\n", c.WeeklyReports, c.WeeklyPending)
	_, _ = fmt.Fprintf(w, "Monthly reports:\t%d\n", c.MonthlyReports)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Pending for week %d-W%02d:\t%d daily briefs\n", isoYear, isoWeek, weekPending)
	_, _ = fmt.Fprintf(w, "Pending for %s:\t%d weekly briefs\n", prevMonth.Format("January 2006"), monthPending)
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
