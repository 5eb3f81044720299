package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/trade-pulse/internal/model"
	"github.com/sells-group/trade-pulse/internal/period"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS raw_inputs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id    TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	trade_date   TEXT NOT NULL,
	derived_ref  TEXT,
	processed_at DATETIME
);

CREATE TABLE IF NOT EXISTS daily_reports (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id          TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL,
	report_date        TEXT NOT NULL,
	included_in_weekly INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS weekly_reports (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id           TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL,
	iso_year            INTEGER NOT NULL,
	iso_week            INTEGER NOT NULL,
	week_start          TEXT NOT NULL,
	week_end            TEXT NOT NULL,
	included_in_monthly INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS monthly_reports (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id   TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	year        INTEGER NOT NULL,
	month       INTEGER NOT NULL,
	month_start TEXT NOT NULL,
	month_end   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_daily_reports_pending ON daily_reports(included_in_weekly);
CREATE INDEX IF NOT EXISTS idx_weekly_reports_pending ON weekly_reports(included_in_monthly);
CREATE INDEX IF NOT EXISTS idx_stage_runs_stage ON stage_runs(stage, started_at);
`

func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) UpsertRawInput(ctx context.Context, sourceID, name string, tradeDate time.Time, derivedRef *string) error {
	var processedAt *time.Time
	if derivedRef != nil {
		now := time.Now().UTC()
		processedAt = &now
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO raw_inputs (source_id, name, trade_date, derived_ref, processed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET
			name = excluded.name,
			trade_date = excluded.trade_date,
			derived_ref = COALESCE(excluded.derived_ref, raw_inputs.derived_ref),
			processed_at = COALESCE(excluded.processed_at, raw_inputs.processed_at)`,
		sourceID, name, formatDate(tradeDate), derivedRef, processedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert raw input %s", sourceID)
}

func (l *SQLiteLedger) MarkRawInputProcessed(ctx context.Context, sourceID, derivedRef string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE raw_inputs SET derived_ref = ?, processed_at = ? WHERE source_id = ?`,
		derivedRef, time.Now().UTC(), sourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark raw input processed %s", sourceID)
	}
	return checkRowsAffected(res, "raw input", sourceID)
}

func (l *SQLiteLedger) NeedsProcessing(ctx context.Context, sourceID string) (bool, error) {
	var derivedRef sql.NullString
	err := l.db.QueryRowContext(ctx,
		`SELECT derived_ref FROM raw_inputs WHERE source_id = ?`, sourceID,
	).Scan(&derivedRef)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: needs processing %s", sourceID)
	}
	return !derivedRef.Valid, nil
}

func (l *SQLiteLedger) PendingRawInputs(ctx context.Context) ([]model.RawInput, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, source_id, name, trade_date, derived_ref, processed_at
		 FROM raw_inputs WHERE derived_ref IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending raw inputs")
	}
	defer rows.Close()

	var inputs []model.RawInput
	for rows.Next() {
		var in model.RawInput
		var tradeDate string
		var derivedRef sql.NullString
		var processedAt sql.NullTime
		if err := rows.Scan(&in.ID, &in.SourceID, &in.Name, &tradeDate, &derivedRef, &processedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw input")
		}
		if in.TradeDate, err = parseDate(tradeDate); err != nil {
			return nil, err
		}
		if derivedRef.Valid {
			in.DerivedRef = &derivedRef.String
		}
		if processedAt.Valid {
			in.ProcessedAt = &processedAt.Time
		}
		inputs = append(inputs, in)
	}
	return inputs, eris.Wrap(rows.Err(), "sqlite: pending raw inputs iterate")
}

func (l *SQLiteLedger) UpsertDailyReport(ctx context.Context, sourceID, name string, reportDate time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO daily_reports (source_id, name, report_date)
		 VALUES (?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET
			name = excluded.name,
			report_date = excluded.report_date`,
		sourceID, name, formatDate(reportDate),
	)
	return eris.Wrapf(err, "sqlite: upsert daily report %s", sourceID)
}

// PendingForWeek returns daily reports not yet folded into a weekly report
// whose report date falls in the given ISO week. Week membership is derived
// from the report date after the fact, so the filter runs in memory over
// all pending rows rather than against an indexed column.
func (l *SQLiteLedger) PendingForWeek(ctx context.Context, isoYear, isoWeek int) ([]model.DailyReport, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, source_id, name, report_date, included_in_weekly
		 FROM daily_reports WHERE included_in_weekly = 0 ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending for week")
	}
	defer rows.Close()

	var reports []model.DailyReport
	for rows.Next() {
		rep, err := scanDailyReport(rows)
		if err != nil {
			return nil, err
		}
		if y, w := period.ISOWeekKey(rep.ReportDate); y == isoYear && w == isoWeek {
			reports = append(reports, *rep)
		}
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: pending for week iterate")
}

func (l *SQLiteLedger) MarkDailyIncluded(ctx context.Context, ids []int64) error {
	return l.markIncluded(ctx, `UPDATE daily_reports SET included_in_weekly = 1 WHERE id = ?`, "daily", ids)
}

func (l *SQLiteLedger) UpsertWeeklyReport(ctx context.Context, rep model.WeeklyReport) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO weekly_reports (source_id, name, iso_year, iso_week, week_start, week_end)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET
			name = excluded.name,
			iso_year = excluded.iso_year,
			iso_week = excluded.iso_week,
			week_start = excluded.week_start,
			week_end = excluded.week_end`,
		rep.SourceID, rep.Name, rep.ISOYear, rep.ISOWeek, formatDate(rep.WeekStart), formatDate(rep.WeekEnd),
	)
	return eris.Wrapf(err, "sqlite: upsert weekly report %s", rep.SourceID)
}

// PendingForMonth returns weekly reports not yet folded into a monthly
// report whose week overlaps the given month. Overlap rather than
// containment: ISO weeks cross month boundaries, and a week spanning two
// months is a candidate for both adjacent monthly rollups until one of
// them consumes it.
func (l *SQLiteLedger) PendingForMonth(ctx context.Context, year, month int) ([]model.WeeklyReport, error) {
	monthStart, monthEnd, err := period.MonthRange(year, month)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, source_id, name, iso_year, iso_week, week_start, week_end, included_in_monthly
		 FROM weekly_reports WHERE included_in_monthly = 0 ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending for month")
	}
	defer rows.Close()

	var reports []model.WeeklyReport
	for rows.Next() {
		rep, err := scanWeeklyReport(rows)
		if err != nil {
			return nil, err
		}
		if period.Overlaps(rep.WeekStart, rep.WeekEnd, monthStart, monthEnd) {
			reports = append(reports, *rep)
		}
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: pending for month iterate")
}

func (l *SQLiteLedger) MarkWeeklyIncluded(ctx context.Context, ids []int64) error {
	return l.markIncluded(ctx, `UPDATE weekly_reports SET included_in_monthly = 1 WHERE id = ?`, "weekly", ids)
}

// markIncluded flips consumption flags for the given ids in one
// transaction so a batch is applied all-or-nothing.
func (l *SQLiteLedger) markIncluded(ctx context.Context, query, kind string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin mark %s included", kind)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return eris.Wrapf(err, "sqlite: mark %s report %d included", kind, id)
		}
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit mark %s included", kind)
}

func (l *SQLiteLedger) UpsertMonthlyReport(ctx context.Context, rep model.MonthlyReport) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO monthly_reports (source_id, name, year, month, month_start, month_end)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET
			name = excluded.name,
			year = excluded.year,
			month = excluded.month,
			month_start = excluded.month_start,
			month_end = excluded.month_end`,
		rep.SourceID, rep.Name, rep.Year, rep.Month, formatDate(rep.MonthStart), formatDate(rep.MonthEnd),
	)
	return eris.Wrapf(err, "sqlite: upsert monthly report %s", rep.SourceID)
}

func (l *SQLiteLedger) StartStageRun(ctx context.Context, stage model.Stage) (*model.StageRun, error) {
	run := &model.StageRun{
		ID:        uuid.New().String(),
		Stage:     stage,
		StartedAt: time.Now().UTC(),
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO stage_runs (id, stage, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Stage), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: start %s run", stage)
	}
	return run, nil
}

func (l *SQLiteLedger) FinishStageRun(ctx context.Context, runID string, report model.RunReport) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE stage_runs SET finished_at = ?, succeeded = ?, failed = ? WHERE id = ?`,
		time.Now().UTC(), report.Succeeded, report.Failed(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish stage run %s", runID)
	}
	return checkRowsAffected(res, "stage run", runID)
}

func (l *SQLiteLedger) ListStageRuns(ctx context.Context, limit int) ([]model.StageRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, stage, started_at, finished_at, succeeded, failed
		 FROM stage_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stage runs")
	}
	defer rows.Close()

	var runs []model.StageRun
	for rows.Next() {
		var r model.StageRun
		var stage string
		var finishedAt sql.NullTime
		if err := rows.Scan(&r.ID, &stage, &r.StartedAt, &finishedAt, &r.Succeeded, &r.Failed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage run")
		}
		r.Stage = model.Stage(stage)
		if finishedAt.Valid {
			r.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list stage runs iterate")
}

func (l *SQLiteLedger) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	queries := []struct {
		dst   *int
		query string
	}{
		{&c.RawInputs, `SELECT COUNT(*) FROM raw_inputs`},
		{&c.RawPending, `SELECT COUNT(*) FROM raw_inputs WHERE derived_ref IS NULL`},
		{&c.DailyReports, `SELECT COUNT(*) FROM daily_reports`},
		{&c.DailyPending, `SELECT COUNT(*) FROM daily_reports WHERE included_in_weekly = 0`},
		{&c.WeeklyReports, `SELECT COUNT(*) FROM weekly_reports`},
		{&c.WeeklyPending, `SELECT COUNT(*) FROM weekly_reports WHERE included_in_monthly = 0`},
		{&c.MonthlyReports, `SELECT COUNT(*) FROM monthly_reports`},
	}
	for _, q := range queries {
		if err := l.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return Counts{}, eris.Wrapf(err, "sqlite: counts %s", q.query)
		}
	}
	return c, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDailyReport(row scannable) (*model.DailyReport, error) {
	var rep model.DailyReport
	var reportDate string
	var included int
	if err := row.Scan(&rep.ID, &rep.SourceID, &rep.Name, &reportDate, &included); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan daily report")
	}
	var err error
	if rep.ReportDate, err = parseDate(reportDate); err != nil {
		return nil, err
	}
	rep.IncludedInWeekly = included != 0
	return &rep, nil
}

func scanWeeklyReport(row scannable) (*model.WeeklyReport, error) {
	var rep model.WeeklyReport
	var weekStart, weekEnd string
	var included int
	if err := row.Scan(&rep.ID, &rep.SourceID, &rep.Name, &rep.ISOYear, &rep.ISOWeek, &weekStart, &weekEnd, &included); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan weekly report")
	}
	var err error
	if rep.WeekStart, err = parseDate(weekStart); err != nil {
		return nil, err
	}
	if rep.WeekEnd, err = parseDate(weekEnd); err != nil {
		return nil, err
	}
	rep.IncludedInMonthly = included != 0
	return &rep, nil
}
