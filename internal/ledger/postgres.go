package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/trade-pulse/internal/model"
	"github.com/sells-group/trade-pulse/internal/period"
)

// PgxPool is the subset of pgxpool.Pool used by the Postgres ledger.
// pgxmock's pool implements it for unit tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresLedger implements Ledger using pgxpool.
type PostgresLedger struct {
	pool PgxPool
}

// NewPostgres creates a PostgresLedger with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresLedger, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 5
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresLedger{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS raw_inputs (
	id           BIGSERIAL PRIMARY KEY,
	source_id    TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	trade_date   DATE NOT NULL,
	derived_ref  TEXT,
	processed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS daily_reports (
	id                 BIGSERIAL PRIMARY KEY,
	source_id          TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL,
	report_date        DATE NOT NULL,
	included_in_weekly BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS weekly_reports (
	id                  BIGSERIAL PRIMARY KEY,
	source_id           TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL,
	iso_year            INT NOT NULL,
	iso_week            INT NOT NULL,
	week_start          DATE NOT NULL,
	week_end            DATE NOT NULL,
	included_in_monthly BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS monthly_reports (
	id          BIGSERIAL PRIMARY KEY,
	source_id   TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	year        INT NOT NULL,
	month       INT NOT NULL,
	month_start DATE NOT NULL,
	month_end   DATE NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	succeeded   INT NOT NULL DEFAULT 0,
	failed      INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_daily_reports_pending ON daily_reports(included_in_weekly);
CREATE INDEX IF NOT EXISTS idx_weekly_reports_pending ON weekly_reports(included_in_monthly);
CREATE INDEX IF NOT EXISTS idx_stage_runs_stage ON stage_runs(stage, started_at);
`

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresLedger) UpsertRawInput(ctx context.Context, sourceID, name string, tradeDate time.Time, derivedRef *string) error {
	var processedAt *time.Time
	if derivedRef != nil {
		now := time.Now().UTC()
		processedAt = &now
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO raw_inputs (source_id, name, trade_date, derived_ref, processed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source_id) DO UPDATE SET
			name = EXCLUDED.name,
			trade_date = EXCLUDED.trade_date,
			derived_ref = COALESCE(EXCLUDED.derived_ref, raw_inputs.derived_ref),
			processed_at = COALESCE(EXCLUDED.processed_at, raw_inputs.processed_at)`,
		sourceID, name, period.Date(tradeDate), derivedRef, processedAt,
	)
	return eris.Wrapf(err, "postgres: upsert raw input %s", sourceID)
}

func (l *PostgresLedger) MarkRawInputProcessed(ctx context.Context, sourceID, derivedRef string) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE raw_inputs SET derived_ref = $1, processed_at = $2 WHERE source_id = $3`,
		derivedRef, time.Now().UTC(), sourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark raw input processed %s", sourceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "raw input %s", sourceID)
	}
	return nil
}

func (l *PostgresLedger) NeedsProcessing(ctx context.Context, sourceID string) (bool, error) {
	var derivedRef *string
	err := l.pool.QueryRow(ctx,
		`SELECT derived_ref FROM raw_inputs WHERE source_id = $1`, sourceID,
	).Scan(&derivedRef)
	if err == pgx.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: needs processing %s", sourceID)
	}
	return derivedRef == nil, nil
}

func (l *PostgresLedger) PendingRawInputs(ctx context.Context) ([]model.RawInput, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, source_id, name, trade_date, derived_ref, processed_at
		 FROM raw_inputs WHERE derived_ref IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending raw inputs")
	}
	defer rows.Close()

	var inputs []model.RawInput
	for rows.Next() {
		var in model.RawInput
		if err := rows.Scan(&in.ID, &in.SourceID, &in.Name, &in.TradeDate, &in.DerivedRef, &in.ProcessedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw input")
		}
		inputs = append(inputs, in)
	}
	return inputs, eris.Wrap(rows.Err(), "postgres: pending raw inputs iterate")
}

func (l *PostgresLedger) UpsertDailyReport(ctx context.Context, sourceID, name string, reportDate time.Time) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO daily_reports (source_id, name, report_date)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (source_id) DO UPDATE SET
			name = EXCLUDED.name,
			report_date = EXCLUDED.report_date`,
		sourceID, name, period.Date(reportDate),
	)
	return eris.Wrapf(err, "postgres: upsert daily report %s", sourceID)
}

func (l *PostgresLedger) PendingForWeek(ctx context.Context, isoYear, isoWeek int) ([]model.DailyReport, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, source_id, name, report_date, included_in_weekly
		 FROM daily_reports WHERE included_in_weekly = FALSE ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending for week")
	}
	defer rows.Close()

	var reports []model.DailyReport
	for rows.Next() {
		var rep model.DailyReport
		if err := rows.Scan(&rep.ID, &rep.SourceID, &rep.Name, &rep.ReportDate, &rep.IncludedInWeekly); err != nil {
			return nil, eris.Wrap(err, "postgres: scan daily report")
		}
		if y, w := period.ISOWeekKey(rep.ReportDate); y == isoYear && w == isoWeek {
			reports = append(reports, rep)
		}
	}
	return reports, eris.Wrap(rows.Err(), "postgres: pending for week iterate")
}

func (l *PostgresLedger) MarkDailyIncluded(ctx context.Context, ids []int64) error {
	return l.markIncluded(ctx, `UPDATE daily_reports SET included_in_weekly = TRUE WHERE id = $1`, "daily", ids)
}

func (l *PostgresLedger) UpsertWeeklyReport(ctx context.Context, rep model.WeeklyReport) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO weekly_reports (source_id, name, iso_year, iso_week, week_start, week_end)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (source_id) DO UPDATE SET
			name = EXCLUDED.name,
			iso_year = EXCLUDED.iso_year,
			iso_week = EXCLUDED.iso_week,
			week_start = EXCLUDED.week_start,
			week_end = EXCLUDED.week_end`,
		rep.SourceID, rep.Name, rep.ISOYear, rep.ISOWeek, period.Date(rep.WeekStart), period.Date(rep.WeekEnd),
	)
	return eris.Wrapf(err, "postgres: upsert weekly report %s", rep.SourceID)
}

func (l *PostgresLedger) PendingForMonth(ctx context.Context, year, month int) ([]model.WeeklyReport, error) {
	monthStart, monthEnd, err := period.MonthRange(year, month)
	if err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, source_id, name, iso_year, iso_week, week_start, week_end, included_in_monthly
		 FROM weekly_reports WHERE included_in_monthly = FALSE ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending for month")
	}
	defer rows.Close()

	var reports []model.WeeklyReport
	for rows.Next() {
		var rep model.WeeklyReport
		if err := rows.Scan(&rep.ID, &rep.SourceID, &rep.Name, &rep.ISOYear, &rep.ISOWeek,
			&rep.WeekStart, &rep.WeekEnd, &rep.IncludedInMonthly); err != nil {
			return nil, eris.Wrap(err, "postgres: scan weekly report")
		}
		if period.Overlaps(rep.WeekStart, rep.WeekEnd, monthStart, monthEnd) {
			reports = append(reports, rep)
		}
	}
	return reports, eris.Wrap(rows.Err(), "postgres: pending for month iterate")
}

func (l *PostgresLedger) MarkWeeklyIncluded(ctx context.Context, ids []int64) error {
	return l.markIncluded(ctx, `UPDATE weekly_reports SET included_in_monthly = TRUE WHERE id = $1`, "weekly", ids)
}

func (l *PostgresLedger) markIncluded(ctx context.Context, query, kind string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin mark %s included", kind)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, id := range ids {
		if _, err := tx.Exec(ctx, query, id); err != nil {
			return eris.Wrapf(err, "postgres: mark %s report %d included", kind, id)
		}
	}
	return eris.Wrapf(tx.Commit(ctx), "postgres: commit mark %s included", kind)
}

func (l *PostgresLedger) UpsertMonthlyReport(ctx context.Context, rep model.MonthlyReport) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO monthly_reports (source_id, name, year, month, month_start, month_end)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (source_id) DO UPDATE SET
			name = EXCLUDED.name,
			year = EXCLUDED.year,
			month = EXCLUDED.month,
			month_start = EXCLUDED.month_start,
			month_end = EXCLUDED.month_end`,
		rep.SourceID, rep.Name, rep.Year, rep.Month, period.Date(rep.MonthStart), period.Date(rep.MonthEnd),
	)
	return eris.Wrapf(err, "postgres: upsert monthly report %s", rep.SourceID)
}

func (l *PostgresLedger) StartStageRun(ctx context.Context, stage model.Stage) (*model.StageRun, error) {
	run := &model.StageRun{
		ID:        uuid.New().String(),
		Stage:     stage,
		StartedAt: time.Now().UTC(),
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO stage_runs (id, stage, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Stage), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: start %s run", stage)
	}
	return run, nil
}

func (l *PostgresLedger) FinishStageRun(ctx context.Context, runID string, report model.RunReport) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE stage_runs SET finished_at = $1, succeeded = $2, failed = $3 WHERE id = $4`,
		time.Now().UTC(), report.Succeeded, report.Failed(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish stage run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "stage run %s", runID)
	}
	return nil
}

func (l *PostgresLedger) ListStageRuns(ctx context.Context, limit int) ([]model.StageRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, stage, started_at, finished_at, succeeded, failed
		 FROM stage_runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stage runs")
	}
	defer rows.Close()

	var runs []model.StageRun
	for rows.Next() {
		var r model.StageRun
		var stage string
		if err := rows.Scan(&r.ID, &stage, &r.StartedAt, &r.FinishedAt, &r.Succeeded, &r.Failed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage run")
		}
		r.Stage = model.Stage(stage)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list stage runs iterate")
}

func (l *PostgresLedger) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := l.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM raw_inputs),
			(SELECT COUNT(*) FROM raw_inputs WHERE derived_ref IS NULL),
			(SELECT COUNT(*) FROM daily_reports),
			(SELECT COUNT(*) FROM daily_reports WHERE included_in_weekly = FALSE),
			(SELECT COUNT(*) FROM weekly_reports),
			(SELECT COUNT(*) FROM weekly_reports WHERE included_in_monthly = FALSE),
			(SELECT COUNT(*) FROM monthly_reports)`,
	).Scan(&c.RawInputs, &c.RawPending, &c.DailyReports, &c.DailyPending,
		&c.WeeklyReports, &c.WeeklyPending, &c.MonthlyReports)
	if err != nil {
		return Counts{}, eris.Wrap(err, "postgres: counts")
	}
	return c, nil
}
