package model

import "time"

// RawInput is a raw trade-log file observed in the source folder. The
// SourceID is the file store's id for the file and is the row's identity.
// DerivedRef points at the daily report produced from it; it is non-nil
// exactly when ProcessedAt is non-nil.
type RawInput struct {
	ID          int64      `json:"id"`
	SourceID    string     `json:"source_id"`
	Name        string     `json:"name"`
	TradeDate   time.Time  `json:"trade_date"`
	DerivedRef  *string    `json:"derived_ref,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Processed reports whether the raw input has already produced a daily
// report.
func (r RawInput) Processed() bool {
	return r.DerivedRef != nil
}

// DailyReport is a generated daily brief stored in the file store.
type DailyReport struct {
	ID               int64     `json:"id"`
	SourceID         string    `json:"source_id"`
	Name             string    `json:"name"`
	ReportDate       time.Time `json:"report_date"`
	IncludedInWeekly bool      `json:"included_in_weekly"`
}

// WeeklyReport is a generated weekly brief covering one ISO week.
// WeekEnd is always WeekStart plus six days.
type WeeklyReport struct {
	ID                int64     `json:"id"`
	SourceID          string    `json:"source_id"`
	Name              string    `json:"name"`
	ISOYear           int       `json:"iso_year"`
	ISOWeek           int       `json:"iso_week"`
	WeekStart         time.Time `json:"week_start"`
	WeekEnd           time.Time `json:"week_end"`
	IncludedInMonthly bool      `json:"included_in_monthly"`
}

// MonthlyReport is a generated monthly brief covering one calendar month.
type MonthlyReport struct {
	ID         int64     `json:"id"`
	SourceID   string    `json:"source_id"`
	Name       string    `json:"name"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	MonthStart time.Time `json:"month_start"`
	MonthEnd   time.Time `json:"month_end"`
}
