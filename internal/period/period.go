// Package period computes calendar boundaries for the rollup stages:
// day keys, ISO-8601 weeks (Monday through Sunday), and calendar months.
// All functions are pure and operate on date-only values in UTC.
package period

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrBadPeriod is returned when a requested period is outside the valid
// calendar range.
var ErrBadPeriod = eris.New("period: invalid period")

// Date truncates t to a date-only value in UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey returns the key identifying the day containing d. A day is its
// own key.
func DayKey(d time.Time) time.Time {
	return Date(d)
}

// ISOWeekKey returns the ISO-8601 (year, week) pair for d. Week 1 is the
// week containing the year's first Thursday; weeks start on Monday.
func ISOWeekKey(d time.Time) (isoYear, isoWeek int) {
	return Date(d).ISOWeek()
}

// WeekRange returns the Monday and Sunday bounding the given ISO week.
func WeekRange(isoYear, isoWeek int) (start, end time.Time, err error) {
	if isoWeek < 1 || isoWeek > 53 {
		return time.Time{}, time.Time{}, eris.Wrapf(ErrBadPeriod, "iso week %d", isoWeek)
	}

	// January 4th is always inside ISO week 1 of its year. Step back to
	// that week's Monday, then forward to the requested week.
	jan4 := time.Date(isoYear, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)

	start = week1Monday.AddDate(0, 0, (isoWeek-1)*7)
	if y, w := start.ISOWeek(); y != isoYear || w != isoWeek {
		return time.Time{}, time.Time{}, eris.Wrapf(ErrBadPeriod, "iso week %d-W%02d does not exist", isoYear, isoWeek)
	}
	return start, start.AddDate(0, 0, 6), nil
}

// MonthRange returns the first and last day of the given calendar month.
func MonthRange(year, month int) (start, end time.Time, err error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, eris.Wrapf(ErrBadPeriod, "month %d", month)
	}
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, -1)
	return start, end, nil
}

// PreviousMonth returns the full range of the calendar month immediately
// before the month containing ref: step to day 1 of ref's month, go back
// one day, and take that month's range.
func PreviousMonth(ref time.Time) (start, end time.Time) {
	firstOfMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastOfPrev := firstOfMonth.AddDate(0, 0, -1)
	start, end, _ = MonthRange(lastOfPrev.Year(), int(lastOfPrev.Month()))
	return start, end
}

// Overlaps reports whether the closed intervals [aStart, aEnd] and
// [bStart, bEnd] share at least one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}
