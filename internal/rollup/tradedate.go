package rollup

import (
	"regexp"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trade-pulse/internal/period"
)

var tradeDatePattern = regexp.MustCompile(`(\d{2})_(\d{2})_(\d{4})`)

// TradeDate derives the trade date for a raw file using a three-tier
// fallback: an MM_DD_YYYY token in the file name, then the file's
// modified time, then now. A matched token that names an impossible
// date is an error rather than a silent fallback.
func TradeDate(name string, modified *time.Time, now time.Time) (time.Time, error) {
	if m := tradeDatePattern.FindStringSubmatch(name); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])

		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes out-of-range components; reject them instead.
		if d.Year() != year || int(d.Month()) != month || d.Day() != day {
			return time.Time{}, eris.Errorf("rollup: invalid trade date %s_%s_%s in %q", m[1], m[2], m[3], name)
		}
		return d, nil
	}
	if modified != nil {
		return period.Date(*modified), nil
	}
	return period.Date(now), nil
}
