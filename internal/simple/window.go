package simple

import (
	"time"

	"seisqc/internal/domain"
	"seisqc/internal/util"
)

// DayCount returns floor((end-start)/24h) + 1, the number of day windows
// considered for r before the degenerate tail is dropped.
func DayCount(r domain.TimeRange) int {
	return int(r.Duration()/util.Day) + 1
}

// DayWindows decomposes r into UTC calendar-day windows. Window i covers the
// whole calendar day containing r.Start + i days. A window starting exactly
// at r.End is skipped.
func DayWindows(r domain.TimeRange) []domain.TimeRange {
	n := DayCount(r)
	out := make([]domain.TimeRange, 0, n)
	for day := 0; day < n; day++ {
		start := util.StartOfUTCDay(r.Start.Add(time.Duration(day) * util.Day))
		if start.Equal(r.End) {
			continue
		}
		out = append(out, domain.TimeRange{Start: start, End: start.Add(util.Day)})
	}
	return out
}
