package insights

import (
	"fmt"
	"time"

	"github.com/go-while/go-moodtracker/internal/models"
)

// Period is a chart window
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "week" or "month"; empty means week
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodWeek:
		return PeriodWeek, nil
	case PeriodMonth:
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("unknown period %q (want week or month)", s)
}

// Days returns the number of calendar days in the window, today included
func (p Period) Days() int {
	if p == PeriodMonth {
		return 30
	}
	return 7
}

// Start returns local midnight of the first day of the window ending today
func (p Period) Start(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day()-(p.Days()-1), 0, 0, 0, 0, loc)
}

// FilterByPeriod keeps entries recorded inside the window and returns them oldest first
func FilterByPeriod(entries []*models.MoodEntry, p Period, now time.Time, loc *time.Location) []*models.MoodEntry {
	start := p.Start(now, loc).UnixMilli()
	var out []*models.MoodEntry
	for _, e := range sortedOldestFirst(entries) {
		if e.Timestamp >= start {
			out = append(out, e)
		}
	}
	return out
}
