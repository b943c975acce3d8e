// Package calendar formats partition labels from event times.
package calendar

import (
	"fmt"
	"time"
)

// WeekLabel returns the ISO 8601 week of the UTC instant ms (epoch
// milliseconds) as "YYYYWww". The year is the ISO week-numbering year, so
// 2019-12-31 is 2020W01 and 2021-01-01 is 2020W53.
func WeekLabel(ms int64) string {
	return Week(time.UnixMilli(ms))
}

// Week returns the ISO week label of t in UTC.
func Week(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%dW%02d", year, week)
}

// Date returns t in UTC as YYYY-MM-DD.
func Date(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
