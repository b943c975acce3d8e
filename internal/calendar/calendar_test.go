package calendar

import (
	"testing"
	"time"
)

func TestWeekLabel(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"last days of december in next year's first week", time.Date(2019, 12, 31, 12, 0, 0, 0, time.UTC), "2020W01"},
		{"first days of january in previous year's last week", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), "2020W53"},
		{"single digit week is padded", time.Date(2023, 2, 1, 8, 30, 0, 0, time.UTC), "2023W05"},
		{"mid year", time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), "2024W29"},
		{"epoch", time.Unix(0, 0), "1970W01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekLabel(tt.at.UnixMilli()); got != tt.want {
				t.Errorf("WeekLabel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeek_UsesUTC(t *testing.T) {
	// 2021-01-03 23:30 in UTC-5 is Monday 2021-01-04 in UTC.
	loc := time.FixedZone("UTC-5", -5*60*60)
	at := time.Date(2021, 1, 3, 23, 30, 0, 0, loc)

	if got := Week(at); got != "2021W01" {
		t.Errorf("Week() = %v, want 2021W01", got)
	}
}

func TestDate(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60))
	if got := Date(at); got != "2024-03-09" {
		t.Errorf("Date() = %v, want 2024-03-09", got)
	}
}
