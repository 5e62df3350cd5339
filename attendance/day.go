package attendance

import (
	"fmt"
	"time"

	"github.com/camden-git/attendancebackend/models"
)

// DayKey returns the calendar day of t in loc, formatted as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(models.DayLayout)
}

// ParseDay returns local midnight of a YYYY-MM-DD day key in loc.
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(models.DayLayout, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t, nil
}

// DaysBetween lists every day key from 'from' to 'to' inclusive.
func DaysBetween(from, to string) ([]string, error) {
	start, err := ParseDay(from, time.UTC)
	if err != nil {
		return nil, err
	}
	end, err := ParseDay(to, time.UTC)
	if err != nil {
		return nil, err
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(models.DayLayout))
	}
	return days, nil
}
