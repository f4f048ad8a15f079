package meals

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DayWindow converts a client-local date plus the client's UTC offset in
// minutes into the half-open UTC interval [start, end) covering that
// local day. A positive offset means the client is behind UTC, matching
// JavaScript's Date.getTimezoneOffset convention.
func DayWindow(date string, tzOffsetMinutes int) (time.Time, time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	start := parsed.Add(time.Duration(tzOffsetMinutes) * time.Minute)
	return start, start.Add(24 * time.Hour), nil
}
