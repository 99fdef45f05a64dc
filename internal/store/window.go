package store

import "time"

// CutoffMillis computes the epoch-millisecond cutoff for a listing window
// of the given number of calendar days in the reference zone. Day
// arithmetic is done on the civil calendar in loc, so a DST transition
// inside the window shifts the cutoff by the transition amount instead of
// assuming 24-hour days.
func CutoffMillis(now time.Time, days int, loc *time.Location) int64 {
	return now.In(loc).AddDate(0, 0, -days).UnixMilli()
}
