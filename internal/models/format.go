package models

import "time"

// PendingLabel is shown for timestamps that are missing or cannot be interpreted.
const PendingLabel = "Pending"

// DisplayLayout is the layout used when rendering transaction dates.
const DisplayLayout = "02 Jan 2006 15:04"

// maxDisplayMillis bounds timestamps to year 9999 so bogus values never render.
const maxDisplayMillis = 253402300799999

// HasTimestamp reports whether ms is a server timestamp that can be displayed and bucketed.
func HasTimestamp(ms int64) bool {
	return ms > 0 && ms <= maxDisplayMillis
}

// FormatCreatedAt renders a millisecond timestamp for display in loc.
// Non-positive or out of range values render as PendingLabel.
func FormatCreatedAt(ms int64, loc *time.Location) string {
	if !HasTimestamp(ms) {
		return PendingLabel
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format(DisplayLayout)
}
