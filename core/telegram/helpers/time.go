package helpers

import "time"

// CardTimeLayout is the timestamp format shown on moderation cards.
const CardTimeLayout = "2006-01-02 15:04 MST"

// FormatCardTime renders t in loc, falling back to UTC.
func FormatCardTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(CardTimeLayout)
}
