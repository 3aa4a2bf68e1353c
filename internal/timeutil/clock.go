package timeutil

import (
	"time"
)

// WIB is Western Indonesia Time (UTC+7), the marketplace's billing zone.
var WIB *time.Location

func init() {
	var err error
	WIB, err = time.LoadLocation("Asia/Jakarta")
	if err != nil {
		// Fallback: fixed zone if tzdata is missing
		WIB = time.FixedZone("WIB", 7*60*60)
	}
}

// Clock is the "now" source for the rental core.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = WIB
	}
	return time.Now().In(loc)
}

// LoadLocation resolves a configured zone name, falling back to WIB.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return WIB
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return WIB
	}
	return loc
}

// DaysIn returns the number of days in month m of year y.
func DaysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// StartOfDay returns local midnight of t in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Common layouts
const (
	DateLayout    = "2006-01-02"
	MonthLayout   = "200601"
	DisplayLayout = "02 Jan 2006"
)
