package common

import (
	"math"
	"regexp"
	"time"
)

const (
	// DayLayout is the storage form of a calendar day.
	DayLayout = "2006-01-02"
	// InputDateLayout is the form clients submit dates in.
	InputDateLayout = "02/01/2006"
)

var inputDateRegex = regexp.MustCompile(`^(0[1-9]|[12][0-9]|3[01])/(0[1-9]|1[0-2])/\d{4}$`)

// ParseInputDate parses a strict DD/MM/YYYY string into a storage day.
// Impossible dates such as 31/02/2025 are rejected.
func ParseInputDate(s string) (string, bool) {
	if !inputDateRegex.MatchString(s) {
		return "", false
	}
	t, err := time.Parse(InputDateLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(DayLayout), true
}

// FormatInputDate renders a storage day as DD/MM/YYYY.
func FormatInputDate(day string) string {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return day
	}
	return t.Format(InputDateLayout)
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}

// AddDays shifts a storage day by n days. Arithmetic is done in UTC so
// daylight-saving transitions never skip or repeat a day.
func AddDays(day string, n int) string {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, n).Format(DayLayout)
}

// DaysBetween returns the number of whole days from a to b.
func DaysBetween(a, b string) int {
	ta, errA := time.Parse(DayLayout, a)
	tb, errB := time.Parse(DayLayout, b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}
