package markethours

import "time"

// CME equity-futures holiday calendar for 2026 (Chicago dates).
var cmeClosed2026 = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.April, 3},     // Good Friday
	{time.December, 25}, // Christmas
}

// Early halts: trading stops at the given local time.
var cmeEarly2026 = []struct {
	month        time.Month
	day          int
	hour, minute int
}{
	{time.January, 19, 12, 0},   // Martin Luther King Jr. Day
	{time.February, 16, 12, 0},  // Presidents Day
	{time.May, 25, 12, 0},       // Memorial Day
	{time.June, 19, 12, 0},      // Juneteenth
	{time.July, 3, 12, 0},       // Independence Day (observed)
	{time.September, 7, 12, 0},  // Labor Day
	{time.November, 26, 12, 0},  // Thanksgiving
	{time.November, 27, 12, 15}, // Day after Thanksgiving
	{time.December, 24, 12, 15}, // Christmas Eve
}

// pre-compute for fast lookup
var (
	holidaySet map[string]bool
	earlySet   map[string][2]int
)

func init() {
	holidaySet = make(map[string]bool, len(cmeClosed2026))
	for _, h := range cmeClosed2026 {
		holidaySet[dateKey(2026, h.month, h.day)] = true
	}
	earlySet = make(map[string][2]int, len(cmeEarly2026))
	for _, h := range cmeEarly2026 {
		earlySet[dateKey(2026, h.month, h.day)] = [2]int{h.hour, h.minute}
	}
}

// IsHoliday returns true if t's date (as given, not converted) is a full CME closure.
func IsHoliday(t time.Time) bool {
	return holidaySet[dateKey(t.Year(), t.Month(), t.Day())]
}

// EarlyClose returns the halt time if t's date is an early-close day.
func EarlyClose(t time.Time) (hour, minute int, ok bool) {
	hm, ok := earlySet[dateKey(t.Year(), t.Month(), t.Day())]
	return hm[0], hm[1], ok
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}
