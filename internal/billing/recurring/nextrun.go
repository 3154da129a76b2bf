package recurring

import "time"

// NextRunDate advances the generation cursor by one interval. Weekly steps
// exactly seven days. The month-based frequencies step whole calendar months
// with day clamping, so a schedule anchored on Jan 31 runs on Feb 28 (or 29)
// rather than overflowing into March the way naive AddDate arithmetic would.
func NextRunDate(d time.Time, f Frequency) time.Time {
	if f == FrequencyWeekly {
		return d.AddDate(0, 0, 7)
	}
	return addMonthsClamped(d, f.months())
}

func addMonthsClamped(d time.Time, months int) time.Time {
	year, month, day := d.Date()
	m := int(month) - 1 + months
	year += m / 12
	month = time.Month(m%12 + 1)
	if last := daysIn(year, month); day > last {
		day = last
	}
	h, min, sec := d.Clock()
	return time.Date(year, month, day, h, min, sec, d.Nanosecond(), d.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
