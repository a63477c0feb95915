package referral

import "time"

// WeekStart returns the Monday 00:00 of the ISO week containing t,
// in t's location.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// WeekWindow returns the half-open [start, end) of the ISO week containing t.
func WeekWindow(t time.Time) (start, end time.Time) {
	start = WeekStart(t)
	return start, start.AddDate(0, 0, 7)
}

// PreviousWeekWindow returns the most recently closed week relative to t.
func PreviousWeekWindow(t time.Time) (start, end time.Time) {
	end = WeekStart(t)
	return end.AddDate(0, 0, -7), end
}

// MonthWindow returns the half-open [start, end) of the calendar month
// containing t.
func MonthWindow(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// PreviousMonthWindow returns the most recently closed month relative to t.
func PreviousMonthWindow(t time.Time) (start, end time.Time) {
	end = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return end.AddDate(0, -1, 0), end
}
