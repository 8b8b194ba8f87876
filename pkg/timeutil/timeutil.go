// Package timeutil provides UTC window utilities for the PropsHub scoring
// engine. Scoring windows are half-open [from, to) intervals in UTC; every
// scoreboard and winner sweep works in UTC regardless of where participants
// are. No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a UTC time with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in UTC.
func StartOfWeek(t time.Time) time.Time {
	u := t.UTC()
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(u.AddDate(0, 0, -(weekday - 1)))
}

// StartOfMonth returns the start of the month in UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayWindow returns the half-open [from, to) window of the day containing t.
func DayWindow(t time.Time) (from, to time.Time) {
	from = StartOfDay(t)
	return from, from.AddDate(0, 0, 1)
}

// WeekWindow returns the half-open [from, to) window of the ISO week
// (Monday through Sunday) containing t.
func WeekWindow(t time.Time) (from, to time.Time) {
	from = StartOfWeek(t)
	return from, from.AddDate(0, 0, 7)
}

// PreviousWeekWindow returns the window of the last fully completed week
// before t. Used by the weekly team grading sweep: a week is only graded
// once it can no longer accumulate takes.
func PreviousWeekWindow(t time.Time) (from, to time.Time) {
	to = StartOfWeek(t)
	return to.AddDate(0, 0, -7), to
}

// MonthWindow returns the half-open [from, to) window of the month containing t.
func MonthWindow(t time.Time) (from, to time.Time) {
	from = StartOfMonth(t)
	return from, from.AddDate(0, 1, 0)
}

// IsSameDay checks if two times are on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// DaysBetween calculates the number of UTC days between two times.
func DaysBetween(t1, t2 time.Time) int {
	d1 := StartOfDay(t1)
	d2 := StartOfDay(t2)
	days := int(d2.Sub(d1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatCompact is the compact timestamp format used in window refs.
	FormatCompact = "20060102T150405Z"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// FormatWindow formats a half-open window as "from..to" in UTC.
func FormatWindow(from, to time.Time) string {
	return fmt.Sprintf("%s..%s", from.UTC().Format(FormatCompact), to.UTC().Format(FormatCompact))
}

// ParseDate parses a date string (YYYY-MM-DD) as UTC.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}

// ParseDateTime parses a datetime string as UTC.
func ParseDateTime(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDateTime, value, time.UTC)
}
