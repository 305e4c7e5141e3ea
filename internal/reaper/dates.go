// Package reaper implements the workspace deletion workflow: reading the
// intake sheet, deciding which rows are due, enumerating and deleting the
// referenced workspaces, and writing the status back.
package reaper

import (
	"fmt"
	"time"
)

// isoDate is the calendar-date layout used by sheet date cells.
const isoDate = "2006-01-02"

// Today returns the current calendar date in the given IANA timezone,
// formatted YYYY-MM-DD. It is computed once per run and reused for every
// row so a date rollover mid-run cannot make two rows see different days.
func Today(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("reaper: loading timezone %q: %w", tz, err)
	}

	return time.Now().In(loc).Format(isoDate), nil
}

// ShouldDelete reports whether a workspace is due for deletion.
//
// A row is due when today is on or after the deletion date AND today is
// not the EM notification date. The notification date is a "warn but don't
// act" day: even an overdue row must not be deleted on the day a
// stakeholder is being warned.
//
// All three inputs are YYYY-MM-DD strings. A malformed deletion date or
// today value makes the row ineligible rather than failing the run.
func ShouldDelete(emNotificationDate, deletionDate, today string) bool {
	due, err := onOrAfter(today, deletionDate)
	if err != nil {
		return false
	}

	return due && today != emNotificationDate
}

// onOrAfter reports whether day a is on or after day b.
func onOrAfter(a, b string) (bool, error) {
	dayA, err := time.Parse(isoDate, a)
	if err != nil {
		return false, fmt.Errorf("reaper: invalid date %q: %w", a, err)
	}

	dayB, err := time.Parse(isoDate, b)
	if err != nil {
		return false, fmt.Errorf("reaper: invalid date %q: %w", b, err)
	}

	return !dayA.Before(dayB), nil
}
