// Package timeparse converts free-form human time expressions into absolute
// future timestamps.
//
// Supported forms, tried in order (first match wins):
//   - "HH:MM"            today at that time; rolls to tomorrow if already past
//   - "DD.MM HH:MM"      this year; rolls to next year if already past
//   - "DD.MM.YYYY HH:MM" literal date, no rollover
//
// The parser is pure: it takes the reference moment as an argument and never
// touches storage or timers.
package timeparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFormat is returned for any input that does not match a supported
// form or carries an out-of-range field.
var ErrInvalidFormat = errors.New("invalid time format")

var (
	reClock    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	reDayMonth = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2}) (\d{1,2}):(\d{2})$`)
	reFullDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4}) (\d{1,2}):(\d{2})$`)
)

// Parse interprets raw relative to now. The result is expressed in now's
// location; rollover keeps the wall-clock fields and shifts day or year only.
func Parse(raw string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return time.Time{}, ErrInvalidFormat
	}

	if m := reClock.FindStringSubmatch(s); m != nil {
		hour, minute, err := clockFields(m[1], m[2])
		if err != nil {
			return time.Time{}, err
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	if m := reDayMonth.FindStringSubmatch(s); m != nil {
		day, month, err := dateFields(m[1], m[2])
		if err != nil {
			return time.Time{}, err
		}
		hour, minute, err := clockFields(m[3], m[4])
		if err != nil {
			return time.Time{}, err
		}
		t, err := buildDate(now.Year(), month, day, hour, minute, now.Location())
		if err != nil {
			return time.Time{}, err
		}
		// A date+time already behind us means "next year this date",
		// not tomorrow.
		if !t.After(now) {
			t = t.AddDate(1, 0, 0)
		}
		return t, nil
	}

	if m := reFullDate.FindStringSubmatch(s); m != nil {
		day, month, err := dateFields(m[1], m[2])
		if err != nil {
			return time.Time{}, err
		}
		year, err := strconv.Atoi(m[3])
		if err != nil {
			return time.Time{}, ErrInvalidFormat
		}
		hour, minute, err := clockFields(m[4], m[5])
		if err != nil {
			return time.Time{}, err
		}
		// Literal: no rollover regardless of now.
		return buildDate(year, month, day, hour, minute, now.Location())
	}

	return time.Time{}, ErrInvalidFormat
}

func clockFields(hs, ms string) (hour, minute int, err error) {
	hour, err = strconv.Atoi(hs)
	if err != nil {
		return 0, 0, ErrInvalidFormat
	}
	minute, err = strconv.Atoi(ms)
	if err != nil {
		return 0, 0, ErrInvalidFormat
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidFormat
	}
	return hour, minute, nil
}

func dateFields(ds, mos string) (day, month int, err error) {
	day, err = strconv.Atoi(ds)
	if err != nil {
		return 0, 0, ErrInvalidFormat
	}
	month, err = strconv.Atoi(mos)
	if err != nil {
		return 0, 0, ErrInvalidFormat
	}
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, 0, ErrInvalidFormat
	}
	return day, month, nil
}

// buildDate rejects dates that time.Date would normalize away (e.g. 31.02).
func buildDate(year, month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, ErrInvalidFormat
	}
	return t, nil
}
