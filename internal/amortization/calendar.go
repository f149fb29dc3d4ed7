package amortization

import (
	"fmt"
	"strings"
	"time"
)

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annually  Frequency = "annually"
)

// Frequency is how often a loan payment falls due.
type Frequency string

// PeriodsPerYear returns 12, 4 or 1 for the supported frequencies.
func (f Frequency) PeriodsPerYear() (int, error) {
	switch f {
	case Monthly:
		return 12, nil
	case Quarterly:
		return 4, nil
	case Annually:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: unsupported payment frequency %q", ErrInvalidTerm, string(f))
	}
}

// IsValid returns true if the frequency is supported
func (f Frequency) IsValid() bool {
	_, err := f.PeriodsPerYear()
	return err == nil
}

// ParseFrequency accepts the canonical names plus a few common aliases
// ("month", "quarter", "yearly", "annual").
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return Monthly, nil
	case "quarterly", "quarter":
		return Quarterly, nil
	case "annually", "annual", "yearly", "year":
		return Annually, nil
	default:
		return "", fmt.Errorf("%w: unsupported payment frequency %q", ErrInvalidTerm, s)
	}
}

// FrequencyFor maps periods-per-year back to a Frequency.
func FrequencyFor(periodsPerYear int) (Frequency, error) {
	switch periodsPerYear {
	case 12:
		return Monthly, nil
	case 4:
		return Quarterly, nil
	case 1:
		return Annually, nil
	default:
		return "", fmt.Errorf("%w: unsupported periods per year %d", ErrInvalidTerm, periodsPerYear)
	}
}

// AddMonths advances t by n calendar months. When the day of month does not
// exist in the target month the result is clamped to that month's last day,
// so Jan 31 + 1 month is Feb 28 (or 29), never Mar 3.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hh, mm, ss := t.Clock()
	// Day 1 never overflows, so time.Date only normalizes the month.
	first := time.Date(year, month+time.Month(n), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// dueDate returns the date of the given period, always measured from start
// so that a month-end anchor survives short months.
func dueDate(start time.Time, period, periodsPerYear int) time.Time {
	return AddMonths(start, period*(12/periodsPerYear))
}
