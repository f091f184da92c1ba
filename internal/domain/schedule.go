package domain

import (
	"time"

	"github.com/merchantpay/billing-service/pkg/timeutil"
)

// lastDayOfMonth returns the number of days in the given month.
// Day zero of the following month normalizes to the last day of this one,
// so leap February needs no special casing.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay returns dayOfMonth fitted into the given month, substituting the
// month's last day when the configured day does not exist (e.g. 31st in February).
func clampDay(year int, month time.Month, dayOfMonth int) int {
	if last := lastDayOfMonth(year, month); dayOfMonth > last {
		return last
	}
	return dayOfMonth
}

// NextOccurrence returns the occurrence of dayOfMonth in the calendar month
// immediately following current's month. December rolls over into January of
// the next year. The result is a date-only UTC midnight.
func NextOccurrence(current time.Time, dayOfMonth int) (time.Time, error) {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return time.Time{}, NewDomainError(ErrorCodeValidationDayOfMonth, "day_of_month must be between 1 and 31").WithDetail("day_of_month", dayOfMonth)
	}

	year, month, _ := current.UTC().Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}

	return timeutil.Date(year, month, clampDay(year, month, dayOfMonth)), nil
}

// InitialOccurrence returns the first occurrence of dayOfMonth on or after
// start. If start's own day has not yet passed the desired day, the occurrence
// lands in start's month (clamped); otherwise it falls in the next month.
func InitialOccurrence(start time.Time, dayOfMonth int) (time.Time, error) {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return time.Time{}, NewDomainError(ErrorCodeValidationDayOfMonth, "day_of_month must be between 1 and 31").WithDetail("day_of_month", dayOfMonth)
	}

	start = timeutil.StartOfDay(start)
	year, month, day := start.Date()

	if day <= dayOfMonth {
		return timeutil.Date(year, month, clampDay(year, month, dayOfMonth)), nil
	}

	return NextOccurrence(start, dayOfMonth)
}
