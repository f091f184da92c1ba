package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	input := time.Date(2025, 6, 10, 15, 42, 7, 123, time.UTC)
	got := StartOfDay(input)

	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestStartOfDayNormalizesZone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	input := time.Date(2025, 6, 11, 2, 0, 0, 0, loc) // 2025-06-10 19:00 UTC

	got := StartOfDay(input)

	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestDate(t *testing.T) {
	got := Date(2025, time.February, 28)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2006-01-02", "2025-03-20")
	assert.NoError(t, err)
	assert.Equal(t, Date(2025, time.March, 20), got)

	_, err = ParseDate("2006-01-02", "not-a-date")
	assert.Error(t, err)
}

func TestMaxDate(t *testing.T) {
	a := Date(2025, time.January, 15)
	b := Date(2025, time.January, 31)

	assert.Equal(t, b, MaxDate(a, b))
	assert.Equal(t, b, MaxDate(b, a))
	assert.Equal(t, a, MaxDate(a, a))
}
