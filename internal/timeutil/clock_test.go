package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysIn(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2100, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysIn(tt.year, tt.month, time.UTC), "%d-%02d", tt.year, tt.month)
	}
}

func TestSystemClockUsesLocation(t *testing.T) {
	c := SystemClock{Location: time.UTC}
	assert.Equal(t, time.UTC, c.Now().Location())

	assert.Equal(t, WIB, SystemClock{}.Now().Location())
}

func TestLoadLocationFallback(t *testing.T) {
	assert.Equal(t, WIB, LoadLocation(""))
	assert.Equal(t, WIB, LoadLocation("Not/AZone"))
}
