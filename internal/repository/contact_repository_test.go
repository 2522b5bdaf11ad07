package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBirthdayInWindow(t *testing.T) {
	tests := []struct {
		name     string
		birthday time.Time
		today    time.Time
		want     bool
	}{
		{"today", date(1990, time.June, 15), date(2026, time.June, 15), true},
		{"last day of window", date(1990, time.June, 22), date(2026, time.June, 15), true},
		{"just outside window", date(1990, time.June, 23), date(2026, time.June, 15), false},
		{"yesterday", date(1990, time.June, 14), date(2026, time.June, 15), false},
		{"window crosses new year, birthday before it", date(1985, time.December, 29), date(2026, time.December, 28), true},
		{"window crosses new year, birthday after it", date(1985, time.January, 2), date(2026, time.December, 30), true},
		{"window crosses new year, birthday past it", date(1985, time.January, 7), date(2026, time.December, 30), false},
		{"eleven months away", date(1985, time.May, 20), date(2026, time.June, 15), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BirthdayInWindow(tt.birthday, tt.today, 7))
		})
	}
}

func TestBirthdayInWindowLeapDay(t *testing.T) {
	bday := date(1992, time.February, 29)

	// 2028 is a leap year, so Feb 29 exists and falls inside a window
	// starting Feb 25.
	assert.True(t, BirthdayInWindow(bday, date(2028, time.February, 25), 7))

	// 2026 is not: the anniversary normalizes to Mar 1.
	assert.True(t, BirthdayInWindow(bday, date(2026, time.February, 25), 7))
	assert.False(t, BirthdayInWindow(bday, date(2026, time.March, 2), 7))
}
