package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DayLayout is the calendar date format used by day filters.
const DayLayout = "2006-01-02"

var (
	ErrInvalidDay           = errors.New("invalid_day")
	ErrInvalidFeedbackEvent = errors.New("invalid_feedback_event")
)

// Day is a validated YYYY-MM-DD calendar date. The zero value means no filter.
type Day string

// ParseDay validates a day filter. Blank input yields the empty Day.
func ParseDay(rawDay string) (Day, error) {
	trimmedDay := strings.TrimSpace(rawDay)
	if trimmedDay == "" {
		return "", nil
	}
	parsed, parseErr := time.Parse(DayLayout, trimmedDay)
	if parseErr != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, rawDay)
	}
	return Day(parsed.Format(DayLayout)), nil
}

// IsZero reports whether the day filter is absent.
func (day Day) IsZero() bool {
	return day == ""
}

func (day Day) String() string {
	return string(day)
}
