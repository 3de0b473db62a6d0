package model

import (
	"fmt"
	"time"
)

const (
	// TimestampLayout is the sortable second-precision text form stored in created_at.
	TimestampLayout = "2006-01-02T15:04:05"

	feedbackTableName = "feedback"
)

// FeedbackEvent is one kiosk submission. Rows are append-only.
type FeedbackEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Grade     Grade  `gorm:"column:grau;not null"`
	CreatedAt string `gorm:"column:created_at;not null;index"`
	Weekday   string `gorm:"column:weekday;not null"`
}

// TableName keeps the table name stable regardless of the struct name.
func (FeedbackEvent) TableName() string {
	return feedbackTableName
}

// NewFeedbackEvent stamps a grade with the local time and its weekday.
func NewFeedbackEvent(grade Grade, createdAt time.Time) (FeedbackEvent, error) {
	if !grade.Valid() {
		return FeedbackEvent{}, fmt.Errorf("%w: %q", ErrInvalidGrade, string(grade))
	}
	if createdAt.IsZero() {
		return FeedbackEvent{}, fmt.Errorf("%w: missing timestamp", ErrInvalidFeedbackEvent)
	}
	localTime := createdAt.Local()
	return FeedbackEvent{
		Grade:     grade,
		CreatedAt: localTime.Format(TimestampLayout),
		Weekday:   localTime.Weekday().String(),
	}, nil
}

// WeekdayCount is the number of events recorded on a weekday.
type WeekdayCount struct {
	Weekday string `json:"weekday"`
	Total   int64  `json:"total"`
}

// DailyCount is the number of events recorded on a calendar day.
type DailyCount struct {
	Day   string `json:"day"`
	Total int64  `json:"total"`
}
