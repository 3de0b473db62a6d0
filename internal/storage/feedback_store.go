package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
)

const (
	columnGrade          = "grau"
	columnWeekday        = "weekday"
	selectGradeCounts    = "grau, COUNT(*) AS total"
	selectWeekdayCounts  = "weekday, COUNT(*) AS total"
	selectDailyCounts    = "substr(created_at, 1, 10) AS day, COUNT(*) AS total"
	expressionDay        = "substr(created_at, 1, 10)"
	whereDayEquals       = expressionDay + " = ?"
	orderNewestFirst     = "created_at DESC, id DESC"
	orderTotalDescending = "total DESC, weekday ASC"
	orderDayDescending   = "day DESC"

	errorMessageInsertFeedback    = "storage: insert feedback"
	errorMessageListFeedback      = "storage: list feedback"
	errorMessageCountFeedback     = "storage: count feedback"
	errorMessageGroupByGrade      = "storage: group feedback by grade"
	errorMessageGroupByWeekday    = "storage: group feedback by weekday"
	errorMessageDailyCounts       = "storage: daily feedback counts"
	errorMessageStreamFeedback    = "storage: stream feedback"
	errorMessageInvalidPagination = "storage: invalid pagination"
)

// ErrInvalidPagination indicates a negative offset or a non-positive limit.
var ErrInvalidPagination = errors.New(errorMessageInvalidPagination)

// FeedbackStore reads and appends kiosk feedback events.
type FeedbackStore struct {
	database *gorm.DB
}

// NewFeedbackStore wraps an open database handle.
func NewFeedbackStore(database *gorm.DB) *FeedbackStore {
	return &FeedbackStore{database: database}
}

// Insert commits a new event for grade stamped at createdAt and returns it with its id.
func (store *FeedbackStore) Insert(ctx context.Context, grade model.Grade, createdAt time.Time) (model.FeedbackEvent, error) {
	event, eventErr := model.NewFeedbackEvent(grade, createdAt)
	if eventErr != nil {
		return model.FeedbackEvent{}, eventErr
	}
	if createErr := store.database.WithContext(ctx).Create(&event).Error; createErr != nil {
		return model.FeedbackEvent{}, fmt.Errorf("%s: %w", errorMessageInsertFeedback, createErr)
	}
	return event, nil
}

// ListFiltered returns one page of events, newest first, and the number of events matching day.
func (store *FeedbackStore) ListFiltered(ctx context.Context, day model.Day, offset int, limit int) ([]model.FeedbackEvent, int64, error) {
	if offset < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidPagination, offset, limit)
	}

	totalMatching, countErr := store.CountFiltered(ctx, day)
	if countErr != nil {
		return nil, 0, countErr
	}

	events := make([]model.FeedbackEvent, 0, limit)
	if totalMatching == 0 || int64(offset) >= totalMatching {
		return events, totalMatching, nil
	}

	listErr := store.filtered(ctx, day).
		Order(orderNewestFirst).
		Offset(offset).
		Limit(limit).
		Find(&events).Error
	if listErr != nil {
		return nil, 0, fmt.Errorf("%s: %w", errorMessageListFeedback, listErr)
	}
	return events, totalMatching, nil
}

// CountFiltered returns the number of events recorded on day, or all events when day is zero.
func (store *FeedbackStore) CountFiltered(ctx context.Context, day model.Day) (int64, error) {
	var total int64
	if countErr := store.filtered(ctx, day).Count(&total).Error; countErr != nil {
		return 0, fmt.Errorf("%s: %w", errorMessageCountFeedback, countErr)
	}
	return total, nil
}

type gradeCountRow struct {
	Grade model.Grade `gorm:"column:grau"`
	Total int64       `gorm:"column:total"`
}

// GroupCountsByGrade counts events per grade. All grades are present in the result.
func (store *FeedbackStore) GroupCountsByGrade(ctx context.Context, day model.Day) (model.GradeCounts, error) {
	var rows []gradeCountRow
	groupErr := store.filtered(ctx, day).
		Select(selectGradeCounts).
		Group(columnGrade).
		Scan(&rows).Error
	if groupErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageGroupByGrade, groupErr)
	}

	counts := model.NewGradeCounts()
	for _, row := range rows {
		if !row.Grade.Valid() {
			continue
		}
		counts[row.Grade] = row.Total
	}
	return counts, nil
}

// GroupCountsByWeekday counts events per weekday name, most frequent first.
func (store *FeedbackStore) GroupCountsByWeekday(ctx context.Context, day model.Day) ([]model.WeekdayCount, error) {
	counts := make([]model.WeekdayCount, 0, 7)
	groupErr := store.filtered(ctx, day).
		Select(selectWeekdayCounts).
		Group(columnWeekday).
		Order(orderTotalDescending).
		Scan(&counts).Error
	if groupErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageGroupByWeekday, groupErr)
	}
	return counts, nil
}

// DailyCountsLastNDays returns per-day totals for the n most recent days that have events,
// oldest first. Days without events are not filled in.
func (store *FeedbackStore) DailyCountsLastNDays(ctx context.Context, n int) ([]model.DailyCount, error) {
	counts := make([]model.DailyCount, 0, max(n, 0))
	if n <= 0 {
		return counts, nil
	}

	dailyErr := store.filtered(ctx, "").
		Select(selectDailyCounts).
		Group(expressionDay).
		Order(orderDayDescending).
		Limit(n).
		Scan(&counts).Error
	if dailyErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageDailyCounts, dailyErr)
	}

	for left, right := 0, len(counts)-1; left < right; left, right = left+1, right-1 {
		counts[left], counts[right] = counts[right], counts[left]
	}
	return counts, nil
}

// StreamFiltered visits matching events newest first, reading one row at a time.
// Iteration stops at the first error returned by visit.
func (store *FeedbackStore) StreamFiltered(ctx context.Context, day model.Day, visit func(model.FeedbackEvent) error) error {
	rows, queryErr := store.filtered(ctx, day).Order(orderNewestFirst).Rows()
	if queryErr != nil {
		return fmt.Errorf("%s: %w", errorMessageStreamFeedback, queryErr)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var event model.FeedbackEvent
		if scanErr := store.database.ScanRows(rows, &event); scanErr != nil {
			return fmt.Errorf("%s: %w", errorMessageStreamFeedback, scanErr)
		}
		if visitErr := visit(event); visitErr != nil {
			return visitErr
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return fmt.Errorf("%s: %w", errorMessageStreamFeedback, rowsErr)
	}
	return nil
}

func (store *FeedbackStore) filtered(ctx context.Context, day model.Day) *gorm.DB {
	query := store.database.WithContext(ctx).Model(&model.FeedbackEvent{})
	if !day.IsZero() {
		query = query.Where(whereDayEquals, day.String())
	}
	return query
}
