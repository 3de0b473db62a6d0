// Package report derives dashboard statistics from stored feedback.
package report

import (
	"context"
	"fmt"
	"math"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
)

const (
	// RollingWindowDays is the number of most recent days with events included in Last7.
	RollingWindowDays = 7

	percentScale = 100.0
	decimalScale = 10.0

	errorMessageTotals  = "report: totals"
	errorMessageWeekday = "report: weekday distribution"
	errorMessageLast7   = "report: rolling window"
	errorMessageCompare = "report: compare days"
)

// Source is the read side of the feedback store used by the engine.
type Source interface {
	GroupCountsByGrade(ctx context.Context, day model.Day) (model.GradeCounts, error)
	GroupCountsByWeekday(ctx context.Context, day model.Day) ([]model.WeekdayCount, error)
	DailyCountsLastNDays(ctx context.Context, n int) ([]model.DailyCount, error)
}

// GradePercents maps each grade to its share of the total, rounded to one decimal.
type GradePercents map[model.Grade]float64

// Query selects the statistics to build. Zero days mean unfiltered or no comparison.
type Query struct {
	Day         model.Day
	CompareDay1 model.Day
	CompareDay2 model.Day
}

// Comparison holds side-by-side grade totals for two days.
type Comparison struct {
	Day1      model.Day         `json:"day1"`
	Day2      model.Day         `json:"day2"`
	Totals1   model.GradeCounts `json:"totals1"`
	Percents1 GradePercents     `json:"percents1"`
	Totals2   model.GradeCounts `json:"totals2"`
	Percents2 GradePercents     `json:"percents2"`
}

// Result is the full statistics bundle rendered by the dashboard.
type Result struct {
	Totals    model.GradeCounts
	Percents  GradePercents
	ByWeekday []model.WeekdayCount
	Last7     []model.DailyCount
	Compare   *Comparison
}

// Engine builds statistics from a Source.
type Engine struct {
	source Source
}

// NewEngine constructs an Engine reading from source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Build computes totals, percentages and distributions for query.
// The rolling window ignores the day filter. Compare is set only when both compare days are.
func (engine *Engine) Build(ctx context.Context, query Query) (Result, error) {
	totals, totalsErr := engine.source.GroupCountsByGrade(ctx, query.Day)
	if totalsErr != nil {
		return Result{}, fmt.Errorf("%s: %w", errorMessageTotals, totalsErr)
	}

	byWeekday, weekdayErr := engine.source.GroupCountsByWeekday(ctx, query.Day)
	if weekdayErr != nil {
		return Result{}, fmt.Errorf("%s: %w", errorMessageWeekday, weekdayErr)
	}

	last7, last7Err := engine.source.DailyCountsLastNDays(ctx, RollingWindowDays)
	if last7Err != nil {
		return Result{}, fmt.Errorf("%s: %w", errorMessageLast7, last7Err)
	}

	result := Result{
		Totals:    totals,
		Percents:  Percentages(totals),
		ByWeekday: byWeekday,
		Last7:     last7,
	}

	if query.CompareDay1.IsZero() || query.CompareDay2.IsZero() {
		return result, nil
	}

	comparison, compareErr := engine.compare(ctx, query.CompareDay1, query.CompareDay2)
	if compareErr != nil {
		return Result{}, compareErr
	}
	result.Compare = &comparison
	return result, nil
}

func (engine *Engine) compare(ctx context.Context, day1 model.Day, day2 model.Day) (Comparison, error) {
	totals1, firstErr := engine.source.GroupCountsByGrade(ctx, day1)
	if firstErr != nil {
		return Comparison{}, fmt.Errorf("%s %s: %w", errorMessageCompare, day1, firstErr)
	}
	totals2, secondErr := engine.source.GroupCountsByGrade(ctx, day2)
	if secondErr != nil {
		return Comparison{}, fmt.Errorf("%s %s: %w", errorMessageCompare, day2, secondErr)
	}
	return Comparison{
		Day1:      day1,
		Day2:      day2,
		Totals1:   totals1,
		Percents1: Percentages(totals1),
		Totals2:   totals2,
		Percents2: Percentages(totals2),
	}, nil
}

// Percentages converts counts into per-grade shares of their sum. Every grade is present;
// all shares are zero when there are no events. Shares are not adjusted to sum to 100.
func Percentages(counts model.GradeCounts) GradePercents {
	percents := make(GradePercents, len(model.Grades()))
	total := counts.Total()
	for _, grade := range model.Grades() {
		if total == 0 {
			percents[grade] = 0
			continue
		}
		percents[grade] = roundToOneDecimal(percentScale * float64(counts[grade]) / float64(total))
	}
	return percents
}

// roundToOneDecimal rounds half away from zero.
func roundToOneDecimal(value float64) float64 {
	return math.Round(value*decimalScale) / decimalScale
}
