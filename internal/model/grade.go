package model

import (
	"errors"
	"fmt"
	"strings"
)

// Grade is the satisfaction level a kiosk user selects.
type Grade string

const (
	GradeVerySatisfied Grade = "VERY_SATISFIED"
	GradeSatisfied     Grade = "SATISFIED"
	GradeDissatisfied  Grade = "DISSATISFIED"
)

var (
	ErrInvalidGrade = errors.New("invalid_grade")

	grades = []Grade{GradeVerySatisfied, GradeSatisfied, GradeDissatisfied}
)

// Grades returns every accepted grade in display order.
func Grades() []Grade {
	ordered := make([]Grade, len(grades))
	copy(ordered, grades)
	return ordered
}

// ParseGrade accepts only the exact upper-case grade names.
func ParseGrade(rawGrade string) (Grade, error) {
	candidate := Grade(strings.TrimSpace(rawGrade))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGrade, rawGrade)
	}
	return candidate, nil
}

// Valid reports whether the grade is one of the closed set.
func (grade Grade) Valid() bool {
	for _, known := range grades {
		if grade == known {
			return true
		}
	}
	return false
}

func (grade Grade) String() string {
	return string(grade)
}

// GradeCounts maps every grade to a count; missing grades read as zero.
type GradeCounts map[Grade]int64

// NewGradeCounts returns counts with all grades present and zeroed.
func NewGradeCounts() GradeCounts {
	counts := make(GradeCounts, len(grades))
	for _, grade := range grades {
		counts[grade] = 0
	}
	return counts
}

// Total sums the counts of all grades.
func (counts GradeCounts) Total() int64 {
	var total int64
	for _, grade := range grades {
		total += counts[grade]
	}
	return total
}
