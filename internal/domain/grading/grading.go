// Package grading converts raw analyzer scores into performance categories
// and point awards using age/gender benchmark reference data.
package grading

import (
	"fmt"

	"github.com/khelo/talenttrack/internal/domain/model"
)

// Thresholds holds the four ascending category cutoffs for a benchmark row.
// Invariant: BelowAverage < Average < Good < Excellent.
type Thresholds struct {
	BelowAverage float64 `yaml:"below_average"`
	Average      float64 `yaml:"average"`
	Good         float64 `yaml:"good"`
	Excellent    float64 `yaml:"excellent"`
}

// Points holds the fixed point awards per category. Points are never
// interpolated between categories.
type Points struct {
	BelowAverage int `yaml:"below_average"`
	Average      int `yaml:"average"`
	Good         int `yaml:"good"`
	Excellent    int `yaml:"excellent"`
}

// Benchmark is one reference row keyed by (test, age range, gender).
type Benchmark struct {
	Test       string       `yaml:"test"`
	Gender     model.Gender `yaml:"gender"`
	AgeMin     int          `yaml:"age_min"`
	AgeMax     int          `yaml:"age_max"`
	Unit       string       `yaml:"unit"`
	Thresholds Thresholds   `yaml:"thresholds"`
	Points     Points       `yaml:"points"`
}

// validate checks the per-row threshold ordering invariant.
func (b Benchmark) validate() error {
	t := b.Thresholds
	if !(t.BelowAverage < t.Average && t.Average < t.Good && t.Good < t.Excellent) {
		return fmt.Errorf("%w: %s %s %d-%d: thresholds must ascend", ErrInvalidBenchmark, b.Test, b.Gender, b.AgeMin, b.AgeMax)
	}
	if b.AgeMin > b.AgeMax {
		return fmt.Errorf("%w: %s %s: age_min %d exceeds age_max %d", ErrInvalidBenchmark, b.Test, b.Gender, b.AgeMin, b.AgeMax)
	}
	return nil
}

// Result is the grading outcome for a single recording.
type Result struct {
	Category model.PerformanceCategory
	Points   int
}

// Grade assigns a category and point award to a raw score using the
// benchmark row. Ties at a threshold resolve to the higher category
// (inclusive lower bound). Pure function, no side effects.
func Grade(rawScore float64, b Benchmark) Result {
	t := b.Thresholds
	switch {
	case rawScore >= t.Excellent:
		return Result{Category: model.CategoryExcellent, Points: b.Points.Excellent}
	case rawScore >= t.Good:
		return Result{Category: model.CategoryGood, Points: b.Points.Good}
	case rawScore >= t.Average:
		return Result{Category: model.CategoryAverage, Points: b.Points.Average}
	default:
		return Result{Category: model.CategoryBelowAverage, Points: b.Points.BelowAverage}
	}
}

// Session-level letter grade cutoffs.
const (
	cutoffAPlus = 90
	cutoffA     = 80
	cutoffBPlus = 70
	cutoffB     = 60
	cutoffC     = 50
)

// LetterGrade maps a session overall score onto the fixed letter scale.
func LetterGrade(score float64) string {
	switch {
	case score >= cutoffAPlus:
		return "A+"
	case score >= cutoffA:
		return "A"
	case score >= cutoffBPlus:
		return "B+"
	case score >= cutoffB:
		return "B"
	case score >= cutoffC:
		return "C"
	default:
		return "D"
	}
}
