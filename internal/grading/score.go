// Package grading holds the scoring rules shared by the API and the console.
package grading

import (
	"errors"
	"fmt"
	"math"
)

// MaxScore bounds each of the objective and AI essay scores.
const MaxScore = 10.0

// ErrScoreOutOfRange is returned when a score falls outside [0, MaxScore].
var ErrScoreOutOfRange = errors.New("score out of range")

// ValidateScores checks both scores against the closed interval [0, MaxScore].
func ValidateScores(total, ai float64) error {
	if err := validateScore("total_score", total); err != nil {
		return err
	}
	return validateScore("ai_score", ai)
}

func validateScore(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s is not a number: %w", field, ErrScoreOutOfRange)
	}
	if value < 0 || value > MaxScore {
		return fmt.Errorf("%s must be between 0 and %g, got %g: %w", field, MaxScore, value, ErrScoreOutOfRange)
	}
	return nil
}

// Total returns the displayed total of both score components.
func Total(total, ai float64) float64 {
	return total + ai
}

// EffectiveScore returns the suggested total when present, otherwise the objective score.
func EffectiveScore(total float64, suggested *float64) float64 {
	if suggested != nil {
		return *suggested
	}
	return total
}
