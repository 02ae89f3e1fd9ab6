package results

import (
	"context"

	"github.com/noah-isme/gema-exam-console/internal/grading"
)

// Consolidate keeps one official attempt per exam and student, then applies
// the query. Collapsing happens first so filters see one row per exam.
func Consolidate(rows []Row, q Query) []Row {
	return q.Apply(grading.SelectBest(rows))
}

// StudentOverview loads every attempt of a student and consolidates them.
func StudentOverview(ctx context.Context, backend Backend, studentID uint, q Query) ([]Row, error) {
	rows, err := backend.StudentResults(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return Consolidate(rows, q), nil
}
