package grading

// Attempt is the minimal view of a submission needed to rank retakes.
type Attempt interface {
	AttemptKey() AttemptKey
	Confirmed() bool
	RankScore() float64
}

// AttemptKey groups attempts of one student at one exam.
type AttemptKey struct {
	ExamID    uint
	StudentID uint
}

// Prefer reports whether candidate should replace current as the official attempt.
// A confirmed attempt beats an unconfirmed one; otherwise the higher score wins.
// Exact ties keep current.
func Prefer(candidate, current Attempt) bool {
	candConfirmed, curConfirmed := candidate.Confirmed(), current.Confirmed()
	if candConfirmed != curConfirmed {
		return candConfirmed
	}
	return candidate.RankScore() > current.RankScore()
}

// SelectBest collapses attempts to one per (exam, student). The output keeps the
// order in which each group was first seen.
func SelectBest[T Attempt](attempts []T) []T {
	index := make(map[AttemptKey]int, len(attempts))
	result := make([]T, 0, len(attempts))
	for _, attempt := range attempts {
		key := attempt.AttemptKey()
		pos, seen := index[key]
		if !seen {
			index[key] = len(result)
			result = append(result, attempt)
			continue
		}
		if Prefer(attempt, result[pos]) {
			result[pos] = attempt
		}
	}
	return result
}

// BestOf returns the official attempt among attempts of the same group and
// whether one was found.
func BestOf[T Attempt](attempts []T) (T, bool) {
	var best T
	if len(attempts) == 0 {
		return best, false
	}
	best = attempts[0]
	for _, attempt := range attempts[1:] {
		if Prefer(attempt, best) {
			best = attempt
		}
	}
	return best, true
}
