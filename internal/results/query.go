package results

import (
	"sort"
	"strconv"
	"strings"
)

// SortField selects the column results are ordered by.
type SortField string

// Sortable columns.
const (
	SortByName      SortField = "name"
	SortByTotal     SortField = "total"
	SortBySubmitted SortField = "submitted_at"
	SortByCheating  SortField = "cheating"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// Query narrows and orders the displayed rows. The zero value shows every row
// sorted by student name.
type Query struct {
	Search     string
	Status     string
	Sort       SortField
	Descending bool
}

// ParseSortField maps user input to a SortField, defaulting to name.
func ParseSortField(raw string) SortField {
	switch SortField(strings.ToLower(strings.TrimSpace(raw))) {
	case SortByTotal:
		return SortByTotal
	case SortBySubmitted, "submitted":
		return SortBySubmitted
	case SortByCheating:
		return SortByCheating
	default:
		return SortByName
	}
}

// Apply returns the filtered and sorted rows. The input is not modified.
func (q Query) Apply(rows []Row) []Row {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	status := strings.ToLower(strings.TrimSpace(q.Status))

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if !matchesStatus(row, status) || !matchesSearch(row, search) {
			continue
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := compareRows(out[i], out[j], q.Sort); c != 0 {
			if q.Descending {
				return c > 0
			}
			return c < 0
		}
		return out[i].SubmissionID < out[j].SubmissionID
	})
	return out
}

func matchesStatus(row Row, status string) bool {
	switch status {
	case "", StatusAll:
		return true
	case "confirmed":
		return row.IsConfirmed()
	default:
		return strings.EqualFold(row.Status, status)
	}
}

func matchesSearch(row Row, search string) bool {
	if search == "" {
		return true
	}
	if strings.Contains(strings.ToLower(row.StudentName), search) {
		return true
	}
	return strings.Contains(strconv.FormatUint(uint64(row.StudentID), 10), search)
}

func compareRows(a, b Row, field SortField) int {
	switch field {
	case SortByTotal:
		return compareFloat(a.Total(), b.Total())
	case SortByCheating:
		return a.CheatingCount - b.CheatingCount
	case SortBySubmitted:
		switch {
		case a.SubmittedAt == nil && b.SubmittedAt == nil:
			return 0
		case a.SubmittedAt == nil:
			return 1
		case b.SubmittedAt == nil:
			return -1
		}
		return a.SubmittedAt.Compare(*b.SubmittedAt)
	default:
		return strings.Compare(strings.ToLower(a.StudentName), strings.ToLower(b.StudentName))
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
