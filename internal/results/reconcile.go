package results

// Reconcile merges a freshly fetched authoritative row set into the displayed
// rows. Rows are matched by student. A matched row keeps its displayed values
// except status and submitted_at, which follow the authoritative row when set.
// Unmatched authoritative rows are appended in authoritative order, and
// displayed rows missing from the authoritative set are kept.
func Reconcile(current, authoritative []Row) []Row {
	merged := cloneRows(current)
	index := make(map[uint]int, len(merged))
	for i, row := range merged {
		if _, seen := index[row.StudentID]; !seen {
			index[row.StudentID] = i
		}
	}

	for _, incoming := range authoritative {
		pos, ok := index[incoming.StudentID]
		if !ok {
			index[incoming.StudentID] = len(merged)
			merged = append(merged, incoming)
			continue
		}

		row := &merged[pos]
		if incoming.Status != "" {
			row.Status = incoming.Status
		}
		if incoming.SubmittedAt != nil {
			submitted := *incoming.SubmittedAt
			row.SubmittedAt = &submitted
		}
	}

	return merged
}
