package results

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-console/internal/models"
)

func TestReconcileKeepsLocalScoresAndAppendsNewRows(t *testing.T) {
	edited := row(1, 10, "Ayu", 9, 1)
	current := []Row{edited, row(2, 11, "Bima", 4, 2)}

	serverAyu := row(1, 10, "Ayu", 5, 1)
	serverAyu.Status = models.ExamStatusGraded
	serverAyu.SubmittedAt = timeAt(30)
	newcomer := row(3, 12, "Citra", 6, 0)
	authoritative := []Row{serverAyu, row(2, 11, "Bima", 4, 2), newcomer}

	merged := Reconcile(current, authoritative)

	require.Len(t, merged, 3)
	require.Equal(t, 9.0, merged[0].TotalScore)
	require.Equal(t, models.ExamStatusGraded, merged[0].Status)
	require.Equal(t, timeAt(30), merged[0].SubmittedAt)
	require.Equal(t, newcomer, merged[2])
	require.Equal(t, 9.0, current[0].TotalScore, "input must not be modified")
	require.Equal(t, models.ExamStatusSubmitted, current[0].Status)
}

func TestReconcileIsIdempotent(t *testing.T) {
	current := []Row{row(1, 10, "Ayu", 9, 1), row(2, 11, "Bima", 4, 2)}
	auth := row(1, 10, "Ayu", 3, 3)
	auth.Status = models.ExamStatusConfirmed
	auth.SubmittedAt = timeAt(12)
	authoritative := []Row{auth, row(4, 13, "Dewi", 7, 1)}

	once := Reconcile(current, authoritative)
	twice := Reconcile(once, authoritative)

	require.Equal(t, once, twice)
}

func TestReconcileKeepsRowsMissingFromServer(t *testing.T) {
	current := []Row{row(1, 10, "Ayu", 9, 1), row(2, 11, "Bima", 4, 2)}
	merged := Reconcile(current, []Row{row(2, 11, "Bima", 4, 2)})

	require.Len(t, merged, 2)
	require.Equal(t, uint(10), merged[0].StudentID)
}

func TestReconcileIgnoresEmptyAuthoritativeFields(t *testing.T) {
	local := row(1, 10, "Ayu", 9, 1)
	local.SubmittedAt = timeAt(5)
	auth := row(1, 10, "Ayu", 9, 1)
	auth.Status = ""
	auth.SubmittedAt = nil

	merged := Reconcile([]Row{local}, []Row{auth})

	require.Equal(t, models.ExamStatusSubmitted, merged[0].Status)
	require.Equal(t, timeAt(5), merged[0].SubmittedAt)
}

func TestReconcileFromEmptyTakesServerRows(t *testing.T) {
	authoritative := []Row{row(1, 10, "Ayu", 9, 1), row(2, 11, "Bima", 4, 2)}
	require.Equal(t, authoritative, Reconcile(nil, authoritative))
}
