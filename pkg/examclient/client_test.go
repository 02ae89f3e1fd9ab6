package examclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/results"
	"github.com/noah-isme/gema-exam-console/pkg/examclient"
)

type fakeAPI struct {
	mu      sync.Mutex
	auth    []string
	queries []string
	scores  []map[string]interface{}
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": status < 300,
		"message": message,
		"data":    data,
	})
}

func newServer(t *testing.T) (*httptest.Server, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()

	record := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			api.mu.Lock()
			api.auth = append(api.auth, r.Header.Get("Authorization"))
			api.queries = append(api.queries, r.URL.RawQuery)
			api.mu.Unlock()
			next(w, r)
		}
	}

	mux.HandleFunc("GET /api/v2/exams/7/results/changes", record(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "ok", dto.ChangeCountResponse{HasChanges: r.URL.Query().Get("last_count") != "4", Count: 4})
	}))
	mux.HandleFunc("GET /api/v2/exams/7", record(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, "ok", dto.ExamResponse{ID: 7, Title: "Physics"})
	}))
	mux.HandleFunc("GET /api/v2/exams/7/results", record(func(w http.ResponseWriter, _ *http.Request) {
		suggested := 6.0
		writeEnvelope(w, http.StatusOK, "ok", []dto.ExamResultResponse{
			{SubmissionID: 1, ExamID: 7, StudentID: 10, StudentName: "Ayu", TotalScore: 5, AIScore: 1, SuggestedTotalScore: &suggested, HasFaceImage: true},
		})
	}))
	mux.HandleFunc("PUT /api/v2/exams/7/results/10/score", record(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.mu.Lock()
		api.scores = append(api.scores, body)
		api.mu.Unlock()
		writeEnvelope(w, http.StatusOK, "ok", dto.UpdateScoreResponse{SubmissionID: 1, SuggestedTotalScore: 9, InstructorConfirmed: true, Status: "confirmed"})
	}))
	mux.HandleFunc("PUT /api/v2/exams/7/results/99/score", record(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "submission not found", nil)
	}))
	mux.HandleFunc("POST /api/v2/exams/7/results/approve-all", record(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, "ok", dto.ApproveAllResponse{Approved: 3})
	}))
	mux.HandleFunc("DELETE /api/v2/exams/7/results/10", record(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, "ok", dto.DeleteResultResponse{Deleted: 2})
	}))
	mux.HandleFunc("GET /api/v2/submissions/1/evidence/face", record(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	mux.HandleFunc("GET /api/v2/submissions/1/evidence/card", record(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, api
}

func TestClientReadsEnvelopes(t *testing.T) {
	server, api := newServer(t)
	client := examclient.New(server.URL+"/", "secret-token")
	ctx := context.Background()

	changes, err := client.Changes(ctx, 7, 2)
	require.NoError(t, err)
	require.True(t, changes.HasChanges)
	require.Equal(t, int64(4), changes.Count)

	exam, err := client.Exam(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "Physics", exam.Title)

	rows, err := client.Results(ctx, 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Ayu", rows[0].StudentName)
	require.Equal(t, 6.0, *rows[0].SuggestedTotalScore)
	require.True(t, rows[0].HasFaceImage)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, "last_count=2", api.queries[0])
	for _, header := range api.auth {
		require.Equal(t, "Bearer secret-token", header)
	}
}

func TestClientWritesScoresAndActions(t *testing.T) {
	server, api := newServer(t)
	client := examclient.New(server.URL, "token")
	ctx := context.Background()

	resp, err := client.UpdateScore(ctx, 7, 10, results.ScoreUpdate{TotalScore: 8, AIScore: 1, StudentName: "Ayu"})
	require.NoError(t, err)
	require.Equal(t, 9.0, resp.SuggestedTotalScore)
	require.True(t, resp.InstructorConfirmed)

	approved, err := client.ApproveAll(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(3), approved)

	require.NoError(t, client.DeleteResult(ctx, 7, 10))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.scores, 1)
	require.Equal(t, 8.0, api.scores[0]["total_score"])
	require.Equal(t, "Ayu", api.scores[0]["student_name"])
}

func TestClientMapsErrors(t *testing.T) {
	server, _ := newServer(t)
	client := examclient.New(server.URL, "token")
	ctx := context.Background()

	_, err := client.UpdateScore(ctx, 7, 99, results.ScoreUpdate{TotalScore: 1})
	var apiErr *examclient.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "submission not found", apiErr.Message)

	_, err = client.Evidence(ctx, 1, "card")
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Equal(t, "upstream down", apiErr.Message)
}

func TestClientDownloadsEvidence(t *testing.T) {
	server, _ := newServer(t)
	client := examclient.New(server.URL, "token")

	data, err := client.Evidence(context.Background(), 1, "face")
	require.NoError(t, err)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestClientHonoursCancellation(t *testing.T) {
	server, _ := newServer(t)
	client := examclient.New(server.URL, "token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Changes(ctx, 7, 0)
	require.ErrorIs(t, err, context.Canceled)
}
