package results

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/models"
)

var errBackendDown = errors.New("backend unavailable")

type changeCall struct {
	examID    uint
	lastCount int64
}

type fakeBackend struct {
	mu sync.Mutex

	exams       map[uint]dto.ExamResponse
	counts      map[uint]int64
	rows        map[uint][]Row
	studentRows []Row
	changeCalls []changeCall
	changeFails int

	updates    []ScoreUpdate
	updateErr  error
	approved   int
	approveErr error
	deleted    []uint
	deleteErr  error

	evidence    map[string][]byte
	evidenceErr error
	detailErr   error
	gate        chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		exams:    map[uint]dto.ExamResponse{},
		counts:   map[uint]int64{},
		rows:     map[uint][]Row{},
		evidence: map[string][]byte{},
	}
}

func evidenceKey(submissionID uint, kind string) string {
	return fmt.Sprintf("%d/%s", submissionID, kind)
}

func (f *fakeBackend) seed(examID uint, title string, rows ...Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exams[examID] = dto.ExamResponse{ID: examID, Title: title, ScheduledAt: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	f.rows[examID] = rows
	f.counts[examID] = int64(len(rows))
}

func (f *fakeBackend) addRow(examID uint, row Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[examID] = append(f.rows[examID], row)
	f.counts[examID]++
}

func (f *fakeBackend) setRows(examID uint, rows []Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[examID] = rows
	f.counts[examID]++
}

func (f *fakeBackend) callsFor(examID uint) []changeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []changeCall
	for _, call := range f.changeCalls {
		if call.examID == examID {
			out = append(out, call)
		}
	}
	return out
}

func (f *fakeBackend) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeBackend) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Changes(_ context.Context, examID uint, lastCount int64) (dto.ChangeCountResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeCalls = append(f.changeCalls, changeCall{examID: examID, lastCount: lastCount})
	if f.changeFails > 0 {
		f.changeFails--
		return dto.ChangeCountResponse{}, errBackendDown
	}
	count := f.counts[examID]
	return dto.ChangeCountResponse{HasChanges: count != lastCount, Count: count}, nil
}

func (f *fakeBackend) Exam(_ context.Context, examID uint) (dto.ExamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exam, ok := f.exams[examID]
	if !ok {
		return dto.ExamResponse{}, errors.New("exam not found")
	}
	return exam, nil
}

func (f *fakeBackend) Summary(_ context.Context, examID uint) (dto.ExamSummaryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return dto.ExamSummaryResponse{ExamID: examID, TotalSubmissions: len(f.rows[examID])}, nil
}

func (f *fakeBackend) Results(_ context.Context, examID uint) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneRows(f.rows[examID]), nil
}

func (f *fakeBackend) StudentResults(context.Context, uint) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneRows(f.studentRows), nil
}

func (f *fakeBackend) UpdateScore(_ context.Context, examID, studentID uint, update ScoreUpdate) (dto.UpdateScoreResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	if f.updateErr != nil {
		return dto.UpdateScoreResponse{}, f.updateErr
	}
	return dto.UpdateScoreResponse{
		ExamID:              examID,
		StudentID:           studentID,
		TotalScore:          update.TotalScore,
		AIScore:             update.AIScore,
		SuggestedTotalScore: grading.Total(update.TotalScore, update.AIScore),
		InstructorConfirmed: true,
		Status:              models.ExamStatusConfirmed,
	}, nil
}

func (f *fakeBackend) ApproveAll(_ context.Context, examID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved++
	if f.approveErr != nil {
		return 0, f.approveErr
	}
	return int64(len(f.rows[examID])), nil
}

func (f *fakeBackend) DeleteResult(_ context.Context, _ uint, studentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, studentID)
	return nil
}

func (f *fakeBackend) Evidence(ctx context.Context, submissionID uint, kind string) ([]byte, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evidenceErr != nil {
		return nil, f.evidenceErr
	}
	data, ok := f.evidence[evidenceKey(submissionID, kind)]
	if !ok {
		return nil, errors.New("evidence not found")
	}
	return data, nil
}

func (f *fakeBackend) QuestionDetail(ctx context.Context, submissionID uint) (dto.QuestionDetailResponse, error) {
	if err := f.wait(ctx); err != nil {
		return dto.QuestionDetailResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return dto.QuestionDetailResponse{}, f.detailErr
	}
	return dto.QuestionDetailResponse{SubmissionID: submissionID, AttemptCount: 1}, nil
}

func (f *fakeBackend) ProctoringLog(ctx context.Context, submissionID uint) (dto.ProctoringLogResponse, error) {
	if err := f.wait(ctx); err != nil {
		return dto.ProctoringLogResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return dto.ProctoringLogResponse{}, f.detailErr
	}
	return dto.ProctoringLogResponse{SubmissionID: submissionID, Total: 2, CountsBySeverity: map[string]int{models.SeverityHigh: 2}}, nil
}

func row(submissionID, studentID uint, name string, total, ai float64) Row {
	return Row{
		SubmissionID: submissionID,
		ExamID:       1,
		StudentID:    studentID,
		StudentName:  name,
		TotalScore:   total,
		AIScore:      ai,
		Status:       models.ExamStatusSubmitted,
	}
}

func timeAt(minute int) *time.Time {
	t := time.Date(2026, 5, 4, 9, minute, 0, 0, time.UTC)
	return &t
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, height/2, color.RGBA{B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestView(t *testing.T, backend Backend) *View {
	t.Helper()
	view := NewView(backend, ViewOptions{
		PollInterval:  2 * time.Millisecond,
		RetryInterval: 2 * time.Millisecond,
		Logger:        zerolog.Nop(),
	})
	t.Cleanup(view.Close)
	return view
}
