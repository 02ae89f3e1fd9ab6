package results

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/observability"
)

// ErrScoreOutOfRange is returned when a score is outside [0, 10].
var ErrScoreOutOfRange = grading.ErrScoreOutOfRange

// ErrSaveInProgress is returned when a save is already running.
var ErrSaveInProgress = errors.New("save in progress")

// ErrNothingToConfirm is returned by Confirm outside the confirming state.
var ErrNothingToConfirm = errors.New("nothing to confirm")

// Save outcomes recorded in metrics.
const (
	saveOutcomeSaved    = "saved"
	saveOutcomeFailed   = "failed"
	saveOutcomeRejected = "rejected"
)

// EditorState is the grading workflow state of the open row.
type EditorState int

// Editor states. Validation runs inside Save; a rejected or failed save
// returns the editor to EditorEditing with LastError set.
const (
	EditorViewing EditorState = iota
	EditorEditing
	EditorConfirming
	EditorSaving
	EditorSaved
	EditorClosed
)

func (s EditorState) String() string {
	switch s {
	case EditorViewing:
		return "viewing"
	case EditorEditing:
		return "editing"
	case EditorConfirming:
		return "confirming"
	case EditorSaving:
		return "saving"
	case EditorSaved:
		return "saved"
	case EditorClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Editor grades one row. Edits touch only the working copy until a save is
// acknowledged by the backend.
type Editor struct {
	view         *View
	examID       uint
	studentID    uint
	submissionID uint
	generation   uint64
	logger       zerolog.Logger
	panelsDone   chan struct{}

	mu            sync.Mutex
	state         EditorState
	working       Row
	baselineTotal float64
	baselineAI    float64
	lastErr       error
	face          *ImageHandle
	card          *ImageHandle
	detail        *dto.QuestionDetailResponse
	proctoring    *dto.ProctoringLogResponse
	closeTimer    *time.Timer
}

func newEditor(view *View, row Row, examID uint, generation uint64) *Editor {
	return &Editor{
		view:          view,
		examID:        examID,
		studentID:     row.StudentID,
		submissionID:  row.SubmissionID,
		generation:    generation,
		logger:        view.logger.With().Str("component", "score_editor").Uint("student_id", row.StudentID).Logger(),
		panelsDone:    make(chan struct{}),
		state:         EditorViewing,
		working:       row,
		baselineTotal: row.TotalScore,
		baselineAI:    row.AIScore,
	}
}

// Row returns the working copy.
func (e *Editor) Row() Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working
}

// State returns the workflow state.
func (e *Editor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Baseline returns the scores captured when the row was opened or last saved.
func (e *Editor) Baseline() (total, ai float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baselineTotal, e.baselineAI
}

// LastError returns the error of the last rejected or failed save.
func (e *Editor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// SetTotalScore edits the objective score.
func (e *Editor) SetTotalScore(value float64) error {
	return e.edit(func(row *Row) { row.TotalScore = value })
}

// SetAIScore edits the essay score.
func (e *Editor) SetAIScore(value float64) error {
	return e.edit(func(row *Row) { row.AIScore = value })
}

// SetStudentName edits the name sent with the next save.
func (e *Editor) SetStudentName(name string) error {
	return e.edit(func(row *Row) { row.StudentName = strings.TrimSpace(name) })
}

func (e *Editor) edit(apply func(*Row)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case EditorClosed:
		return ErrEditorClosed
	case EditorSaving:
		return ErrSaveInProgress
	}
	apply(&e.working)
	e.state = EditorEditing
	return nil
}

// Save validates the working copy and persists it. Scores outside [0, 10]
// are rejected without a backend call. A total below the baseline moves the
// editor to EditorConfirming and returns ErrConfirmationRequired.
func (e *Editor) Save(ctx context.Context) error {
	update, err := e.begin(false)
	if err != nil {
		return err
	}
	return e.persist(ctx, update)
}

// Confirm persists a pending decrease.
func (e *Editor) Confirm(ctx context.Context) error {
	update, err := e.begin(true)
	if err != nil {
		return err
	}
	return e.persist(ctx, update)
}

// CancelConfirmation returns a pending decrease to editing.
func (e *Editor) CancelConfirmation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EditorConfirming {
		e.state = EditorEditing
	}
}

func (e *Editor) begin(confirmed bool) (ScoreUpdate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case EditorClosed:
		return ScoreUpdate{}, ErrEditorClosed
	case EditorSaving:
		return ScoreUpdate{}, ErrSaveInProgress
	}
	if confirmed && e.state != EditorConfirming {
		return ScoreUpdate{}, ErrNothingToConfirm
	}

	total, ai := e.working.TotalScore, e.working.AIScore
	if err := grading.ValidateScores(total, ai); err != nil {
		e.state = EditorEditing
		e.lastErr = err
		observability.GradingSaves().WithLabelValues(saveOutcomeRejected).Inc()
		return ScoreUpdate{}, err
	}

	if !confirmed && grading.Total(total, ai) < grading.Total(e.baselineTotal, e.baselineAI) {
		e.state = EditorConfirming
		return ScoreUpdate{}, ErrConfirmationRequired
	}

	e.state = EditorSaving
	e.lastErr = nil
	return ScoreUpdate{TotalScore: total, AIScore: ai, StudentName: e.working.StudentName}, nil
}

func (e *Editor) persist(ctx context.Context, update ScoreUpdate) error {
	_, err := e.view.backend.UpdateScore(ctx, e.examID, e.studentID, update)

	e.mu.Lock()
	if err != nil {
		if e.state != EditorClosed {
			e.state = EditorEditing
		}
		e.lastErr = err
		e.mu.Unlock()
		observability.GradingSaves().WithLabelValues(saveOutcomeFailed).Inc()
		e.logger.Warn().Err(err).Msg("score save failed")
		return fmt.Errorf("save score: %w", err)
	}

	setSaved(&e.working, update)
	e.baselineTotal, e.baselineAI = update.TotalScore, update.AIScore
	closed := e.state == EditorClosed
	if !closed {
		e.state = EditorSaved
	}
	e.mu.Unlock()

	e.view.applySaved(e.generation, e.studentID, update)
	observability.GradingSaves().WithLabelValues(saveOutcomeSaved).Inc()
	e.logger.Info().Float64("suggested_total", grading.Total(update.TotalScore, update.AIScore)).Msg("score saved")

	if !closed {
		e.scheduleClose()
	}
	return nil
}

func (e *Editor) scheduleClose() {
	delay := e.view.opts.CloseDelay
	if delay <= 0 {
		e.Close()
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EditorClosed {
		return
	}
	e.closeTimer = time.AfterFunc(delay, e.Close)
}

// Close discards the working copy and releases the side-panel images.
func (e *Editor) Close() {
	e.view.closeEditor(e)
}

// Closed reports whether the editor was closed.
func (e *Editor) Closed() bool {
	return e.State() == EditorClosed
}

func (e *Editor) release() {
	e.mu.Lock()
	if e.state == EditorClosed {
		e.mu.Unlock()
		return
	}
	e.state = EditorClosed
	face, card := e.face, e.card
	e.face, e.card = nil, nil
	e.detail, e.proctoring = nil, nil
	if e.closeTimer != nil {
		e.closeTimer.Stop()
	}
	e.mu.Unlock()

	face.Release()
	card.Release()
}

// PanelsLoaded is closed once every side-panel fetch has finished.
func (e *Editor) PanelsLoaded() <-chan struct{} {
	return e.panelsDone
}

// FaceImage returns the face capture handle, nil when absent.
func (e *Editor) FaceImage() *ImageHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.face
}

// CardImage returns the identity card handle, nil when absent.
func (e *Editor) CardImage() *ImageHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.card
}

// QuestionDetail returns the question panel, if it loaded.
func (e *Editor) QuestionDetail() (dto.QuestionDetailResponse, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detail == nil {
		return dto.QuestionDetailResponse{}, false
	}
	return *e.detail, true
}

// ProctoringLog returns the proctoring panel, if it loaded.
func (e *Editor) ProctoringLog() (dto.ProctoringLogResponse, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proctoring == nil {
		return dto.ProctoringLogResponse{}, false
	}
	return *e.proctoring, true
}

// ReloadEvidence refetches both images, replacing and releasing the old ones.
func (e *Editor) ReloadEvidence(ctx context.Context) {
	var wg sync.WaitGroup
	for _, kind := range []string{models.EvidenceKindFace, models.EvidenceKindCard} {
		wg.Add(1)
		go func(kind string) {
			defer wg.Done()
			e.loadImage(ctx, kind)
		}(kind)
	}
	wg.Wait()
}

// loadPanels fetches every side panel independently. Failures leave the
// panel empty; results arriving after Close are dropped.
func (e *Editor) loadPanels(ctx context.Context) {
	defer close(e.panelsDone)

	row := e.Row()
	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if row.HasFaceImage {
		run(func() { e.loadImage(ctx, models.EvidenceKindFace) })
	}
	if row.HasStudentCard {
		run(func() { e.loadImage(ctx, models.EvidenceKindCard) })
	}
	run(func() {
		detail, err := e.view.backend.QuestionDetail(ctx, e.submissionID)
		if err != nil {
			e.logger.Debug().Err(err).Msg("question detail unavailable")
			return
		}
		e.setPanel(func() { e.detail = &detail })
	})
	run(func() {
		log, err := e.view.backend.ProctoringLog(ctx, e.submissionID)
		if err != nil {
			e.logger.Debug().Err(err).Msg("proctoring log unavailable")
			return
		}
		e.setPanel(func() { e.proctoring = &log })
	})
	wg.Wait()
}

func (e *Editor) loadImage(ctx context.Context, kind string) {
	data, err := e.view.backend.Evidence(ctx, e.submissionID, kind)
	if err != nil || len(data) == 0 {
		e.logger.Debug().Err(err).Str("kind", kind).Msg("evidence unavailable")
		return
	}

	handle := e.view.images.Acquire(kind, data)
	e.mu.Lock()
	if e.state == EditorClosed {
		e.mu.Unlock()
		handle.Release()
		return
	}
	var previous *ImageHandle
	if kind == models.EvidenceKindFace {
		previous, e.face = e.face, handle
	} else {
		previous, e.card = e.card, handle
	}
	e.mu.Unlock()

	previous.Release()
	e.view.notify(Event{Kind: EventEditorUpdated, ExamID: e.examID})
}

func (e *Editor) setPanel(apply func()) {
	e.mu.Lock()
	if e.state == EditorClosed {
		e.mu.Unlock()
		return
	}
	apply()
	e.mu.Unlock()
	e.view.notify(Event{Kind: EventEditorUpdated, ExamID: e.examID})
}
