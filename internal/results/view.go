package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/observability"
)

// DefaultCloseDelay is how long a saved editor stays open.
const DefaultCloseDelay = 800 * time.Millisecond

// EventKind identifies a view notification.
type EventKind int

// View notifications.
const (
	EventLoaded EventKind = iota + 1
	EventRefreshed
	EventRowsUpdated
	EventEditorOpened
	EventEditorUpdated
	EventEditorClosed
)

// Event is delivered to the view listener after state changed.
type Event struct {
	Kind   EventKind
	ExamID uint
}

// ViewOptions tunes a View.
type ViewOptions struct {
	PollInterval  time.Duration
	RetryInterval time.Duration
	// CloseDelay is applied after a successful save; zero or less closes at once.
	CloseDelay time.Duration
	Logger     zerolog.Logger
}

// Snapshot is a consistent copy of what the view shows.
type Snapshot struct {
	Exam    dto.ExamResponse
	Summary dto.ExamSummaryResponse
	Query   Query
	Rows    []Row
	Total   int
}

// View owns the displayed results of one exam at a time and the detector
// that keeps them fresh. Row state changes happen under one lock; backend
// calls never run while it is held.
type View struct {
	backend Backend
	opts    ViewOptions
	logger  zerolog.Logger
	images  ImageRegistry

	mu         sync.Mutex
	examID     uint
	loaded     bool
	exam       dto.ExamResponse
	summary    dto.ExamSummaryResponse
	rows       []Row
	server     []Row
	query      Query
	generation uint64
	stop       context.CancelFunc
	stopped    chan struct{}
	editor     *Editor
	listener   func(Event)
}

// NewView builds a view over backend.
func NewView(backend Backend, opts ViewOptions) *View {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	return &View{
		backend: backend,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "results_view").Logger(),
	}
}

// OnChange registers the single listener notified after every state change.
func (v *View) OnChange(fn func(Event)) {
	v.mu.Lock()
	v.listener = fn
	v.mu.Unlock()
}

// SelectExam switches the view to examID. The previous detector is stopped
// and joined, the exam is loaded, and a new detector starts from the exam's
// current activity count. The detector lives until ctx is done, the next
// SelectExam or Close.
func (v *View) SelectExam(ctx context.Context, examID uint) error {
	gen := v.reset(examID)

	baseline, err := v.backend.Changes(ctx, examID, 0)
	if err != nil {
		return fmt.Errorf("load activity count: %w", err)
	}

	exam, err := v.backend.Exam(ctx, examID)
	if err != nil {
		return fmt.Errorf("load exam: %w", err)
	}
	summary, err := v.backend.Summary(ctx, examID)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}
	rows, err := v.backend.Results(ctx, examID)
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}

	detectorCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		cancel()
		return nil
	}
	v.exam = exam
	v.summary = summary
	v.rows = cloneRows(rows)
	v.server = cloneRows(rows)
	v.loaded = true
	v.stop = cancel
	v.stopped = stopped
	v.mu.Unlock()

	v.logger.Info().Uint("exam_id", examID).Int("rows", len(rows)).Int64("baseline", baseline.Count).Msg("exam selected")
	v.notify(Event{Kind: EventLoaded, ExamID: examID})

	detector := NewDetector(v.backend, examID, v.opts.PollInterval, v.opts.RetryInterval, v.opts.Logger)
	go func() {
		defer close(stopped)
		_ = detector.Run(detectorCtx, baseline.Count, func(ctx context.Context, _ int64) error {
			return v.refresh(ctx, gen)
		})
	}()
	return nil
}

// Close stops the detector and the open editor.
func (v *View) Close() {
	v.reset(0)
}

func (v *View) reset(examID uint) uint64 {
	v.mu.Lock()
	v.generation++
	gen := v.generation
	stop, stopped := v.stop, v.stopped
	editor := v.editor
	v.stop, v.stopped, v.editor = nil, nil, nil
	v.examID = examID
	v.loaded = false
	v.exam = dto.ExamResponse{}
	v.summary = dto.ExamSummaryResponse{}
	v.rows, v.server = nil, nil
	v.mu.Unlock()

	if editor != nil {
		editor.release()
	}
	if stop != nil {
		stop()
		<-stopped
	}
	return gen
}

// Refresh refetches summary and results for the current exam.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	gen, loaded := v.generation, v.loaded
	v.mu.Unlock()
	if !loaded {
		return ErrNoExamSelected
	}
	return v.refresh(ctx, gen)
}

func (v *View) refresh(ctx context.Context, gen uint64) error {
	v.mu.Lock()
	examID := v.examID
	v.mu.Unlock()

	summary, err := v.backend.Summary(ctx, examID)
	if err != nil {
		return fmt.Errorf("refresh summary: %w", err)
	}
	fresh, err := v.backend.Results(ctx, examID)
	if err != nil {
		return fmt.Errorf("refresh results: %w", err)
	}

	v.mu.Lock()
	if gen != v.generation || ctx.Err() != nil {
		v.mu.Unlock()
		return nil
	}
	v.rows = Reconcile(v.rows, fresh)
	v.server = cloneRows(fresh)
	v.summary = summary
	v.mu.Unlock()

	observability.ResultsRefreshes().Inc()
	v.notify(Event{Kind: EventRefreshed, ExamID: examID})
	return nil
}

// SetQuery changes the filter and sort of the visible rows.
func (v *View) SetQuery(q Query) {
	v.mu.Lock()
	v.query = q
	examID := v.examID
	v.mu.Unlock()
	v.notify(Event{Kind: EventRowsUpdated, ExamID: examID})
}

// Query returns the active filter and sort.
func (v *View) Query() Query {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// Rows returns every displayed row regardless of the query.
func (v *View) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneRows(v.rows)
}

// ServerRows returns the last authoritative row set.
func (v *View) ServerRows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneRows(v.server)
}

// Visible returns the filtered and sorted rows, in on-screen order.
func (v *View) Visible() []Row {
	return v.Snapshot().Rows
}

// Snapshot copies the view state in one step.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{
		Exam:    v.exam,
		Summary: v.summary,
		Query:   v.query,
		Rows:    v.query.Apply(v.rows),
		Total:   len(v.rows),
	}
}

// ExamID returns the selected exam, zero when none.
func (v *View) ExamID() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.examID
}

// Editor returns the open editor, if any.
func (v *View) Editor() *Editor {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editor
}

// LiveImages reports evidence image handles not yet released.
func (v *View) LiveImages() int {
	return v.images.Live()
}

// BulkApprove confirms every submission of the exam. It requires confirmed
// to be true; on success every displayed row is marked confirmed, whatever
// the active query. On failure rows are left untouched.
func (v *View) BulkApprove(ctx context.Context, confirmed bool) (int64, error) {
	if !confirmed {
		return 0, ErrConfirmationRequired
	}
	examID, gen, err := v.current()
	if err != nil {
		return 0, err
	}

	approved, err := v.backend.ApproveAll(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("approve all: %w", err)
	}

	v.mu.Lock()
	if gen == v.generation {
		markConfirmed(v.rows)
		markConfirmed(v.server)
	}
	v.mu.Unlock()

	v.logger.Info().Uint("exam_id", examID).Int64("approved", approved).Msg("scores approved")
	v.notify(Event{Kind: EventRowsUpdated, ExamID: examID})
	return approved, nil
}

// Delete removes every attempt of studentID once the backend confirms. An
// editor open on that student is closed.
func (v *View) Delete(ctx context.Context, studentID uint, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	examID, gen, err := v.current()
	if err != nil {
		return err
	}

	if err := v.backend.DeleteResult(ctx, examID, studentID); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}

	var closed *Editor
	v.mu.Lock()
	if gen == v.generation {
		v.rows = withoutStudent(v.rows, studentID)
		v.server = withoutStudent(v.server, studentID)
		if v.editor != nil && v.editor.studentID == studentID {
			closed = v.editor
			v.editor = nil
		}
	}
	v.mu.Unlock()

	if closed != nil {
		closed.release()
		v.notify(Event{Kind: EventEditorClosed, ExamID: examID})
	}
	v.notify(Event{Kind: EventRowsUpdated, ExamID: examID})
	return nil
}

// Open starts grading studentID's row. A previously open editor is closed
// and its images released. Side panels load in the background.
func (v *View) Open(ctx context.Context, studentID uint) (*Editor, error) {
	v.mu.Lock()
	if !v.loaded {
		v.mu.Unlock()
		return nil, ErrNoExamSelected
	}
	var (
		row   Row
		found bool
	)
	for _, candidate := range v.rows {
		if candidate.StudentID == studentID {
			row, found = candidate, true
			break
		}
	}
	if !found {
		v.mu.Unlock()
		return nil, ErrRowNotFound
	}
	previous := v.editor
	editor := newEditor(v, row, v.examID, v.generation)
	v.editor = editor
	examID := v.examID
	v.mu.Unlock()

	if previous != nil {
		previous.release()
	}
	v.notify(Event{Kind: EventEditorOpened, ExamID: examID})

	go editor.loadPanels(ctx)
	return editor, nil
}

func (v *View) closeEditor(editor *Editor) {
	v.mu.Lock()
	owned := v.editor == editor
	if owned {
		v.editor = nil
	}
	examID := v.examID
	v.mu.Unlock()

	editor.release()
	if owned {
		v.notify(Event{Kind: EventEditorClosed, ExamID: examID})
	}
}

func (v *View) applySaved(gen uint64, studentID uint, update ScoreUpdate) {
	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		return
	}
	applyScore(v.rows, studentID, update)
	applyScore(v.server, studentID, update)
	examID := v.examID
	v.mu.Unlock()

	v.notify(Event{Kind: EventRowsUpdated, ExamID: examID})
}

func (v *View) current() (uint, uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded {
		return 0, 0, ErrNoExamSelected
	}
	return v.examID, v.generation, nil
}

func (v *View) notify(event Event) {
	v.mu.Lock()
	listener := v.listener
	v.mu.Unlock()
	if listener != nil {
		listener(event)
	}
}

func applyScore(rows []Row, studentID uint, update ScoreUpdate) {
	for i := range rows {
		if rows[i].StudentID != studentID {
			continue
		}
		setSaved(&rows[i], update)
	}
}

func setSaved(row *Row, update ScoreUpdate) {
	suggested := grading.Total(update.TotalScore, update.AIScore)
	row.TotalScore = update.TotalScore
	row.AIScore = update.AIScore
	row.SuggestedTotalScore = &suggested
	row.InstructorConfirmed = true
	row.Status = models.ExamStatusConfirmed
	if update.StudentName != "" {
		row.StudentName = update.StudentName
	}
}

func markConfirmed(rows []Row) {
	for i := range rows {
		rows[i].InstructorConfirmed = true
		rows[i].Status = models.ExamStatusConfirmed
		if rows[i].SuggestedTotalScore == nil {
			suggested := rows[i].Total()
			rows[i].SuggestedTotalScore = &suggested
		}
	}
}

func withoutStudent(rows []Row, studentID uint) []Row {
	out := rows[:0:0]
	for _, row := range rows {
		if row.StudentID != studentID {
			out = append(out, row)
		}
	}
	return out
}
