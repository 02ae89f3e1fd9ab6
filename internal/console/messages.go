package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/noah-isme/gema-exam-console/internal/results"
)

const noticeTTL = 4 * time.Second

type viewEventMsg results.Event

type examLoadedMsg struct {
	err error
}

type refreshedMsg struct {
	err error
}

type editorOpenedMsg struct {
	editor *results.Editor
	err    error
}

type savedMsg struct {
	err error
}

type evidenceReloadedMsg struct{}

type approvedMsg struct {
	approved int64
	err      error
}

type deletedMsg struct {
	studentID uint
	err       error
}

type exportedMsg struct {
	path     string
	artifact results.Artifact
	err      error
}

type chartReadyMsg struct {
	err error
}

type clearNoticeMsg struct {
	seq int
}

// View operations reach the backend or join the detector, so they always run
// inside commands and never on the update loop.

func selectExamCmd(ctx context.Context, view *results.View, examID uint) tea.Cmd {
	return func() tea.Msg {
		return examLoadedMsg{err: view.SelectExam(ctx, examID)}
	}
}

func refreshCmd(ctx context.Context, view *results.View) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: view.Refresh(ctx)}
	}
}

func openEditorCmd(ctx context.Context, view *results.View, studentID uint) tea.Cmd {
	return func() tea.Msg {
		editor, err := view.Open(ctx, studentID)
		return editorOpenedMsg{editor: editor, err: err}
	}
}

func saveCmd(ctx context.Context, editor *results.Editor, confirmed bool) tea.Cmd {
	return func() tea.Msg {
		if confirmed {
			return savedMsg{err: editor.Confirm(ctx)}
		}
		return savedMsg{err: editor.Save(ctx)}
	}
}

func reloadEvidenceCmd(ctx context.Context, editor *results.Editor) tea.Cmd {
	return func() tea.Msg {
		editor.ReloadEvidence(ctx)
		return evidenceReloadedMsg{}
	}
}

func approveCmd(ctx context.Context, view *results.View) tea.Cmd {
	return func() tea.Msg {
		approved, err := view.BulkApprove(ctx, true)
		return approvedMsg{approved: approved, err: err}
	}
}

func deleteCmd(ctx context.Context, view *results.View, studentID uint) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{studentID: studentID, err: view.Delete(ctx, studentID, true)}
	}
}

func exportCmd(ctx context.Context, exporter *results.Exporter, view *results.View, dir string, format results.Format) tea.Cmd {
	return func() tea.Msg {
		artifact, err := exporter.ExportView(ctx, view, format)
		if err != nil {
			return exportedMsg{err: err}
		}
		path, err := WriteArtifact(dir, artifact)
		return exportedMsg{path: path, artifact: artifact, err: err}
	}
}

func warmChartCmd(chart *results.Capability[*ChartRenderer]) tea.Cmd {
	return func() tea.Msg {
		_, err := chart.Load()
		return chartReadyMsg{err: err}
	}
}

func clearNoticeAfter(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

// WriteArtifact stores an export under dir and returns its path.
func WriteArtifact(dir string, artifact results.Artifact) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, artifact.FileName)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
