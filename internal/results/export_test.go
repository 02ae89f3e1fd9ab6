package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/models"
)

func newTestExporter(images EvidenceSource, factory WorkbookFactory) *Exporter {
	exporter := NewExporter(images, factory, zerolog.Nop())
	exporter.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return exporter
}

func TestExportCSVWritesVisibleRowsInOrder(t *testing.T) {
	backend := newFakeBackend()
	confirmed := row(2, 11, `Bima "B" Putra, Jr.`, 4, 2)
	confirmed.InstructorConfirmed = true
	confirmed.HasFaceImage = true
	backend.seed(1, "Physics Midterm", row(1, 10, "Ayu", 5, 1), confirmed, row(3, 12, "Citra", 7, 0))
	view := newTestView(t, backend)
	require.NoError(t, view.SelectExam(context.Background(), 1))
	view.SetQuery(Query{Sort: SortByTotal, Descending: true, Search: "i"})

	artifact, err := newTestExporter(backend, nil).ExportView(context.Background(), view, FormatCSV)
	require.NoError(t, err)
	require.Equal(t, FormatCSV, artifact.Format)
	require.Equal(t, "physics-midterm_2026-05-04.csv", artifact.FileName)
	require.Equal(t, 2, artifact.Rows)
	require.False(t, artifact.FellBack)

	records, err := csv.NewReader(bytes.NewReader(artifact.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, exportHeader, records[0])
	require.Equal(t, "Citra", records[1][2])
	require.Equal(t, `Bima "B" Putra, Jr.`, records[2][2])
	require.Equal(t, "6", records[2][6])
	require.Equal(t, "Yes", records[2][8])
	require.Equal(t, "No", records[1][8])
	require.Equal(t, "Yes", records[2][13])
	require.Equal(t, "-", records[1][11])
	require.Contains(t, string(artifact.Data), `"Bima ""B"" Putra, Jr."`)
}

func TestExportXLSXEmbedsThumbnails(t *testing.T) {
	backend := newFakeBackend()
	withImages := withEvidence(row(1, 10, "Ayu", 5, 1))
	broken := withEvidence(row(2, 11, "Bima", 4, 2))
	backend.seed(1, "Physics", withImages, broken, row(3, 12, "Citra", 7, 0))
	backend.evidence[evidenceKey(1, models.EvidenceKindFace)] = pngBytes(t, 300, 150)
	backend.evidence[evidenceKey(1, models.EvidenceKindCard)] = pngBytes(t, 20, 20)
	backend.evidence[evidenceKey(2, models.EvidenceKindFace)] = []byte("not an image")

	exporter := newTestExporter(backend, nil)
	rows := Consolidate(backend.rows[1], Query{})
	artifact, err := exporter.Export(context.Background(), dto.ExamResponse{Title: "Physics"}, rows, FormatXLSX)
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, artifact.Format)
	require.Equal(t, "physics_2026-06-01.xlsx", artifact.FileName)
	require.Equal(t, 2, artifact.ImagesEmbedded)
	require.Equal(t, 2, artifact.ImagesMissing)
	require.True(t, exporter.Workbooks().Ready())

	book, err := excelize.OpenReader(bytes.NewReader(artifact.Data))
	require.NoError(t, err)
	defer book.Close()

	name, err := book.GetCellValue(workbookSheet, "C2")
	require.NoError(t, err)
	require.Equal(t, "Ayu", name)
	total, err := book.GetCellValue(workbookSheet, "G4")
	require.NoError(t, err)
	require.Equal(t, "7", total)

	pictures, err := book.GetPictures(workbookSheet, "N2")
	require.NoError(t, err)
	require.Len(t, pictures, 1)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(pictures[0].File))
	require.NoError(t, err)
	require.Equal(t, ThumbnailSize, cfg.Width)
	require.Equal(t, ThumbnailSize/2, cfg.Height)

	missing, err := book.GetPictures(workbookSheet, "N3")
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestExportFallsBackToCSVWhenWorkbookUnavailable(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(1, "Physics", row(1, 10, "Ayu", 5, 1))
	factory := func() (Workbook, error) { return nil, errors.New("writer missing") }

	exporter := newTestExporter(backend, factory)
	artifact, err := exporter.Export(context.Background(), dto.ExamResponse{Title: "Physics"}, backend.rows[1], FormatXLSX)
	require.NoError(t, err)
	require.True(t, artifact.FellBack)
	require.Equal(t, FormatCSV, artifact.Format)
	require.Equal(t, "physics_2026-06-01.csv", artifact.FileName)
	require.Equal(t, 1, artifact.Rows)

	_, ok, loadErr := exporter.Workbooks().Peek()
	require.False(t, ok)
	require.Error(t, loadErr)
}

func TestExportHonoursCancellation(t *testing.T) {
	backend := newFakeBackend()
	backend.seed(1, "Physics", withEvidence(row(1, 10, "Ayu", 5, 1)))
	backend.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestExporter(backend, nil).Export(ctx, dto.ExamResponse{Title: "Physics"}, backend.rows[1], FormatXLSX)
	require.ErrorIs(t, err, context.Canceled)
}

func TestThumbnailFitsBounds(t *testing.T) {
	thumb, err := Thumbnail(pngBytes(t, 300, 150))
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 96, cfg.Width)
	require.Equal(t, 48, cfg.Height)

	_, err = Thumbnail([]byte("plain text"))
	require.Error(t, err)
	_, err = Thumbnail(nil)
	require.Error(t, err)
}

func TestSlugAndFileName(t *testing.T) {
	require.Equal(t, "ujian-akhir-fisika-2026", Slug("  Ujian Akhir: Fisika (2026) "))
	require.Equal(t, "exam", Slug("???"))
	require.Equal(t, "exam", Slug(""))

	exam := dto.ExamResponse{Title: "Bio Quiz", ScheduledAt: time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC)}
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "bio-quiz_2026-03-09.xlsx", FileName(exam, FormatXLSX, now))
	require.Equal(t, "bio-quiz_2026-06-01.csv", FileName(dto.ExamResponse{Title: "Bio Quiz"}, FormatCSV, now))
	require.Equal(t, FormatXLSX, ParseFormat(" XLSX "))
	require.Equal(t, FormatCSV, ParseFormat("pdf"))
}
