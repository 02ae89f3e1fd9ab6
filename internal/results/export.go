package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/observability"
)

// Format is an export file format.
type Format string

// Export formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ThumbnailSize bounds embedded evidence images, in pixels.
const ThumbnailSize = 96

const imageFetchConcurrency = 4

var exportHeader = []string{
	"Submission ID", "Student ID", "Student Name", "Status",
	"Total Score", "AI Score", "Total", "Suggested Total", "Confirmed",
	"Started At", "Submitted At", "Duration", "Cheating Count",
	"Face Image", "Student Card",
}

// ParseFormat maps user input to a Format, defaulting to CSV.
func ParseFormat(raw string) Format {
	if strings.EqualFold(strings.TrimSpace(raw), string(FormatXLSX)) {
		return FormatXLSX
	}
	return FormatCSV
}

// Artifact is a finished export.
type Artifact struct {
	FileName       string
	Format         Format
	Data           []byte
	Rows           int
	ImagesEmbedded int
	ImagesMissing  int
	// FellBack is set when an XLSX export was written as CSV.
	FellBack bool
}

// Exporter writes the on-screen rows to CSV or XLSX.
type Exporter struct {
	images    EvidenceSource
	workbooks *Capability[WorkbookFactory]
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExporter builds an exporter. A nil factory uses NewExcelWorkbook.
func NewExporter(images EvidenceSource, factory WorkbookFactory, logger zerolog.Logger) *Exporter {
	if factory == nil {
		factory = NewExcelWorkbook
	}
	return &Exporter{
		images:    images,
		workbooks: NewWorkbookCapability(factory),
		logger:    logger.With().Str("component", "export_snapshotter").Logger(),
		now:       time.Now,
	}
}

// Workbooks exposes the lazily initialised workbook writer.
func (x *Exporter) Workbooks() *Capability[WorkbookFactory] {
	return x.workbooks
}

// ExportView exports the view's filtered and sorted rows.
func (x *Exporter) ExportView(ctx context.Context, view *View, format Format) (Artifact, error) {
	snapshot := view.Snapshot()
	return x.Export(ctx, snapshot.Exam, snapshot.Rows, format)
}

// Export writes rows in the given order. XLSX embeds evidence thumbnails
// fetched per row; a failed image is left out of its row only. When no
// workbook can be created the export is written as CSV.
func (x *Exporter) Export(ctx context.Context, exam dto.ExamResponse, rows []Row, format Format) (Artifact, error) {
	if format == FormatXLSX {
		artifact, err := x.exportWorkbook(ctx, exam, rows)
		if err == nil {
			x.record(artifact)
			return artifact, nil
		}
		if ctx.Err() != nil {
			return Artifact{}, ctx.Err()
		}
		var initErr *workbookInitError
		if !errors.As(err, &initErr) {
			return Artifact{}, err
		}
		x.logger.Warn().Err(err).Msg("workbook unavailable, exporting csv")
	}

	data, err := writeCSV(rows)
	if err != nil {
		return Artifact{}, err
	}
	artifact := Artifact{
		FileName: FileName(exam, FormatCSV, x.now()),
		Format:   FormatCSV,
		Data:     data,
		Rows:     len(rows),
		FellBack: format == FormatXLSX,
	}
	x.record(artifact)
	return artifact, nil
}

func (x *Exporter) record(artifact Artifact) {
	observability.ExportRows().WithLabelValues(string(artifact.Format)).Add(float64(artifact.Rows))
	x.logger.Info().
		Str("file", artifact.FileName).
		Int("rows", artifact.Rows).
		Int("images", artifact.ImagesEmbedded).
		Int("images_missing", artifact.ImagesMissing).
		Bool("fell_back", artifact.FellBack).
		Msg("export written")
}

func writeCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := writer.Write(csvRecord(row)); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func csvRecord(row Row) []string {
	suggested := ""
	if row.SuggestedTotalScore != nil {
		suggested = formatScore(*row.SuggestedTotalScore)
	}
	return []string{
		fmt.Sprint(row.SubmissionID),
		fmt.Sprint(row.StudentID),
		row.StudentName,
		row.Status,
		formatScore(row.TotalScore),
		formatScore(row.AIScore),
		formatScore(row.Total()),
		suggested,
		yesNo(row.IsConfirmed()),
		formatTime(row.StartedAt),
		formatTime(row.SubmittedAt),
		row.DurationLabel(),
		fmt.Sprint(row.CheatingCount),
		yesNo(row.HasFaceImage),
		yesNo(row.HasStudentCard),
	}
}

type rowImages struct {
	face []byte
	card []byte
}

func (x *Exporter) exportWorkbook(ctx context.Context, exam dto.ExamResponse, rows []Row) (Artifact, error) {
	factory, err := x.workbooks.Load()
	if err != nil {
		return Artifact{}, &workbookInitError{err: err}
	}
	book, err := factory()
	if err != nil {
		return Artifact{}, &workbookInitError{err: err}
	}
	defer book.Close()

	images, err := x.fetchImages(ctx, rows)
	if err != nil {
		return Artifact{}, err
	}

	header := make([]interface{}, len(exportHeader))
	for i, title := range exportHeader {
		header[i] = title
	}
	if err := book.SetRow(1, header); err != nil {
		return Artifact{}, err
	}

	artifact := Artifact{FileName: FileName(exam, FormatXLSX, x.now()), Format: FormatXLSX, Rows: len(rows)}
	faceCol, cardCol := len(exportHeader)-1, len(exportHeader)
	for i, row := range rows {
		line := i + 2
		if err := book.SetRow(line, workbookRecord(row)); err != nil {
			return Artifact{}, err
		}
		for _, img := range []struct {
			wanted bool
			data   []byte
			col    int
		}{
			{row.HasFaceImage, images[i].face, faceCol},
			{row.HasStudentCard, images[i].card, cardCol},
		} {
			if !img.wanted {
				continue
			}
			if img.data == nil {
				artifact.ImagesMissing++
				continue
			}
			if err := book.AddImage(line, img.col, img.data); err != nil {
				x.logger.Debug().Err(err).Uint("submission_id", row.SubmissionID).Msg("image not embedded")
				artifact.ImagesMissing++
				continue
			}
			artifact.ImagesEmbedded++
		}
	}

	data, err := book.Bytes()
	if err != nil {
		return Artifact{}, err
	}
	artifact.Data = data
	return artifact, nil
}

func workbookRecord(row Row) []interface{} {
	var suggested interface{} = ""
	if row.SuggestedTotalScore != nil {
		suggested = *row.SuggestedTotalScore
	}
	return []interface{}{
		row.SubmissionID,
		row.StudentID,
		row.StudentName,
		row.Status,
		row.TotalScore,
		row.AIScore,
		row.Total(),
		suggested,
		yesNo(row.IsConfirmed()),
		formatTime(row.StartedAt),
		formatTime(row.SubmittedAt),
		row.DurationLabel(),
		row.CheatingCount,
		yesNo(row.HasFaceImage),
		yesNo(row.HasStudentCard),
	}
}

// fetchImages loads and thumbnails every row's evidence. Individual failures
// leave nil entries; only cancellation aborts.
func (x *Exporter) fetchImages(ctx context.Context, rows []Row) ([]rowImages, error) {
	images := make([]rowImages, len(rows))
	if x.images == nil {
		return images, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(imageFetchConcurrency)
	for i, row := range rows {
		if row.HasFaceImage {
			group.Go(func() error {
				images[i].face = x.thumbnailFor(groupCtx, row.SubmissionID, models.EvidenceKindFace)
				return groupCtx.Err()
			})
		}
		if row.HasStudentCard {
			group.Go(func() error {
				images[i].card = x.thumbnailFor(groupCtx, row.SubmissionID, models.EvidenceKindCard)
				return groupCtx.Err()
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func (x *Exporter) thumbnailFor(ctx context.Context, submissionID uint, kind string) []byte {
	data, err := x.images.Evidence(ctx, submissionID, kind)
	if err != nil {
		x.logger.Debug().Err(err).Uint("submission_id", submissionID).Str("kind", kind).Msg("evidence fetch failed")
		return nil
	}
	thumb, err := Thumbnail(data)
	if err != nil {
		x.logger.Debug().Err(err).Uint("submission_id", submissionID).Str("kind", kind).Msg("evidence is not a usable image")
		return nil
	}
	return thumb
}

// Thumbnail decodes an image, fits it into ThumbnailSize square and
// re-encodes it as PNG.
func Thumbnail(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if mime := mimetype.Detect(data); !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("unsupported evidence type %s", mime.String())
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	fitted := imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName derives "<slug>_<YYYY-MM-DD>.<ext>" from the exam title and date.
// Exams without a date use now.
func FileName(exam dto.ExamResponse, format Format, now time.Time) string {
	date := exam.ScheduledAt
	if date.IsZero() {
		date = now
	}
	return fmt.Sprintf("%s_%s.%s", Slug(exam.Title), date.Format("2006-01-02"), format)
}

// Slug lower-cases title and joins its ASCII letters and digits with dashes.
func Slug(title string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return "exam"
	}
	return b.String()
}
