package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/database"
	"github.com/noah-isme/gema-exam-console/internal/models"
)

func openResultsDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedExam(t *testing.T, db *gorm.DB, title string) models.Exam {
	t.Helper()
	exam := models.Exam{Title: title, ScheduledAt: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), DurationMinutes: 90}
	require.NoError(t, db.Create(&exam).Error)
	return exam
}

func seedAttempt(t *testing.T, db *gorm.DB, attempt models.ExamSubmission) models.ExamSubmission {
	t.Helper()
	if attempt.Status == "" {
		attempt.Status = models.ExamStatusSubmitted
	}
	require.NoError(t, db.Create(&attempt).Error)
	return attempt
}

func timePointer(value time.Time) *time.Time {
	return &value
}

func scorePointer(value float64) *float64 {
	return &value
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
