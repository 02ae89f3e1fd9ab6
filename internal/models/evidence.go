package models

import "time"

// Evidence image kinds.
const (
	EvidenceKindFace = "face"
	EvidenceKindCard = "card"
)

// EvidenceImage stores out-of-band proctoring evidence for a submission.
// Data holds the bytes for the database backend; RemoteKey points at the
// object for external blob backends.
type EvidenceImage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;uniqueIndex:idx_evidence_submission_kind" json:"submission_id"`
	Kind         string    `gorm:"size:16;not null;uniqueIndex:idx_evidence_submission_kind" json:"kind"`
	ContentType  string    `gorm:"size:128" json:"content_type"`
	Size         int64     `json:"size"`
	Data         []byte    `json:"-"`
	Backend      string    `gorm:"size:32" json:"backend"`
	RemoteKey    string    `gorm:"size:512" json:"remote_key"`
	RemoteURL    string    `gorm:"size:1024" json:"remote_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
