package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DisputeOpen     string = "OPEN"
	DisputeResolved string = "RESOLVED"
	DisputeRejected string = "REJECTED"
)

type Submission struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Team      string    `gorm:"not null"`
	Title     string    `gorm:"not null"`
	Text      string    `gorm:"not null"`
	CreatedAt time.Time

	Disputes []Dispute `gorm:"foreignKey:SubmissionId;constraint:OnDelete:CASCADE"`
}

type Dispute struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionId uuid.UUID `gorm:"type:uuid;index;not null"`
	Reason       string    `gorm:"not null"`
	Status       string    `gorm:"size:20;not null"`
	CreatedAt    time.Time
}

// ScorecardRecord keeps a server-side copy of every scoring run so judges can
// review past results. The authoritative copy is the one uploaded to the
// storage network; RootHash is set once that upload happens.
type ScorecardRecord struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	TokenId            uint64    `gorm:"index"`
	SubmissionId       string
	Scores             datatypes.JSON
	TotalWeightedScore float64
	Justification      string
	Provider           string
	Model              string
	Verified           bool
	RootHash           sql.NullString
	CreatedAt          time.Time
}
