package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pipeline stages, ordered. Won and lost are terminal.
const (
	StageLead        = "lead"
	StageQualified   = "qualified"
	StageProposal    = "proposal"
	StageNegotiation = "negotiation"
	StageWon         = "won"
	StageLost        = "lost"
)

// StageOrder maps each stage to its position in the pipeline.
var StageOrder = map[string]int{
	StageLead:        0,
	StageQualified:   1,
	StageProposal:    2,
	StageNegotiation: 3,
	StageWon:         4,
	StageLost:        4,
}

func IsValidStage(stage string) bool {
	_, ok := StageOrder[stage]
	return ok
}

func IsTerminalStage(stage string) bool {
	return stage == StageWon || stage == StageLost
}

// Deal is a pipeline deal snapshot. The engine reads deals; it never writes them.
type Deal struct {
	ID          string `gorm:"type:varchar(40);primaryKey"`
	WorkspaceID string `gorm:"type:varchar(40);not null;index"`

	Title string          `gorm:"type:varchar(200);not null"`
	Value decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Stage string          `gorm:"type:varchar(20);not null;index"`

	// Probability is the stated probability-of-close in percent (0-100).
	// Nil means no estimate; a per-stage default applies.
	Probability *int `gorm:""`

	CloseDate      *time.Time `gorm:"type:timestamptz;index"`
	StageEnteredAt time.Time  `gorm:"type:timestamptz"`
	LastActivityAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Deal) TableName() string {
	return "deals"
}

// StageTransition records a deal moving between stages. Written by the CRUD
// layer, read here for the stage-progression health dimension.
type StageTransition struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	DealID    string    `gorm:"type:varchar(40);not null;index"`
	FromStage string    `gorm:"type:varchar(20);not null"`
	ToStage   string    `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (StageTransition) TableName() string {
	return "stage_transitions"
}

// ProbabilitySnapshot records a change to a deal's stated probability.
// Written by the CRUD layer, read here for the probability-trend dimension.
type ProbabilitySnapshot struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	DealID      string    `gorm:"type:varchar(40);not null;index"`
	Probability int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (ProbabilitySnapshot) TableName() string {
	return "probability_snapshots"
}
