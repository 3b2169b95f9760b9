package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Forecast scenarios select which percentile becomes the headline prediction.
const (
	ScenarioWorst  = "worst"
	ScenarioLikely = "likely"
	ScenarioBest   = "best"
)

// Forecast is a persisted point-in-time revenue forecast for a workspace.
// Rows are immutable after insert except for the single resolution write.
type Forecast struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	WorkspaceID string `gorm:"type:varchar(40);not null;index"`

	HorizonDays int    `gorm:"not null"`
	Scenario    string `gorm:"type:varchar(10);not null"`

	PredictedRevenue decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Confidence       float64         `gorm:"not null"`

	WorstCase  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	LikelyCase decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	BestCase   decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	// Percentiles holds the full ladder (p5..p95) as {"p5": ..., ...}.
	Percentiles datatypes.JSON `gorm:"type:jsonb;not null"`

	Mean   float64 `gorm:"not null"`
	StdDev float64 `gorm:"not null"`

	PipelineCoverage *float64         `gorm:""`
	RevenueGoal      *decimal.Decimal `gorm:"type:numeric(30,10)"`

	DealsAnalyzed  int            `gorm:"not null"`
	StageBreakdown datatypes.JSON `gorm:"type:jsonb"`

	GeneratedAt time.Time `gorm:"type:timestamptz;not null;index"`

	// Resolution fields, nil until the forecast period is settled.
	ResolvedAt    *time.Time       `gorm:"type:timestamptz;index"`
	ActualRevenue *decimal.Decimal `gorm:"type:numeric(30,10)"`
	AccuracyScore *float64         `gorm:""`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Forecast) TableName() string {
	return "forecasts"
}

func (f *Forecast) Resolved() bool {
	return f != nil && f.ResolvedAt != nil
}

// RevenueGoal is the per-workspace revenue target used for pipeline coverage.
type RevenueGoal struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	WorkspaceID string          `gorm:"type:varchar(40);not null;uniqueIndex:idx_goal_ws_horizon"`
	HorizonDays int             `gorm:"not null;uniqueIndex:idx_goal_ws_horizon"`
	Amount      decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (RevenueGoal) TableName() string {
	return "revenue_goals"
}
