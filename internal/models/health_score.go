package models

// Health status buckets over the composite score.
const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthFair      = "fair"
	HealthPoor      = "poor"
	HealthCritical  = "critical"
)

// HealthScore is a derived per-deal signal. It is recomputed on demand and
// never persisted; the deal itself is not mutated.
type HealthScore struct {
	DealID string  `json:"deal_id"`
	Score  float64 `json:"score"`
	Status string  `json:"status"`

	// Components exposes the per-dimension sub-scores for explainability.
	Components map[string]float64 `json:"components"`
}

// WorkspaceHealth aggregates health scores across a workspace's open deals.
type WorkspaceHealth struct {
	WorkspaceID  string         `json:"workspace_id"`
	AverageScore float64        `json:"average_score"`
	TotalDeals   int            `json:"total_deals"`
	Distribution map[string]int `json:"distribution"`
	Deals        []HealthScore  `json:"deals"`
}
