// Package scoring computes per-deal health scores: six weighted dimensions
// combined into a 0-100 composite with a categorical status. Scoring is pure;
// missing inputs degrade individual dimensions to a neutral midpoint instead
// of failing the whole computation.
package scoring

import (
	"math"
	"time"

	"revintel/internal/apperr"
	"revintel/internal/models"
)

// Dimension names, used as keys in HealthScore.Components.
const (
	DimVelocity    = "velocity"
	DimEngagement  = "engagement"
	DimProgression = "progression"
	DimTrend       = "probability_trend"
	DimSizeRisk    = "size_risk"
	DimTimeToClose = "time_to_close"
)

// Weights sum to 1.0.
var weights = map[string]float64{
	DimVelocity:    0.20,
	DimEngagement:  0.15,
	DimProgression: 0.15,
	DimTrend:       0.15,
	DimSizeRisk:    0.15,
	DimTimeToClose: 0.20,
}

// statusThresholds maps score floors to status buckets, checked in order.
var statusThresholds = []struct {
	Min    float64
	Status string
}{
	{85, models.HealthExcellent},
	{70, models.HealthGood},
	{50, models.HealthFair},
	{30, models.HealthPoor},
	{0, models.HealthCritical},
}

const neutral = 50.0

// WorkspaceContext carries the light workspace-level inputs a single-deal
// score compares against. All fields are optional; absent data degrades the
// matching dimension to neutral.
type WorkspaceContext struct {
	// AvgStageDays is the workspace's historical average days spent in each stage.
	AvgStageDays map[string]float64
	// ValueMean and ValueStdDev describe the workspace deal-size distribution.
	ValueMean   float64
	ValueStdDev float64
	// Transitions is the deal's stage history, oldest first.
	Transitions []models.StageTransition
	// ProbabilityHistory is the deal's recent stated probabilities, oldest first.
	ProbabilityHistory []int
}

type Scorer struct {
	// StalenessDays bounds the engagement dimension; zero falls back to 14.
	StalenessDays int
	// Now is injectable for tests; nil uses the wall clock.
	Now func() time.Time
}

func (s *Scorer) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Score computes the composite health score for one deal. It only errors on a
// malformed deal (negative value, unknown stage).
func (s *Scorer) Score(deal models.Deal, wctx WorkspaceContext) (models.HealthScore, error) {
	if deal.Value.IsNegative() {
		return models.HealthScore{}, apperr.Newf(apperr.CodeValidation, "deal %s has negative value", deal.ID)
	}
	if !models.IsValidStage(deal.Stage) {
		return models.HealthScore{}, apperr.Newf(apperr.CodeValidation, "deal %s has unknown stage %q", deal.ID, deal.Stage)
	}

	now := s.now()
	components := map[string]float64{
		DimVelocity:    s.scoreVelocity(deal, wctx, now),
		DimEngagement:  s.scoreEngagement(deal, now),
		DimProgression: scoreProgression(wctx.Transitions),
		DimTrend:       scoreTrend(wctx.ProbabilityHistory),
		DimSizeRisk:    scoreSizeRisk(deal, wctx),
		DimTimeToClose: scoreTimeToClose(deal, now),
	}

	var total float64
	for dim, score := range components {
		total += score * weights[dim]
	}
	total = clamp(total, 0, 100)

	return models.HealthScore{
		DealID:     deal.ID,
		Score:      round1(total),
		Status:     StatusFor(total),
		Components: roundComponents(components),
	}, nil
}

// ScoreAll scores every deal and aggregates workspace-level metrics.
// Individual malformed deals are skipped rather than failing the batch.
func (s *Scorer) ScoreAll(workspaceID string, deals []models.Deal, wctxFor func(models.Deal) WorkspaceContext) models.WorkspaceHealth {
	out := models.WorkspaceHealth{
		WorkspaceID:  workspaceID,
		TotalDeals:   len(deals),
		Distribution: map[string]int{},
	}
	var sum float64
	for _, d := range deals {
		var wctx WorkspaceContext
		if wctxFor != nil {
			wctx = wctxFor(d)
		}
		hs, err := s.Score(d, wctx)
		if err != nil {
			continue
		}
		out.Deals = append(out.Deals, hs)
		out.Distribution[hs.Status]++
		sum += hs.Score
	}
	if len(out.Deals) > 0 {
		out.AverageScore = round1(sum / float64(len(out.Deals)))
	}
	return out
}

// StatusFor buckets a composite score into its status label.
func StatusFor(score float64) string {
	for _, t := range statusThresholds {
		if score >= t.Min {
			return t.Status
		}
	}
	return models.HealthCritical
}

// scoreVelocity penalizes time-in-stage beyond the workspace average for that
// stage: full score up to 1x the average, linear decay past 1.5x, floor 0.
func (s *Scorer) scoreVelocity(deal models.Deal, wctx WorkspaceContext, now time.Time) float64 {
	avg := wctx.AvgStageDays[deal.Stage]
	if avg <= 0 || deal.StageEnteredAt.IsZero() {
		return neutral
	}
	days := now.Sub(deal.StageEnteredAt).Hours() / 24
	ratio := days / avg
	switch {
	case ratio <= 1.0:
		return 100
	case ratio <= 1.5:
		// 100 down to 60 across the grace band.
		return 100 - (ratio-1.0)*80
	default:
		// Past 1.5x: decay toward zero at 3x.
		return clamp(60-(ratio-1.5)*40, 0, 60)
	}
}

// scoreEngagement decays with days since the last recorded interaction,
// reaching 0 at the staleness threshold.
func (s *Scorer) scoreEngagement(deal models.Deal, now time.Time) float64 {
	if deal.LastActivityAt == nil {
		return neutral
	}
	staleness := 14
	if s != nil && s.StalenessDays > 0 {
		staleness = s.StalenessDays
	}
	days := now.Sub(*deal.LastActivityAt).Hours() / 24
	if days <= 0 {
		return 100
	}
	if days >= float64(staleness) {
		return 0
	}
	return 100 * (1 - days/float64(staleness))
}

// scoreProgression rewards forward stage movement and penalizes regressions.
func scoreProgression(transitions []models.StageTransition) float64 {
	if len(transitions) == 0 {
		return neutral
	}
	forward, backward := 0, 0
	for _, tr := range transitions {
		from, okFrom := models.StageOrder[tr.FromStage]
		to, okTo := models.StageOrder[tr.ToStage]
		if !okFrom || !okTo {
			continue
		}
		if to > from {
			forward++
		} else if to < from {
			backward++
		}
	}
	moves := forward + backward
	if moves == 0 {
		return neutral
	}
	return 100 * float64(forward) / float64(moves)
}

// scoreTrend rewards a rising probability history and penalizes decline.
func scoreTrend(history []int) float64 {
	if len(history) < 2 {
		return neutral
	}
	first := float64(history[0])
	last := float64(history[len(history)-1])
	delta := last - first
	// +-25 points of probability swing covers the full score range.
	return clamp(neutral+delta*2, 0, 100)
}

// scoreSizeRisk penalizes statistical outliers in deal size, since outsized
// deals carry disproportionate forecast risk.
func scoreSizeRisk(deal models.Deal, wctx WorkspaceContext) float64 {
	if wctx.ValueStdDev <= 0 || wctx.ValueMean <= 0 {
		return neutral
	}
	z := math.Abs(deal.Value.InexactFloat64()-wctx.ValueMean) / wctx.ValueStdDev
	switch {
	case z <= 1:
		return 100
	case z <= 3:
		return 100 - (z-1)*25
	default:
		return clamp(50-(z-3)*25, 0, 50)
	}
}

// scoreTimeToClose penalizes a past-due close date or one implausibly distant
// for the deal's stage.
func scoreTimeToClose(deal models.Deal, now time.Time) float64 {
	if deal.CloseDate == nil {
		return neutral
	}
	days := deal.CloseDate.Sub(now).Hours() / 24
	if days < 0 {
		// Past due; sink further the longer it slips.
		return clamp(30+days, 0, 30)
	}
	horizon := plausibleCloseDays(deal.Stage)
	if days <= horizon {
		return 100
	}
	return clamp(100-(days-horizon), 20, 100)
}

// plausibleCloseDays is the outer close window considered normal per stage.
func plausibleCloseDays(stage string) float64 {
	switch stage {
	case models.StageNegotiation:
		return 30
	case models.StageProposal:
		return 60
	case models.StageQualified:
		return 90
	default:
		return 120
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func roundComponents(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = round1(v)
	}
	return out
}
