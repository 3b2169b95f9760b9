package simulate

import (
	"sort"
	"time"

	"revintel/internal/models"
)

// StageAgg is one row of the per-stage pipeline breakdown.
type StageAgg struct {
	Stage          string  `json:"stage"`
	Deals          int     `json:"deals"`
	TotalValue     float64 `json:"total_value"`
	WeightedValue  float64 `json:"weighted_value"`
	AvgProbability float64 `json:"avg_probability"`
}

// StageBreakdown aggregates the horizon-eligible deals by stage. It is
// computed straight from the deal set, independent of the trial loop.
func StageBreakdown(deals []models.Deal, horizonDays int, now time.Time) []StageAgg {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	end := now.Add(time.Duration(horizonDays) * 24 * time.Hour)
	agg := map[string]*StageAgg{}
	for _, d := range deals {
		if !eligible(d, end) {
			continue
		}
		row, ok := agg[d.Stage]
		if !ok {
			row = &StageAgg{Stage: d.Stage}
			agg[d.Stage] = row
		}
		value := d.Value.InexactFloat64()
		row.Deals++
		row.TotalValue += value
		row.WeightedValue += value * EffectiveProbability(d)
	}
	out := make([]StageAgg, 0, len(agg))
	for _, row := range agg {
		if row.TotalValue > 0 {
			row.AvgProbability = row.WeightedValue / row.TotalValue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		return models.StageOrder[out[i].Stage] < models.StageOrder[out[j].Stage]
	})
	return out
}

func eligible(d models.Deal, end time.Time) bool {
	if models.IsTerminalStage(d.Stage) {
		return false
	}
	if d.CloseDate == nil {
		return models.StageOrder[d.Stage] >= models.StageOrder[models.StageProposal]
	}
	return !d.CloseDate.After(end)
}
