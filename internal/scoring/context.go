package scoring

import (
	"math"
	"time"

	"revintel/internal/models"
)

// BuildWorkspaceStats derives the workspace-level comparison inputs from the
// current deal set: deal-size distribution and average observed time-in-stage.
// Per-deal history fields (Transitions, ProbabilityHistory) are filled in by
// the caller.
func BuildWorkspaceStats(deals []models.Deal, now time.Time) WorkspaceContext {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	wctx := WorkspaceContext{AvgStageDays: map[string]float64{}}
	if len(deals) == 0 {
		return wctx
	}

	var sum float64
	values := make([]float64, 0, len(deals))
	stageDays := map[string][]float64{}
	for _, d := range deals {
		v := d.Value.InexactFloat64()
		values = append(values, v)
		sum += v
		if !d.StageEnteredAt.IsZero() && !models.IsTerminalStage(d.Stage) {
			days := now.Sub(d.StageEnteredAt).Hours() / 24
			if days >= 0 {
				stageDays[d.Stage] = append(stageDays[d.Stage], days)
			}
		}
	}

	wctx.ValueMean = sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - wctx.ValueMean
		sq += d * d
	}
	wctx.ValueStdDev = math.Sqrt(sq / float64(len(values)))

	for stage, days := range stageDays {
		var t float64
		for _, d := range days {
			t += d
		}
		wctx.AvgStageDays[stage] = t / float64(len(days))
	}
	return wctx
}
