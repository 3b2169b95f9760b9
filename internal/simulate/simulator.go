// Package simulate builds an empirical revenue distribution for a set of open
// deals by Monte Carlo trial. Each trial samples an effective close
// probability per deal from a Beta distribution centered on the stated
// probability, then flips the weighted coin; trial totals form the
// distribution from which percentiles are extracted.
package simulate

import (
	"math"
	"sort"
	"sync"
	"time"

	"revintel/internal/apperr"
	"revintel/internal/models"
)

// DefaultStageProbability applies when a deal carries no stated probability.
var DefaultStageProbability = map[string]float64{
	models.StageLead:        0.10,
	models.StageQualified:   0.25,
	models.StageProposal:    0.50,
	models.StageNegotiation: 0.75,
}

// Input is one eligible deal reduced to what a trial needs.
type Input struct {
	DealID string
	Value  float64
	// Prob is the effective close probability in [0,1].
	Prob float64
}

// Percentiles is the extracted ladder. Values are monotonically
// non-decreasing by construction.
type Percentiles struct {
	P5  float64 `json:"p5"`
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
}

type Distribution struct {
	Percentiles Percentiles
	Mean        float64
	StdDev      float64

	// RawConfidence is 1 minus the coefficient of variation, clamped to
	// [0,1], before any historical-accuracy calibration.
	RawConfidence float64

	DealsAnalyzed int
	// PipelineValue is the undiscounted sum of eligible deal values.
	PipelineValue float64
}

type Simulator struct {
	// Iterations per run; zero falls back to 10000.
	Iterations int
	// Concentration is the Beta prior weight around each stated probability.
	// Zero or negative disables the uncertainty draw.
	Concentration float64
	// Workers shards trials across goroutines; zero or one runs inline.
	Workers int
	// Src supplies randomness; nil picks a clock-seeded source.
	Src Source
}

// EligibleInputs filters deals to those that can close inside the horizon and
// reduces them to simulation inputs. Terminal deals are excluded. Deals with
// no close date are eligible if their stage implies a near-term close.
func EligibleInputs(deals []models.Deal, horizonDays int, now time.Time) []Input {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	end := now.Add(time.Duration(horizonDays) * 24 * time.Hour)
	out := make([]Input, 0, len(deals))
	for _, d := range deals {
		if !eligible(d, end) {
			continue
		}
		out = append(out, Input{
			DealID: d.ID,
			Value:  d.Value.InexactFloat64(),
			Prob:   EffectiveProbability(d),
		})
	}
	return out
}

// EffectiveProbability resolves a deal's close probability in [0,1], applying
// the per-stage default when no estimate is stated.
func EffectiveProbability(d models.Deal) float64 {
	if d.Probability != nil {
		return clamp01(float64(*d.Probability) / 100.0)
	}
	return DefaultStageProbability[d.Stage]
}

// Run executes the trials and extracts distribution statistics.
// Zero inputs produce a zero distribution with confidence 0, not an error.
func (s *Simulator) Run(inputs []Input) (Distribution, error) {
	iterations := s.Iterations
	if iterations == 0 {
		iterations = 10000
	}
	if iterations < 0 {
		return Distribution{}, apperr.Newf(apperr.CodeComputation, "invalid iteration count %d", iterations)
	}

	dist := Distribution{DealsAnalyzed: len(inputs)}
	for _, in := range inputs {
		dist.PipelineValue += in.Value
	}
	if len(inputs) == 0 || iterations == 0 {
		return dist, nil
	}

	src := s.Src
	if src == nil {
		src = NewSource(0)
	}

	totals := s.runTrials(inputs, iterations, src)
	sort.Float64s(totals)

	dist.Percentiles = extractPercentiles(totals)
	dist.Mean, dist.StdDev = meanStdDev(totals)
	if dist.Mean > 0 {
		dist.RawConfidence = clamp01(1.0 - dist.StdDev/dist.Mean)
	}
	return dist, nil
}

func (s *Simulator) runTrials(inputs []Input, iterations int, src Source) []float64 {
	workers := s.Workers
	if workers <= 1 || iterations < workers {
		totals := make([]float64, iterations)
		s.trialLoop(inputs, totals, src)
		return totals
	}

	// Trials are independent; shard them and concatenate. Each shard gets a
	// source seeded from the parent so the whole run stays reproducible.
	totals := make([]float64, iterations)
	var wg sync.WaitGroup
	chunk := (iterations + workers - 1) / workers
	for start := 0; start < iterations; start += chunk {
		end := start + chunk
		if end > iterations {
			end = iterations
		}
		shard := totals[start:end]
		shardSrc := NewSource(childSeed(src))
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.trialLoop(inputs, shard, shardSrc)
		}()
	}
	wg.Wait()
	return totals
}

func (s *Simulator) trialLoop(inputs []Input, totals []float64, src Source) {
	for i := range totals {
		var sum float64
		for _, in := range inputs {
			p := in.Prob
			if s.Concentration > 0 && p > 0 && p < 1 {
				p = sampleBeta(src, p*s.Concentration, (1-p)*s.Concentration)
			}
			if src.Float64() < p {
				sum += in.Value
			}
		}
		totals[i] = sum
	}
}

// extractPercentiles uses linear interpolation between closest ranks over the
// sorted totals.
func extractPercentiles(sorted []float64) Percentiles {
	return Percentiles{
		P5:  percentile(sorted, 0.05),
		P10: percentile(sorted, 0.10),
		P25: percentile(sorted, 0.25),
		P50: percentile(sorted, 0.50),
		P75: percentile(sorted, 0.75),
		P90: percentile(sorted, 0.90),
		P95: percentile(sorted, 0.95),
	}
}

func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := q * float64(n-1)
	lo := int(math.Floor(rank))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	// Population standard deviation.
	return mean, math.Sqrt(sq / float64(len(values)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
