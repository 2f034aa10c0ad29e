package aggregation

import (
	"math"
	"slices"

	"github.com/ahrav/go-rubric/internal/domain"
)

// bucket collects the values of one dimension within one scope.
type bucket struct {
	continuous  []float64
	categorical domain.CategoryCounts
}

// ComputeStatistics summarizes scores over samples.
//
// Algorithm:
//   - Samples are visited in order; samples without a record are skipped.
//   - Every visited sample contributes its overall scope and each recorded
//     turn scope. Each scope instance contributes four slots to the harmful
//     denominator whether or not the slots hold values.
//   - Each numeric value is classified (see classify) into the continuous or
//     categorical bucket of its scope and dimension. Non-numeric values are
//     skipped everywhere except the slot count.
//
// It never fails: empty input yields zero counts, null means and null modes.
func ComputeStatistics(samples []domain.Sample, scores domain.RecordLookup) domain.Statistics {
	dims := domain.Dimensions()
	overall := make(map[domain.Dimension]*bucket, len(dims))
	turn := make(map[domain.Dimension]*bucket, len(dims))
	for _, d := range dims {
		overall[d] = &bucket{}
		turn[d] = &bucket{}
	}

	stats := domain.Statistics{TotalSamples: len(samples)}

	visit := func(scope domain.ScopeScores, into map[domain.Dimension]*bucket) {
		for _, d := range dims {
			stats.ScoredSlots++
			v, ok := scope.Criteria[d]
			if !ok {
				continue
			}
			f, numeric := v.Float64()
			if !numeric || math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			if f == domain.HarmfulValue {
				stats.HarmfulCount++
			}
			b := into[d]
			if classify(scope.Mode, f) == domain.ModeCategorical {
				b.categorical.Add(int(f))
			} else {
				b.continuous = append(b.continuous, f)
			}
		}
	}

	if scores != nil {
		for _, sample := range samples {
			rec, ok := scores.Lookup(sample.ID)
			if !ok {
				continue
			}
			stats.CompletedSamples++
			visit(rec.Overall, overall)
			for _, idx := range rec.TurnIndices() {
				visit(rec.Turns[idx], turn)
			}
		}
	}

	if stats.ScoredSlots > 0 {
		stats.HarmfulRate = float64(stats.HarmfulCount) / float64(stats.ScoredSlots)
	}

	stats.Overall = summarize(overall)
	stats.Turn = summarize(turn)
	return stats
}

// classify decides which summary a value belongs to. A scope tagged
// continuous feeds the continuous summary. A scope tagged categorical feeds
// the categorical summary only when the value is a categorical option, since
// re-tagging can label continuous entries as categorical. Untagged legacy
// values are categorical iff they are an integer option.
func classify(mode domain.ScoreMode, v float64) domain.ScoreMode {
	if mode == domain.ModeContinuous {
		return domain.ModeContinuous
	}
	if domain.IsCategoricalOption(v) {
		return domain.ModeCategorical
	}
	return domain.ModeContinuous
}

func summarize(buckets map[domain.Dimension]*bucket) map[domain.Dimension]domain.CriterionStats {
	out := make(map[domain.Dimension]domain.CriterionStats, len(buckets))
	for d, b := range buckets {
		out[d] = domain.CriterionStats{
			Continuous:  continuousStats(b.continuous),
			Categorical: categoricalStats(b.categorical),
		}
	}
	return out
}

func continuousStats(values []float64) domain.ContinuousStats {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	cs := domain.ContinuousStats{
		N:         len(sorted),
		Histogram: Histogram(sorted),
	}
	if len(sorted) == 0 {
		return cs
	}
	mean := Mean(sorted)
	median := Median(sorted)
	cs.Mean = &mean
	cs.Median = &median
	return cs
}

func categoricalStats(counts domain.CategoryCounts) domain.CategoricalStats {
	cs := domain.CategoricalStats{Counts: counts}
	if cs.Counts == nil {
		cs.Counts = domain.CategoryCounts{}
	}
	if mode, ok := counts.Mode(); ok {
		cs.Mode = &mode
	}
	return cs
}

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the median of ascending-sorted values, or NaN when empty.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Histogram buckets values into domain.HistogramBins equal-width bins over
// the continuous range. Each bin is labelled with its rounded lower bound.
// Values outside the range are clamped into the edge bins.
func Histogram(values []float64) []domain.HistogramBin {
	const lo, hi = domain.ContinuousMin, domain.ContinuousMax
	width := (hi - lo) / domain.HistogramBins

	bins := make([]domain.HistogramBin, domain.HistogramBins)
	for i := range bins {
		bins[i].Label = int(math.Round(lo + float64(i)*width))
	}
	for _, v := range values {
		i := int(math.Floor((v - lo) / width))
		i = max(0, min(i, domain.HistogramBins-1))
		bins[i].Count++
	}
	return bins
}
