package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ahrav/go-rubric/internal/aggregation"
	"github.com/ahrav/go-rubric/internal/domain"
)

const notApplicable = "N/A"

// harmfulLegend explains the reserved value in every report.
const harmfulLegend = "> Note: a score of -1 marks harmful content in both scoring modes " +
	"(continuous -1..100 and categorical -1/0/1/2/3). Harmful values are kept " +
	"verbatim in every statistic."

// ExportReport renders the markdown report for samples and scores.
func ExportReport(samples []domain.Sample, scores domain.RecordLookup) string {
	return RenderReport(aggregation.ComputeStatistics(samples, scores))
}

// RenderReport formats precomputed statistics.
func RenderReport(stats domain.Statistics) string {
	var b strings.Builder

	b.WriteString("# Annotation Report\n\n")
	fmt.Fprintf(&b, "- Completed samples: %d / %d\n", stats.CompletedSamples, stats.TotalSamples)
	fmt.Fprintf(&b, "- Harmful rate: %.2f%% (%d of %d slots)\n\n",
		stats.HarmfulRate*100, stats.HarmfulCount, stats.ScoredSlots)
	b.WriteString(harmfulLegend)
	b.WriteString("\n")

	for _, d := range domain.Dimensions() {
		fmt.Fprintf(&b, "\n## %s: %s\n\n", d, d.Label())
		writeScopeLine(&b, "Overall", stats.Overall[d])
		writeScopeLine(&b, "Per-turn", stats.Turn[d])
	}
	return b.String()
}

func writeScopeLine(b *strings.Builder, title string, cs domain.CriterionStats) {
	fmt.Fprintf(b, "- %s: mean %s, median %s (n=%d); mode %s (n=%d)\n",
		title,
		formatFloat(cs.Continuous.Mean),
		formatFloat(cs.Continuous.Median),
		cs.Continuous.N,
		formatMode(cs.Categorical.Mode),
		cs.Categorical.Counts.Total())
}

func formatFloat(v *float64) string {
	if v == nil {
		return notApplicable
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatMode(v *int) string {
	if v == nil {
		return notApplicable
	}
	return strconv.Itoa(*v)
}
