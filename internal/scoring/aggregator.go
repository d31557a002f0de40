// Package scoring rolls per-field comparisons, compliance checks, and
// document quality into a single 0-100 verification score.
package scoring

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Component names in the score breakdown.
const (
	ComponentIdentity   = "identity"
	ComponentDocument   = "document"
	ComponentCompliance = "compliance"
	ComponentQuality    = "quality"
)

// Aggregator computes component scores and the weighted overall score.
type Aggregator struct {
	weights map[string]float64
}

// NewAggregator creates an aggregator with the given component weights.
// Components absent from the map contribute nothing to the overall score.
func NewAggregator(weights map[string]float64) *Aggregator {
	return &Aggregator{weights: weights}
}

// Input carries the raw material for one scoring pass.
type Input struct {
	Comparisons []domain.ComparisonResult
	Checks      []domain.ComplianceCheckEntry
	Extractions []domain.Extraction
}

// Score returns the overall 0-100 score and the per-component breakdown.
// The breakdown always contains all four components so persisted results
// are comparable across runs.
func (a *Aggregator) Score(in Input) (float64, map[string]float64) {
	breakdown := map[string]float64{
		ComponentIdentity:   identityScore(in.Comparisons),
		ComponentCompliance: complianceScore(in.Checks),
		ComponentQuality:    qualityScore(in.Extractions),
		ComponentDocument:   documentScore(in.Extractions),
	}

	overall := 0.0
	for component, score := range breakdown {
		overall += score * a.weights[component]
	}
	return overall, breakdown
}

// identityScore is the mean field similarity on the 0-100 scale.
func identityScore(comparisons []domain.ComparisonResult) float64 {
	if len(comparisons) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, c := range comparisons {
		sum += c.Similarity
	}
	return sum / float64(len(comparisons)) * 100.0
}

// complianceScore is the mean check score. No checks configured means
// nothing to fail.
func complianceScore(checks []domain.ComplianceCheckEntry) float64 {
	if len(checks) == 0 {
		return 100.0
	}
	sum := 0.0
	for _, c := range checks {
		sum += c.Score
	}
	return sum / float64(len(checks))
}

// qualityScore bands each successful extraction's confidence and averages
// the banded scores. Failed extractions do not contribute.
func qualityScore(extractions []domain.Extraction) float64 {
	sum, count := 0.0, 0
	for i := range extractions {
		e := extractions[i]
		if e.Failed() {
			continue
		}
		sum += ConfidenceBand(e.Confidence)
		count++
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// ConfidenceBand maps an extraction confidence to a 0-100 quality score.
func ConfidenceBand(confidence float64) float64 {
	switch {
	case confidence >= 0.9:
		return 100.0
	case confidence >= 0.75:
		return 85.0
	case confidence >= 0.6:
		return 70.0
	default:
		return 50.0
	}
}

// documentScore reflects whether any document produced usable data.
func documentScore(extractions []domain.Extraction) float64 {
	for _, e := range extractions {
		if !e.Failed() {
			return 100.0
		}
	}
	return 0.0
}
