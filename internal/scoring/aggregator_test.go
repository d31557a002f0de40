package scoring

import (
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func defaultWeights() map[string]float64 {
	return map[string]float64{
		ComponentIdentity:   0.40,
		ComponentDocument:   0.25,
		ComponentCompliance: 0.25,
		ComponentQuality:    0.10,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestScorePerfectRun(t *testing.T) {
	agg := NewAggregator(defaultWeights())

	overall, breakdown := agg.Score(Input{
		Comparisons: []domain.ComparisonResult{
			{Field: "full_name", Similarity: 1.0, Match: true},
			{Field: "id_number", Similarity: 1.0, Match: true},
		},
		Checks: []domain.ComplianceCheckEntry{
			{Name: "age_verification", Passed: true, Score: 100.0},
		},
		Extractions: []domain.Extraction{
			{DocumentID: "d1", Confidence: 0.95},
		},
	})

	if !almostEqual(overall, 100.0) {
		t.Errorf("expected perfect overall score, got %v", overall)
	}
	for _, component := range []string{ComponentIdentity, ComponentDocument, ComponentCompliance, ComponentQuality} {
		if !almostEqual(breakdown[component], 100.0) {
			t.Errorf("component %s = %v, want 100", component, breakdown[component])
		}
	}
}

func TestScoreComponents(t *testing.T) {
	agg := NewAggregator(defaultWeights())

	t.Run("IdentityIsMeanSimilarity", func(t *testing.T) {
		_, breakdown := agg.Score(Input{
			Comparisons: []domain.ComparisonResult{
				{Similarity: 1.0},
				{Similarity: 0.5},
			},
		})
		if !almostEqual(breakdown[ComponentIdentity], 75.0) {
			t.Errorf("identity = %v, want 75", breakdown[ComponentIdentity])
		}
	})

	t.Run("NoComparisonsScoresZero", func(t *testing.T) {
		_, breakdown := agg.Score(Input{})
		if breakdown[ComponentIdentity] != 0.0 {
			t.Errorf("identity with no comparisons = %v, want 0", breakdown[ComponentIdentity])
		}
	})

	t.Run("NoChecksMeansNothingToFail", func(t *testing.T) {
		_, breakdown := agg.Score(Input{})
		if breakdown[ComponentCompliance] != 100.0 {
			t.Errorf("compliance with no checks = %v, want 100", breakdown[ComponentCompliance])
		}
	})

	t.Run("ComplianceIsMeanCheckScore", func(t *testing.T) {
		_, breakdown := agg.Score(Input{
			Checks: []domain.ComplianceCheckEntry{
				{Score: 100.0},
				{Score: 60.0},
			},
		})
		if !almostEqual(breakdown[ComponentCompliance], 80.0) {
			t.Errorf("compliance = %v, want 80", breakdown[ComponentCompliance])
		}
	})

	t.Run("QualityBandsPerDocument", func(t *testing.T) {
		_, breakdown := agg.Score(Input{
			Extractions: []domain.Extraction{
				{DocumentID: "d1", Confidence: 0.95}, // 100
				{DocumentID: "d2", Confidence: 0.65}, // 70
				{DocumentID: "d3", Err: "unreadable"},
			},
		})
		if !almostEqual(breakdown[ComponentQuality], 85.0) {
			t.Errorf("quality = %v, want 85 (failed extraction excluded)", breakdown[ComponentQuality])
		}
	})

	t.Run("AllExtractionsFailed", func(t *testing.T) {
		_, breakdown := agg.Score(Input{
			Extractions: []domain.Extraction{
				{DocumentID: "d1", Err: "unreadable"},
			},
		})
		if breakdown[ComponentQuality] != 0.0 {
			t.Errorf("quality = %v, want 0", breakdown[ComponentQuality])
		}
		if breakdown[ComponentDocument] != 0.0 {
			t.Errorf("document = %v, want 0", breakdown[ComponentDocument])
		}
	})

	t.Run("DocumentScoreNeedsOneSuccess", func(t *testing.T) {
		_, breakdown := agg.Score(Input{
			Extractions: []domain.Extraction{
				{DocumentID: "d1", Err: "unreadable"},
				{DocumentID: "d2", Confidence: 0.4},
			},
		})
		if breakdown[ComponentDocument] != 100.0 {
			t.Errorf("document = %v, want 100", breakdown[ComponentDocument])
		}
	})
}

func TestScoreWeighting(t *testing.T) {
	// Only identity weighted: the other components must not move the total.
	agg := NewAggregator(map[string]float64{ComponentIdentity: 1.0})

	overall, _ := agg.Score(Input{
		Comparisons: []domain.ComparisonResult{{Similarity: 0.8}},
		Checks:      []domain.ComplianceCheckEntry{{Score: 10.0}},
	})
	if !almostEqual(overall, 80.0) {
		t.Errorf("overall = %v, want 80 with identity-only weights", overall)
	}
}

func TestConfidenceBand(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{0.95, 100.0},
		{0.9, 100.0},
		{0.8, 85.0},
		{0.75, 85.0},
		{0.65, 70.0},
		{0.6, 70.0},
		{0.59, 50.0},
		{0.0, 50.0},
	}

	for _, tt := range tests {
		if got := ConfidenceBand(tt.confidence); got != tt.want {
			t.Errorf("ConfidenceBand(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}
