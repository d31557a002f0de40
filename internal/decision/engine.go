// Package decision renders the approve/review/reject outcome from a
// scored verification run.
package decision

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine applies the decision policy. Blocking compliance failures and
// weak critical-field matches force review before the score thresholds
// are consulted.
type Engine struct {
	autoApprove float64
	review      float64
	autoReject  float64

	// criticalMismatch is the similarity below which a non-matching field
	// forces review regardless of the overall score.
	criticalMismatch float64
}

// NewEngine creates a decision engine from the configured thresholds.
func NewEngine(cfg domain.VerificationConfig) *Engine {
	return &Engine{
		autoApprove:      cfg.AutoApproveThreshold,
		review:           cfg.ReviewThreshold,
		autoReject:       cfg.AutoRejectThreshold,
		criticalMismatch: 0.5,
	}
}

// Decide renders the outcome for one run. Gates are checked in order:
// blocking compliance failures first, then severe field mismatches, then
// the score bands. All threshold comparisons are inclusive.
func (e *Engine) Decide(score float64, comparisons []domain.ComparisonResult, checks []domain.ComplianceCheckEntry) (domain.Decision, string) {
	var blocked []string
	for _, check := range checks {
		if check.Blocking() {
			blocked = append(blocked, fmt.Sprintf("%s/%s", check.Category, check.Name))
		}
	}
	if len(blocked) > 0 {
		return domain.DecisionReviewRequired,
			"blocking compliance checks failed: " + strings.Join(blocked, ", ")
	}

	var severe []string
	for _, c := range comparisons {
		if !c.Match && c.Similarity < e.criticalMismatch {
			severe = append(severe, fmt.Sprintf("%s (similarity %.2f)", c.Field, c.Similarity))
		}
	}
	if len(severe) > 0 {
		return domain.DecisionReviewRequired,
			"severe mismatch on " + strings.Join(severe, ", ")
	}

	switch {
	case score >= e.autoApprove:
		return domain.DecisionApproved,
			fmt.Sprintf("score %.1f meets auto-approve threshold %.1f", score, e.autoApprove)
	case score >= e.review:
		return domain.DecisionReviewRequired,
			fmt.Sprintf("score %.1f requires manual review", score)
	case score >= e.autoReject:
		return domain.DecisionReviewRequired,
			fmt.Sprintf("score %.1f requires supervisor review", score)
	default:
		return domain.DecisionRejected,
			fmt.Sprintf("score %.1f below rejection threshold %.1f", score, e.autoReject)
	}
}
