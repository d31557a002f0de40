// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"
)

// Status is the lifecycle state of a verification request.
type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusReviewRequired Status = "review_required"
)

// CanTransitionTo reports whether the state machine allows moving to next.
// Terminal and interim result states can only be re-entered via pending.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusReviewRequired
	case StatusCompleted, StatusFailed, StatusReviewRequired:
		return next == StatusPending
	default:
		return false
	}
}

// VerificationRequest tracks one applicant's verification from submission to decision.
type VerificationRequest struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customerId"`
	AccountType string `json:"accountType"`

	// Declared data is the customer-entered snapshot to be verified
	// against document extractions.
	DeclaredData map[string]string `json:"declaredData"`

	Status Status `json:"status"`

	// Results (populated when processing finishes)
	OverallScore   float64            `json:"overallScore"`
	ScoreBreakdown map[string]float64 `json:"scoreBreakdown,omitempty"`

	// Approved is tri-state: nil until a decision is rendered.
	Approved       *bool  `json:"approved,omitempty"`
	DecisionReason string `json:"decisionReason,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Decision is the outcome category rendered by the decision engine.
type Decision string

const (
	DecisionApproved       Decision = "approved"
	DecisionReviewRequired Decision = "review_required"
	DecisionRejected       Decision = "rejected"
)

// Outcome is the result of one verification run, exposed to the caller.
type Outcome struct {
	RequestID      string                 `json:"requestId"`
	Decision       Decision               `json:"decision"`
	Approved       *bool                  `json:"approved"`
	OverallScore   float64                `json:"overallScore"`
	ScoreBreakdown map[string]float64     `json:"scoreBreakdown"`
	Comparisons    []ComparisonResult     `json:"comparisons"`
	Checks         []ComplianceCheckEntry `json:"checks"`
	Discrepancies  []Discrepancy          `json:"discrepancies"`
	DecisionReason string                 `json:"decisionReason"`
	RequiresReview bool                   `json:"requiresReview"`
}

// RequiresReview reports whether a decision needs a verification officer.
func (d Decision) RequiresReview() bool {
	return d == DecisionReviewRequired
}

// ApprovedFlag maps a decision to the request's tri-state approval flag.
// Review-required decisions leave the flag undecided.
func (d Decision) ApprovedFlag() *bool {
	switch d {
	case DecisionApproved:
		v := true
		return &v
	case DecisionRejected:
		v := false
		return &v
	default:
		return nil
	}
}
