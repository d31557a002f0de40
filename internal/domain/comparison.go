package domain

import (
	"time"
)

// FieldType selects the comparison algorithm for a field pair.
type FieldType string

const (
	FieldTypeName    FieldType = "name"
	FieldTypeID      FieldType = "id"
	FieldTypeDate    FieldType = "date"
	FieldTypePhone   FieldType = "phone"
	FieldTypeEmail   FieldType = "email"
	FieldTypeAddress FieldType = "address"
	FieldTypeText    FieldType = "text"
)

// ComparisonResult is the outcome of comparing one declared value against
// the value extracted from documents. Immutable once produced.
type ComparisonResult struct {
	Field      string  `json:"field"`
	Entered    string  `json:"entered"`
	Extracted  string  `json:"extracted"`
	Similarity float64 `json:"similarity"` // 0.0-1.0
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"` // 0.0-1.0

	// Method is a tag identifying the algorithm that produced the score.
	Method string `json:"method"`

	// Details carries auxiliary diagnostics (normalized forms, sub-scores).
	Details map[string]any `json:"details,omitempty"`
}

// Severity classifies how bad a discrepancy is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

// SeverityForSimilarity maps a non-matching similarity score to a severity.
func SeverityForSimilarity(similarity float64) Severity {
	switch {
	case similarity < 0.5:
		return SeverityCritical
	case similarity < 0.7:
		return SeverityMajor
	default:
		return SeverityMinor
	}
}

// ResolutionStatus is the reviewer-driven lifecycle of a discrepancy.
type ResolutionStatus string

const (
	ResolutionUnresolved ResolutionStatus = "unresolved"
	ResolutionAccepted   ResolutionStatus = "accepted"
	ResolutionCorrected  ResolutionStatus = "corrected"
	ResolutionDismissed  ResolutionStatus = "dismissed"
)

// ValidResolution reports whether s is a recognized resolution status.
func ValidResolution(s ResolutionStatus) bool {
	switch s {
	case ResolutionUnresolved, ResolutionAccepted, ResolutionCorrected, ResolutionDismissed:
		return true
	}
	return false
}

// Discrepancy records a mismatch between declared and extracted values.
// Created only for failed comparisons; the resolution fields are the only
// part mutable after creation.
type Discrepancy struct {
	ID        string `json:"id"`
	RequestID string `json:"requestId"`

	Field         string `json:"field"`
	EnteredValue  string `json:"enteredValue"`
	DocumentValue string `json:"documentValue"`

	Severity Severity `json:"severity"`

	// SimilarityScore is on the 0-100 scale for reviewer display.
	SimilarityScore float64 `json:"similarityScore"`

	Description string `json:"description"`

	Resolution     ResolutionStatus `json:"resolution"`
	ResolvedBy     string           `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time       `json:"resolvedAt,omitempty"`
	ResolutionNote string           `json:"resolutionNote,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
