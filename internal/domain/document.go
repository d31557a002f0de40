package domain

import (
	"context"
	"time"
)

// DocumentType identifies the kind of identity document submitted.
type DocumentType string

const (
	DocNationalID      DocumentType = "national_id"
	DocPassport        DocumentType = "passport"
	DocDriversLicense  DocumentType = "drivers_license"
	DocApplicationForm DocumentType = "application_form"
	DocUtilityBill     DocumentType = "utility_bill"
	DocBankStatement   DocumentType = "bank_statement"
)

// MergePriority orders document types for field merging: lower wins ties.
// Unknown types sort last.
func (t DocumentType) MergePriority() int {
	switch t {
	case DocNationalID:
		return 1
	case DocPassport:
		return 2
	case DocDriversLicense:
		return 3
	case DocApplicationForm:
		return 4
	default:
		return 10
	}
}

// Document is a submitted identity document awaiting extraction.
type Document struct {
	ID        string       `json:"id"`
	RequestID string       `json:"requestId"`
	Type      DocumentType `json:"type"`
	FileRef   string       `json:"fileRef"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Extraction is the OCR collaborator's output for one document.
type Extraction struct {
	DocumentID   string            `json:"documentId"`
	DocumentType DocumentType      `json:"documentType"`
	Fields       map[string]string `json:"structuredFields"`
	Confidence   float64           `json:"overallConfidence"` // 0.0-1.0
	RawText      string            `json:"rawText,omitempty"`

	// Err is set when extraction failed; a failed extraction still counts
	// against document quality but never aborts the run.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the extraction produced no usable data.
func (e *Extraction) Failed() bool {
	return e == nil || e.Err != ""
}

// OCRClient is the external text-extraction collaborator.
type OCRClient interface {
	Extract(ctx context.Context, doc Document) (*Extraction, error)
}

// ScreeningStatus is the watchlist/PEP collaborator verdict.
// Unknown is distinct from Clear: an unavailable provider must never be
// treated as confirmed clearance.
type ScreeningStatus string

const (
	ScreeningClear   ScreeningStatus = "clear"
	ScreeningMatch   ScreeningStatus = "match"
	ScreeningUnknown ScreeningStatus = "unknown"
)

// ScreeningResult is the outcome of a watchlist/PEP screening call.
type ScreeningResult struct {
	Status     ScreeningStatus `json:"status"`
	Confidence float64         `json:"confidence"`
	Detail     string          `json:"detail,omitempty"`
}

// WatchlistClient is the external sanctions/PEP screening collaborator.
type WatchlistClient interface {
	Screen(ctx context.Context, declared map[string]string) (ScreeningResult, error)
}
