package domain

// CheckCategory groups compliance checks for scoring and blocking policy.
type CheckCategory string

const (
	CategoryKYC      CheckCategory = "kyc"
	CategoryAML      CheckCategory = "aml"
	CategoryDocument CheckCategory = "document"
	CategoryQuality  CheckCategory = "quality"
)

// ComplianceCheckEntry is the outcome of a single compliance check.
// Produced once per check per verification run.
type ComplianceCheckEntry struct {
	Category   CheckCategory  `json:"category"`
	Name       string         `json:"name"`
	Passed     bool           `json:"passed"`
	Score      float64        `json:"score"`      // 0-100
	Confidence float64        `json:"confidence"` // 0.0-1.0
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

// Blocking reports whether a failed entry forces manual review
// irrespective of the overall score.
func (e ComplianceCheckEntry) Blocking() bool {
	return !e.Passed && (e.Category == CategoryAML || e.Category == CategoryKYC)
}

// RuleType discriminates the condition variant a rule definition carries.
type RuleType string

const (
	RuleRequiredDocument RuleType = "required_document"
	RuleFieldValidation  RuleType = "field_validation"
	RuleThreshold        RuleType = "threshold"
	RuleWatchlist        RuleType = "watchlist"
	RuleAgeVerification  RuleType = "age_verification"
	RuleCustom           RuleType = "custom"
)

// RuleDefinition is a policy-derived executable check. The condition is a
/// tagged union keyed by Type: exactly one of the parameter structs is set.
type RuleDefinition struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        RuleType      `json:"type"`
	Category    CheckCategory `json:"category"`

	Blocking bool    `json:"blocking"`
	Weight   float64 `json:"weight"`
	Enabled  bool    `json:"enabled"`

	// Failure message shown when the rule does not pass.
	ErrorMessage string `json:"errorMessage,omitempty"`

	RequiredDocument *RequiredDocumentCondition `json:"requiredDocument,omitempty"`
	FieldValidation  *FieldValidationCondition  `json:"fieldValidation,omitempty"`
	Threshold        *ThresholdCondition        `json:"threshold,omitempty"`
	AgeVerification  *AgeVerificationCondition  `json:"ageVerification,omitempty"`
	Custom           *CustomCondition           `json:"custom,omitempty"`
}

// RequiredDocumentCondition requires the listed document types to be present.
type RequiredDocumentCondition struct {
	DocumentTypes []DocumentType `json:"documentTypes"`
}

// FieldValidationCondition requires the listed declared fields to be non-empty.
type FieldValidationCondition struct {
	RequiredFields []string `json:"requiredFields"`
}

// ThresholdCondition bounds a numeric declared field.
type ThresholdCondition struct {
	Field    string   `json:"field"`
	MinValue *float64 `json:"minValue,omitempty"`
	MaxValue *float64 `json:"maxValue,omitempty"`
}

// AgeVerificationCondition requires the applicant to meet a minimum age.
type AgeVerificationCondition struct {
	MinAge int `json:"minAge"`
}

// CustomCondition is a CEL expression over the declared data. The expression
// must evaluate to a boolean; `declared` is a string map and `doc_types` a
// list of the submitted document type names.
type CustomCondition struct {
	Expression string `json:"expression"`
}
