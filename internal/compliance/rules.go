package compliance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/compare"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// ValidateRule checks a rule definition is well formed: the condition
// variant matching its type must be set, and custom expressions must
// compile. Called before a definition is persisted.
func (r *Runner) ValidateRule(rule *domain.RuleDefinition) error {
	if rule == nil {
		return fmt.Errorf("rule definition is required")
	}
	if rule.Code == "" {
		return fmt.Errorf("rule code is required")
	}

	switch rule.Type {
	case domain.RuleRequiredDocument:
		if rule.RequiredDocument == nil || len(rule.RequiredDocument.DocumentTypes) == 0 {
			return fmt.Errorf("rule %s: requiredDocument condition with at least one document type is required", rule.Code)
		}
	case domain.RuleFieldValidation:
		if rule.FieldValidation == nil || len(rule.FieldValidation.RequiredFields) == 0 {
			return fmt.Errorf("rule %s: fieldValidation condition with at least one field is required", rule.Code)
		}
	case domain.RuleThreshold:
		if rule.Threshold == nil || rule.Threshold.Field == "" {
			return fmt.Errorf("rule %s: threshold condition with a field is required", rule.Code)
		}
		if rule.Threshold.MinValue == nil && rule.Threshold.MaxValue == nil {
			return fmt.Errorf("rule %s: threshold condition needs a min or max value", rule.Code)
		}
	case domain.RuleAgeVerification:
		if rule.AgeVerification == nil || rule.AgeVerification.MinAge <= 0 {
			return fmt.Errorf("rule %s: ageVerification condition with a positive minAge is required", rule.Code)
		}
	case domain.RuleWatchlist:
		// No parameters; uses the configured screening provider.
	case domain.RuleCustom:
		if rule.Custom == nil || strings.TrimSpace(rule.Custom.Expression) == "" {
			return fmt.Errorf("rule %s: custom condition with an expression is required", rule.Code)
		}
		if err := r.cel.Compile(rule.Code, rule.Custom.Expression); err != nil {
			return err
		}
	default:
		return fmt.Errorf("rule %s: unknown rule type %q", rule.Code, rule.Type)
	}
	return nil
}

// runRule evaluates one configured rule definition. A rule that cannot be
// evaluated fails closed with a low confidence.
func (r *Runner) runRule(ctx context.Context, rule domain.RuleDefinition, in Input) domain.ComplianceCheckEntry {
	entry := domain.ComplianceCheckEntry{
		Category:   rule.Category,
		Name:       rule.Code,
		Confidence: 1.0,
	}

	passed, err := r.evaluateRule(ctx, rule, in)
	if err != nil {
		r.logger.Warn("rule evaluation failed", "rule", rule.Code, "error", err)
		entry.Message = fmt.Sprintf("rule evaluation failed: %v", err)
		entry.Confidence = 0.3
		return entry
	}

	if passed {
		entry.Passed = true
		entry.Score = 100.0
		entry.Message = fmt.Sprintf("rule %s passed", rule.Code)
	} else {
		entry.Message = rule.ErrorMessage
		if entry.Message == "" {
			entry.Message = fmt.Sprintf("rule %s failed", rule.Code)
		}
	}
	return entry
}

func (r *Runner) evaluateRule(ctx context.Context, rule domain.RuleDefinition, in Input) (bool, error) {
	switch rule.Type {
	case domain.RuleRequiredDocument:
		if rule.RequiredDocument == nil {
			return false, fmt.Errorf("requiredDocument condition missing")
		}
		present := make(map[domain.DocumentType]bool, len(in.DocTypes))
		for _, t := range in.DocTypes {
			present[t] = true
		}
		for _, t := range rule.RequiredDocument.DocumentTypes {
			if !present[t] {
				return false, nil
			}
		}
		return true, nil

	case domain.RuleFieldValidation:
		if rule.FieldValidation == nil {
			return false, fmt.Errorf("fieldValidation condition missing")
		}
		for _, field := range rule.FieldValidation.RequiredFields {
			if strings.TrimSpace(in.Declared[field]) == "" {
				return false, nil
			}
		}
		return true, nil

	case domain.RuleThreshold:
		if rule.Threshold == nil {
			return false, fmt.Errorf("threshold condition missing")
		}
		raw := strings.TrimSpace(in.Declared[rule.Threshold.Field])
		if raw == "" {
			return false, nil
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false, fmt.Errorf("field %s is not numeric: %w", rule.Threshold.Field, err)
		}
		if rule.Threshold.MinValue != nil && value < *rule.Threshold.MinValue {
			return false, nil
		}
		if rule.Threshold.MaxValue != nil && value > *rule.Threshold.MaxValue {
			return false, nil
		}
		return true, nil

	case domain.RuleAgeVerification:
		if rule.AgeVerification == nil {
			return false, fmt.Errorf("ageVerification condition missing")
		}
		dob, ok := compare.ParseDate(in.Declared["date_of_birth"])
		if !ok {
			return false, fmt.Errorf("could not parse date of birth")
		}
		return yearsSince(dob, r.now()) >= rule.AgeVerification.MinAge, nil

	case domain.RuleWatchlist:
		entry := r.checkWatchlist(ctx, in.Declared)
		return entry.Passed, nil

	case domain.RuleCustom:
		if rule.Custom == nil {
			return false, fmt.Errorf("custom condition missing")
		}
		docTypes := make([]string, len(in.DocTypes))
		for i, t := range in.DocTypes {
			docTypes[i] = string(t)
		}
		return r.cel.Eval(rule.Code, rule.Custom.Expression, in.Declared, docTypes)

	default:
		return false, fmt.Errorf("unknown rule type %q", rule.Type)
	}
}
