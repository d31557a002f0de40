package compare

import (
	"sort"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// fieldTypes classifies well-known field names so callers do not have to
// pass a type per field. Unknown names fall back to generic text.
var fieldTypes = map[string]domain.FieldType{
	"full_name":   domain.FieldTypeName,
	"first_name":  domain.FieldTypeName,
	"last_name":   domain.FieldTypeName,
	"surname":     domain.FieldTypeName,
	"given_name":  domain.FieldTypeName,
	"middle_name": domain.FieldTypeName,

	"id_number":       domain.FieldTypeID,
	"national_id":     domain.FieldTypeID,
	"passport_number": domain.FieldTypeID,
	"license_number":  domain.FieldTypeID,
	"document_number": domain.FieldTypeID,

	"date_of_birth": domain.FieldTypeDate,
	"dob":           domain.FieldTypeDate,
	"issue_date":    domain.FieldTypeDate,
	"expiry_date":   domain.FieldTypeDate,

	"phone":        domain.FieldTypePhone,
	"phone_number": domain.FieldTypePhone,
	"mobile":       domain.FieldTypePhone,
	"telephone":    domain.FieldTypePhone,

	"email":         domain.FieldTypeEmail,
	"email_address": domain.FieldTypeEmail,

	"address":             domain.FieldTypeAddress,
	"residential_address": domain.FieldTypeAddress,
	"postal_address":      domain.FieldTypeAddress,
}

// FieldTypeFor returns the comparison type for a field name.
func FieldTypeFor(field string) domain.FieldType {
	if ft, ok := fieldTypes[strings.ToLower(strings.TrimSpace(field))]; ok {
		return ft
	}
	return domain.FieldTypeText
}

// CompareAll compares every requested field present in both maps. When
// fields is nil, the intersection of the two key sets is compared.
// Results come back in deterministic field order.
func (c *Comparator) CompareAll(entered, extracted map[string]string, fields []string) []domain.ComparisonResult {
	if fields == nil {
		for field := range entered {
			if _, ok := extracted[field]; ok {
				fields = append(fields, field)
			}
		}
		sort.Strings(fields)
	}

	results := make([]domain.ComparisonResult, 0, len(fields))
	for _, field := range fields {
		enteredVal, okEntered := entered[field]
		extractedVal, okExtracted := extracted[field]
		if !okEntered && !okExtracted {
			continue
		}
		results = append(results, c.Compare(field, enteredVal, extractedVal, FieldTypeFor(field)))
	}
	return results
}

// Aggregate reduces per-field results to a weighted overall similarity
// and confidence. When weights is nil the configured field weights apply
// (id_number 2.0, full_name 1.5, date_of_birth 1.5); any field without
// an entry counts 1.0.
func Aggregate(results []domain.ComparisonResult, weights map[string]float64) (similarity, confidence float64) {
	if len(results) == 0 {
		return 0.0, 0.0
	}
	if weights == nil {
		weights = domain.DefaultVerificationConfig().FieldWeights
	}

	var weightSum, simSum, confSum float64
	for _, r := range results {
		w := 1.0
		if explicit, ok := weights[r.Field]; ok {
			w = explicit
		}
		weightSum += w
		simSum += r.Similarity * w
		confSum += r.Confidence * w
	}
	if weightSum == 0 {
		return 0.0, 0.0
	}
	return simSum / weightSum, confSum / weightSum
}
