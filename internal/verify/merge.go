package verify

import (
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// MergeExtractions combines structured fields from multiple document
// extractions into one view. Documents are considered in merge-priority
// order; for a field seen in several documents the value from the
// extraction with strictly higher confidence wins, so on equal confidence
// the higher-priority document keeps the field. Failed extractions and
// blank values are skipped.
func MergeExtractions(extractions []domain.Extraction) map[string]string {
	ordered := make([]domain.Extraction, len(extractions))
	copy(ordered, extractions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DocumentType.MergePriority() < ordered[j].DocumentType.MergePriority()
	})

	merged := make(map[string]string)
	fieldConfidence := make(map[string]float64)

	for i := range ordered {
		ex := ordered[i]
		if ex.Failed() {
			continue
		}
		for field, value := range ex.Fields {
			if value == "" {
				continue
			}
			if current, seen := fieldConfidence[field]; !seen || ex.Confidence > current {
				merged[field] = value
				fieldConfidence[field] = ex.Confidence
			}
		}
	}
	return merged
}
