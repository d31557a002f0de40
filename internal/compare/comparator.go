package compare

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/normalize"
)

// Config holds the comparison thresholds and blend weights. These are
// empirically tuned defaults; expose them for tuning rather than
// hard-coding call sites.
type Config struct {
	NameMatchThreshold    float64
	IDMatchThreshold      float64
	PhoneMatchThreshold   float64
	AddressMatchThreshold float64
	TextMatchThreshold    float64

	// Name score blend: token overlap + sequence similarity + phonetic.
	NameTokenWeight    float64
	NameSequenceWeight float64
	NamePhoneticWeight float64

	// Address score blend: token overlap + sequence similarity.
	AddressTokenWeight    float64
	AddressSequenceWeight float64

	// Email score blend: username similarity + domain equality.
	EmailUserWeight   float64
	EmailDomainWeight float64

	// OCRPartialCredit is granted per position where characters differ
	// but are visually confusable.
	OCRPartialCredit float64

	// PhoneCountryCodes stripped during phone normalization.
	PhoneCountryCodes []string
}

// DefaultConfig returns the default comparison tuning.
func DefaultConfig() Config {
	return Config{
		NameMatchThreshold:    0.85,
		IDMatchThreshold:      0.95,
		PhoneMatchThreshold:   0.95,
		AddressMatchThreshold: 0.75,
		TextMatchThreshold:    0.85,

		NameTokenWeight:    0.4,
		NameSequenceWeight: 0.4,
		NamePhoneticWeight: 0.2,

		AddressTokenWeight:    0.6,
		AddressSequenceWeight: 0.4,

		EmailUserWeight:   0.7,
		EmailDomainWeight: 0.3,

		OCRPartialCredit: 0.8,

		PhoneCountryCodes: []string{"254", "44", "1"},
	}
}

// ocrConfusables are character pairs commonly swapped by text extraction.
var ocrConfusables = map[byte]byte{
	'O': '0', '0': 'O',
	'I': '1', '1': 'I',
	'L': '1',
	'S': '5', '5': 'S',
	'B': '8', '8': 'B',
	'Z': '2', '2': 'Z',
	'G': '6', '6': 'G',
}

// Comparator produces a ComparisonResult for one field pair, dispatching
// on the field type.
type Comparator struct {
	cfg Config
}

// NewComparator creates a comparator with the given tuning.
func NewComparator(cfg Config) *Comparator {
	return &Comparator{cfg: cfg}
}

// Compare evaluates one declared/extracted value pair. It never panics:
// an unexpected failure in a type-specific algorithm degrades to a
// low-confidence result so one bad field cannot sink a batch.
func (c *Comparator) Compare(field, entered, extracted string, fieldType domain.FieldType) (result domain.ComparisonResult) {
	entered = strings.TrimSpace(entered)
	extracted = strings.TrimSpace(extracted)

	defer func() {
		if r := recover(); r != nil {
			result = domain.ComparisonResult{
				Field:      field,
				Entered:    entered,
				Extracted:  extracted,
				Similarity: 0.0,
				Match:      false,
				Confidence: 0.1,
				Method:     "recovered_error",
				Details:    map[string]any{"error": fmt.Sprint(r)},
			}
		}
	}()

	if entered == "" || extracted == "" {
		similarity := 0.0
		if entered == "" && extracted == "" {
			similarity = 1.0
		}
		return domain.ComparisonResult{
			Field:      field,
			Entered:    entered,
			Extracted:  extracted,
			Similarity: similarity,
			Match:      similarity == 1.0,
			Confidence: 0.5,
			Method:     "empty_check",
		}
	}

	switch fieldType {
	case domain.FieldTypeName:
		return c.compareNames(field, entered, extracted)
	case domain.FieldTypeID:
		return c.compareIDs(field, entered, extracted)
	case domain.FieldTypeDate:
		return c.compareDates(field, entered, extracted)
	case domain.FieldTypePhone:
		return c.comparePhones(field, entered, extracted)
	case domain.FieldTypeEmail:
		return c.compareEmails(field, entered, extracted)
	case domain.FieldTypeAddress:
		return c.compareAddresses(field, entered, extracted)
	default:
		return c.compareText(field, entered, extracted)
	}
}

// compareNames blends token overlap, sequence similarity, and phonetic
// key equality. Handles reordered name parts and same-sounding variants.
func (c *Comparator) compareNames(field, entered, extracted string) domain.ComparisonResult {
	enteredNorm := normalize.Name(entered)
	extractedNorm := normalize.Name(extracted)

	if enteredNorm == extractedNorm {
		return domain.ComparisonResult{
			Field: field, Entered: entered, Extracted: extracted,
			Similarity: 1.0, Match: true, Confidence: 1.0,
			Method: "exact_normalized",
		}
	}

	tokenScore := tokenOverlap(strings.Fields(enteredNorm), strings.Fields(extractedNorm))
	seqScore := Ratio(enteredNorm, extractedNorm)

	phoneticScore := 0.0
	if phoneticKey(enteredNorm) == phoneticKey(extractedNorm) {
		phoneticScore = 1.0
	}

	score := tokenScore*c.cfg.NameTokenWeight +
		seqScore*c.cfg.NameSequenceWeight +
		phoneticScore*c.cfg.NamePhoneticWeight

	return domain.ComparisonResult{
		Field: field, Entered: entered, Extracted: extracted,
		Similarity: score,
		Match:      score >= c.cfg.NameMatchThreshold,
		Confidence: min(score+0.1, 1.0),
		Method:     "name_blend",
		Details: map[string]any{
			"normalized_entered":   enteredNorm,
			"normalized_extracted": extractedNorm,
			"token_score":          tokenScore,
			"sequence_score":       seqScore,
			"phonetic_score":       phoneticScore,
		},
	}
}

// compareIDs matches identifiers with OCR-error tolerance: positionwise
// partial credit for visually confusable characters, falling back to
// sequence similarity when lengths differ.
func (c *Comparator) compareIDs(field, entered, extracted string) domain.ComparisonResult {
	enteredNorm := normalize.Identifier(entered)
	extractedNorm := normalize.Identifier(extracted)

	if enteredNorm == extractedNorm {
		return domain.ComparisonResult{
			Field: field, Entered: entered, Extracted: extracted,
			Similarity: 1.0, Match: true, Confidence: 1.0,
			Method: "exact_id",
		}
	}

	ocrScore := c.ocrToleranceScore(enteredNorm, extractedNorm)
	seqScore := Ratio(enteredNorm, extractedNorm)
	score := max(ocrScore, seqScore)

	confidence := 0.6
	if score > 0.9 {
		confidence = 0.9
	}

	return domain.ComparisonResult{
		Field: field, Entered: entered, Extracted: extracted,
		Similarity: score,
		Match:      score >= c.cfg.IDMatchThreshold,
		Confidence: confidence,
		Method:     "id_ocr_tolerance",
		Details: map[string]any{
			"normalized_entered":   enteredNorm,
			"normalized_extracted": extractedNorm,
			"ocr_tolerance_score":  ocrScore,
			"sequence_score":       seqScore,
		},
	}
}

// ocrToleranceScore grants partial credit per position where characters
// differ but belong to the confusable set. Only defined for equal-length
// strings; returns 0 otherwise.
func (c *Comparator) ocrToleranceScore(a, b string) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	matched := 0.0
	for i := 0; i < len(a); i++ {
		switch {
		case a[i] == b[i]:
			matched += 1.0
		case ocrConfusables[a[i]] == b[i] || ocrConfusables[b[i]] == a[i]:
			matched += c.cfg.OCRPartialCredit
		}
	}
	return matched / float64(len(a))
}

// compareDates parses both sides format-agnostically; a match requires
// the same calendar day, near misses are graded by day difference.
// Unparseable input degrades to generic text comparison.
func (c *Comparator) compareDates(field, entered, extracted string) domain.ComparisonResult {
	enteredDate, okEntered := ParseDate(entered)
	extractedDate, okExtracted := ParseDate(extracted)

	if !okEntered || !okExtracted {
		result := c.compareText(field, entered, extracted)
		result.Method = "date_text_fallback"
		result.Confidence = 0.5
		result.Details = map[string]any{
			"entered_parsed":   okEntered,
			"extracted_parsed": okExtracted,
		}
		return result
	}

	equal := enteredDate.Equal(extractedDate)
	score := 1.0
	if !equal {
		switch diff := dayDiff(enteredDate, extractedDate); {
		case diff <= 1:
			score = 0.95 // off by one day, likely a format issue
		case diff <= 30:
			score = 0.7
		case diff <= 365:
			score = 0.3
		default:
			score = 0.0
		}
	}

	return domain.ComparisonResult{
		Field: field, Entered: entered, Extracted: extracted,
		Similarity: score,
		Match:      equal,
		Confidence: 1.0,
		Method:     "date_parse",
		Details: map[string]any{
			"entered_parsed":   enteredDate.Format("2006-01-02"),
			"extracted_parsed": extractedDate.Format("2006-01-02"),
		},
	}
}

// comparePhones matches normalized subscriber numbers, giving length-ratio
// credit when one number is a trailing suffix of the other.
func (c *Comparator) comparePhones(field, entered, extracted string) domain.ComparisonResult {
	enteredNorm := normalize.Phone(entered, c.cfg.PhoneCountryCodes)
	extractedNorm := normalize.Phone(extracted, c.cfg.PhoneCountryCodes)

	if enteredNorm == extractedNorm {
		return domain.ComparisonResult{
			Field: field, Entered: entered, Extracted: extracted,
			Similarity: 1.0, Match: true, Confidence: 1.0,
			Method: "phone_normalized",
		}
	}

	var score float64
	if strings.HasSuffix(enteredNorm, extractedNorm) || strings.HasSuffix(extractedNorm, enteredNorm) {
		shorter, longer := enteredNorm, extractedNorm
		if len(shorter) > len(longer) {
			shorter, longer = longer, shorter
		}
		score = float64(len(shorter)) / float64(len(longer))
	} else {
		score = Ratio(enteredNorm, extractedNorm)
	}

	return domain.ComparisonResult{
		Field: field, Entered: entered, Extracted: extracted,
		Similarity: score,
		Match:      score >= c.cfg.PhoneMatchThreshold,
		Confidence: 0.85,
		Method:     "phone_normalized",
		Details: map[string]any{
			"normalized_entered":   enteredNorm,
			"normalized_extracted": extractedNorm,
		},
	}
}

// compareEmails requires exact case-insensitive equality for a match and
// scores near misses by username similarity plus domain equality.
func (c *Comparator) compareEmails(field, entered, extracted string) domain.ComparisonResult {
	enteredNorm := strings.ToLower(strings.TrimSpace(entered))
	extractedNorm := strings.ToLower(strings.TrimSpace(extracted))

	if enteredNorm == extractedNorm {
		return domain.ComparisonResult{
			Field: field, Entered: entered, Extracted: extracted,
			Similarity: 1.0, Match: true, Confidence: 0.95,
			Method: "email_normalized",
		}
	}

	enteredParts := strings.Split(enteredNorm, "@")
	extractedParts := strings.Split(extractedNorm, "@")

	var score float64
	if len(enteredParts) == 2 && len(extractedParts) == 2 {
		userScore := Ratio(enteredParts[0], extractedParts[0])
		domainScore := 0.0
		if enteredParts[1] == extractedParts[1] {
			domainScore = 1.0
		}
		score = userScore*c.cfg.EmailUserWeight + domainScore*c.cfg.EmailDomainWeight
	} else {
		score = Ratio(enteredNorm, extractedNorm)
	}

	return domain.ComparisonResult{
		Field: field, Entered: entered, Extracted: extracted,
		Similarity: score,
		Match:      false, // email matches only on exact equality
		Confidence: 0.95,
		Method:     "email_normalized",
	}
}

// compareAddresses blends token overlap and sequence similarity over
// normalized addresses.
func (c *Comparator) compareAddresses(field, entered, extracted string) domain.ComparisonResult {
	enteredNorm := normalize.Address(entered)
	extractedNorm := normalize.Address(extracted)

	enteredTokens := strings.Fields(enteredNorm)
	extractedTokens := strings.Fields(extractedNorm)
	if len(enteredTokens) == 0 || len(extractedTokens) == 0 {
		return c.compareText(field, entered, extracted)
	}

	tokenScore := tokenOverlap(enteredTokens, extractedTokens)
	seqScore := Ratio(enteredNorm, extractedNorm)
	score := tokenScore*c.cfg.AddressTokenWeight + seqScore*c.cfg.AddressSequenceWeight

	return domain.ComparisonResult{
		Field: field, Entered: entered, Extracted: extracted,
		Similarity: score,
		Match:      score >= c.cfg.AddressMatchThreshold,
		Confidence: 0.75,
		Method:     "address_tokens",
		Details: map[string]any{
			"normalized_entered":   enteredNorm,
			"normalized_extracted": extractedNorm,
			"token_score":          tokenScore,
			"sequence_score":       seqScore,
		},
	}
}

// compareText is the generic fallback: sequence similarity over
// lower-cased, trimmed strings.
func (c *Comparator) compareText(field, entered, extracted string) domain.ComparisonResult {
	enteredNorm := strings.ToLower(strings.TrimSpace(entered))
	extractedNorm := strings.ToLower(strings.TrimSpace(extracted))

	score := Ratio(enteredNorm, extractedNorm)

	return domain.ComparisonResult{
		Field: field, Entered: entered, Extracted: extracted,
		Similarity: score,
		Match:      score >= c.cfg.TextMatchThreshold,
		Confidence: 0.7,
		Method:     "fuzzy_text",
	}
}
