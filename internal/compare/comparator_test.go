package compare

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestCompareEmptyValues(t *testing.T) {
	c := NewComparator(DefaultConfig())

	t.Run("BothEmpty", func(t *testing.T) {
		result := c.Compare("full_name", "", "  ", domain.FieldTypeName)
		if result.Similarity != 1.0 || !result.Match {
			t.Errorf("expected two blank values to match, got similarity=%v match=%v", result.Similarity, result.Match)
		}
		if result.Confidence != 0.5 {
			t.Errorf("expected confidence 0.5 for blank comparison, got %v", result.Confidence)
		}
		if result.Method != "empty_check" {
			t.Errorf("unexpected method %q", result.Method)
		}
	})

	t.Run("OneEmpty", func(t *testing.T) {
		result := c.Compare("full_name", "Jane Doe", "", domain.FieldTypeName)
		if result.Similarity != 0.0 || result.Match {
			t.Errorf("expected blank-vs-value to fail, got similarity=%v match=%v", result.Similarity, result.Match)
		}
	})
}

func TestCompareNames(t *testing.T) {
	c := NewComparator(DefaultConfig())

	t.Run("ExactAfterNormalization", func(t *testing.T) {
		result := c.Compare("full_name", "Dr. John Smith", "john  smith", domain.FieldTypeName)
		if !result.Match || result.Similarity != 1.0 {
			t.Errorf("expected exact normalized match, got similarity=%v match=%v", result.Similarity, result.Match)
		}
		if result.Method != "exact_normalized" {
			t.Errorf("unexpected method %q", result.Method)
		}
	})

	t.Run("ReorderedTokens", func(t *testing.T) {
		result := c.Compare("full_name", "John Smith", "Smith John", domain.FieldTypeName)
		if result.Method != "name_blend" {
			t.Fatalf("unexpected method %q", result.Method)
		}
		if tokenScore := result.Details["token_score"].(float64); tokenScore != 1.0 {
			t.Errorf("expected full token overlap for reordered name, got %v", tokenScore)
		}
		if result.Similarity < 0.5 {
			t.Errorf("reordered name scored too low: %v", result.Similarity)
		}
	})

	t.Run("DifferentNames", func(t *testing.T) {
		result := c.Compare("full_name", "Jane Doe", "Peter Wong", domain.FieldTypeName)
		if result.Match {
			t.Error("expected different names not to match")
		}
		if result.Similarity > 0.5 {
			t.Errorf("different names scored too high: %v", result.Similarity)
		}
	})
}

func TestCompareIDs(t *testing.T) {
	c := NewComparator(DefaultConfig())

	t.Run("ExactAfterNormalization", func(t *testing.T) {
		result := c.Compare("id_number", "AB-123 456", "ab123456", domain.FieldTypeID)
		if !result.Match || result.Similarity != 1.0 {
			t.Errorf("expected exact ID match, got similarity=%v match=%v", result.Similarity, result.Match)
		}
	})

	t.Run("OCRConfusableCharacter", func(t *testing.T) {
		// 7 of 8 positions identical, the last is the B/8 confusable pair.
		result := c.Compare("id_number", "12345678", "1234567B", domain.FieldTypeID)
		if !almostEqual(result.Similarity, 0.975) {
			t.Errorf("expected OCR-tolerant score 0.975, got %v", result.Similarity)
		}
		if !result.Match {
			t.Error("expected confusable-only difference to count as a match")
		}
		if result.Confidence != 0.9 {
			t.Errorf("expected high confidence for near-exact ID, got %v", result.Confidence)
		}
	})

	t.Run("NonConfusableDifference", func(t *testing.T) {
		result := c.Compare("id_number", "12345678", "12345679", domain.FieldTypeID)
		if result.Match {
			t.Errorf("expected 8 vs 9 not to match, got similarity=%v", result.Similarity)
		}
	})

	t.Run("DifferentLengths", func(t *testing.T) {
		result := c.Compare("id_number", "12345678", "1234567", domain.FieldTypeID)
		if result.Details["ocr_tolerance_score"].(float64) != 0.0 {
			t.Error("OCR tolerance must not apply across lengths")
		}
		if result.Similarity <= 0.0 {
			t.Error("sequence similarity should still grant partial credit")
		}
	})
}

func TestCompareDates(t *testing.T) {
	c := NewComparator(DefaultConfig())

	t.Run("SameDayAcrossFormats", func(t *testing.T) {
		result := c.Compare("date_of_birth", "01/02/1990", "1990-02-01", domain.FieldTypeDate)
		if !result.Match || result.Similarity != 1.0 {
			t.Errorf("expected same calendar day to match, got similarity=%v match=%v", result.Similarity, result.Match)
		}
		if result.Method != "date_parse" {
			t.Errorf("unexpected method %q", result.Method)
		}
	})

	t.Run("OffByOneDay", func(t *testing.T) {
		result := c.Compare("date_of_birth", "1990-02-01", "1990-02-02", domain.FieldTypeDate)
		if result.Match {
			t.Error("adjacent days must not match")
		}
		if result.Similarity != 0.95 {
			t.Errorf("expected graded score 0.95, got %v", result.Similarity)
		}
	})

	t.Run("WithinAMonth", func(t *testing.T) {
		result := c.Compare("date_of_birth", "1990-02-01", "1990-02-20", domain.FieldTypeDate)
		if result.Similarity != 0.7 {
			t.Errorf("expected graded score 0.7, got %v", result.Similarity)
		}
	})

	t.Run("YearsApart", func(t *testing.T) {
		result := c.Compare("date_of_birth", "1990-02-01", "1994-02-01", domain.FieldTypeDate)
		if result.Similarity != 0.0 {
			t.Errorf("expected 0.0 for dates years apart, got %v", result.Similarity)
		}
	})

	t.Run("UnparseableFallsBackToText", func(t *testing.T) {
		result := c.Compare("date_of_birth", "sometime in 1990", "1990-02-01", domain.FieldTypeDate)
		if result.Method != "date_text_fallback" {
			t.Errorf("unexpected method %q", result.Method)
		}
		if result.Confidence != 0.5 {
			t.Errorf("expected reduced confidence 0.5, got %v", result.Confidence)
		}
	})
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1990-02-01", "1990-02-01", true},
		{"01/02/1990", "1990-02-01", true}, // day-first
		{"1/2/1990", "1990-02-01", true},
		{"2 Jan 2006", "2006-01-02", true},
		{"January 2, 2006", "2006-01-02", true},
		{"19900201", "1990-02-01", true},
		{"not a date", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.Format("2006-01-02") != tt.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.want)
		}
	}
}

func TestComparePhones(t *testing.T) {
	c := NewComparator(DefaultConfig())

	t.Run("CountryCodeVsTrunkZero", func(t *testing.T) {
		result := c.Compare("phone", "+254 712 345678", "0712345678", domain.FieldTypePhone)
		if !result.Match || result.Similarity != 1.0 {
			t.Errorf("expected normalized phones to match, got similarity=%v match=%v", result.Similarity, result.Match)
		}
	})

	t.Run("SuffixCredit", func(t *testing.T) {
		result := c.Compare("phone", "712345678", "345678", domain.FieldTypePhone)
		if result.Match {
			t.Error("partial number must not match")
		}
		if !almostEqual(result.Similarity, 6.0/9.0) {
			t.Errorf("expected length-ratio credit 6/9, got %v", result.Similarity)
		}
	})

	t.Run("DifferentNumbers", func(t *testing.T) {
		result := c.Compare("phone", "0712345678", "0787654321", domain.FieldTypePhone)
		if result.Match {
			t.Errorf("expected different numbers not to match, got %v", result.Similarity)
		}
	})
}

func TestCompareEmails(t *testing.T) {
	c := NewComparator(DefaultConfig())

	t.Run("CaseInsensitiveExact", func(t *testing.T) {
		result := c.Compare("email", "Jane@Example.com", "jane@example.com", domain.FieldTypeEmail)
		if !result.Match || result.Similarity != 1.0 {
			t.Errorf("expected case-insensitive match, got similarity=%v match=%v", result.Similarity, result.Match)
		}
	})

	t.Run("NearMissNeverMatches", func(t *testing.T) {
		result := c.Compare("email", "jane@example.com", "janed@example.com", domain.FieldTypeEmail)
		if result.Match {
			t.Error("near-miss emails must never match")
		}
		if result.Similarity <= 0.5 {
			t.Errorf("expected partial credit for similar username, got %v", result.Similarity)
		}
	})

	t.Run("DifferentDomain", func(t *testing.T) {
		same := c.Compare("email", "jane@example.com", "jane2@example.com", domain.FieldTypeEmail)
		diff := c.Compare("email", "jane@example.com", "jane2@other.org", domain.FieldTypeEmail)
		if diff.Similarity >= same.Similarity {
			t.Errorf("domain mismatch should score lower: same=%v diff=%v", same.Similarity, diff.Similarity)
		}
	})
}

func TestCompareAddresses(t *testing.T) {
	c := NewComparator(DefaultConfig())

	t.Run("AbbreviationExpansion", func(t *testing.T) {
		result := c.Compare("address", "12 Main St, Apt 4", "12 Main Street Apartment 4", domain.FieldTypeAddress)
		if !result.Match {
			t.Errorf("expected abbreviated address to match, got similarity=%v", result.Similarity)
		}
	})

	t.Run("DifferentAddresses", func(t *testing.T) {
		result := c.Compare("address", "12 Main Street", "99 Elm Avenue", domain.FieldTypeAddress)
		if result.Match {
			t.Errorf("expected different addresses not to match, got %v", result.Similarity)
		}
	})
}

func TestCompareText(t *testing.T) {
	c := NewComparator(DefaultConfig())

	result := c.Compare("occupation", "Engineer", "engineer", domain.FieldTypeText)
	if !result.Match || result.Similarity != 1.0 {
		t.Errorf("expected case-insensitive text match, got similarity=%v match=%v", result.Similarity, result.Match)
	}
	if result.Method != "fuzzy_text" {
		t.Errorf("unexpected method %q", result.Method)
	}
}
