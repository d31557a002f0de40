package domain

import "testing"

func TestSeverityForSimilarity(t *testing.T) {
	tests := []struct {
		similarity float64
		want       Severity
	}{
		{0.0, SeverityCritical},
		{0.3, SeverityCritical},
		{0.49, SeverityCritical},
		{0.5, SeverityMajor},
		{0.6, SeverityMajor},
		{0.69, SeverityMajor},
		{0.7, SeverityMinor},
		{0.8, SeverityMinor},
		{1.0, SeverityMinor},
	}

	for _, tt := range tests {
		if got := SeverityForSimilarity(tt.similarity); got != tt.want {
			t.Errorf("SeverityForSimilarity(%v) = %v, want %v", tt.similarity, got, tt.want)
		}
	}
}
