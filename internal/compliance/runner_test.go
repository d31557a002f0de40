package compliance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// fakeWatchlist returns a canned screening result.
type fakeWatchlist struct {
	result domain.ScreeningResult
	err    error
}

func (f *fakeWatchlist) Screen(ctx context.Context, declared map[string]string) (domain.ScreeningResult, error) {
	return f.result, f.err
}

func newTestRunner(t *testing.T, watchlist domain.WatchlistClient) *Runner {
	t.Helper()
	runner, err := NewRunner(domain.DefaultVerificationConfig(), watchlist, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	// Pin the clock so age checks do not depend on the test date.
	runner.now = func() time.Time {
		return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	}
	return runner
}

func TestCheckAge(t *testing.T) {
	runner := newTestRunner(t, nil)

	t.Run("MeetsMinimum", func(t *testing.T) {
		entry := runner.checkAge(map[string]string{"date_of_birth": "1990-05-10"})
		if !entry.Passed || entry.Score != 100.0 {
			t.Errorf("expected adult applicant to pass, got passed=%v score=%v", entry.Passed, entry.Score)
		}
		if entry.Details["age"] != 35 {
			t.Errorf("expected age 35, got %v", entry.Details["age"])
		}
	})

	t.Run("BelowMinimum", func(t *testing.T) {
		entry := runner.checkAge(map[string]string{"date_of_birth": "2010-06-01"})
		if entry.Passed {
			t.Error("expected minor applicant to fail")
		}
		if entry.Confidence != 1.0 {
			t.Errorf("parseable date of birth should keep full confidence, got %v", entry.Confidence)
		}
	})

	t.Run("BirthdayNotYetReached", func(t *testing.T) {
		// Turns 18 in June 2026; the pinned clock is January 2026.
		entry := runner.checkAge(map[string]string{"date_of_birth": "2008-06-01"})
		if entry.Passed {
			t.Error("expected applicant a few months short of 18 to fail")
		}
	})

	t.Run("MissingDateOfBirth", func(t *testing.T) {
		entry := runner.checkAge(map[string]string{})
		if entry.Passed || entry.Confidence != 0.0 {
			t.Errorf("expected missing DOB to fail with zero confidence, got passed=%v confidence=%v", entry.Passed, entry.Confidence)
		}
	})

	t.Run("UnparseableDateOfBirth", func(t *testing.T) {
		entry := runner.checkAge(map[string]string{"date_of_birth": "the nineties"})
		if entry.Passed {
			t.Error("expected unparseable DOB to fail")
		}
		if entry.Confidence != 0.3 {
			t.Errorf("expected reduced confidence 0.3, got %v", entry.Confidence)
		}
	})
}

func TestCheckRequiredFields(t *testing.T) {
	runner := newTestRunner(t, nil)

	t.Run("AllPresent", func(t *testing.T) {
		entry := runner.checkRequiredFields(map[string]string{
			"full_name":     "Jane Doe",
			"id_number":     "12345678",
			"date_of_birth": "1990-05-10",
		})
		if !entry.Passed || entry.Score != 100.0 {
			t.Errorf("expected pass with full score, got passed=%v score=%v", entry.Passed, entry.Score)
		}
	})

	t.Run("OneMissing", func(t *testing.T) {
		entry := runner.checkRequiredFields(map[string]string{
			"full_name":     "Jane Doe",
			"date_of_birth": "1990-05-10",
		})
		if entry.Passed {
			t.Error("expected missing field to fail the check")
		}
		want := 100.0 - 100.0/3.0
		if entry.Score < want-0.01 || entry.Score > want+0.01 {
			t.Errorf("expected score %.2f, got %v", want, entry.Score)
		}
	})

	t.Run("BlankCountsAsMissing", func(t *testing.T) {
		entry := runner.checkRequiredFields(map[string]string{
			"full_name":     "Jane Doe",
			"id_number":     "   ",
			"date_of_birth": "1990-05-10",
		})
		if entry.Passed {
			t.Error("expected whitespace-only field to count as missing")
		}
	})
}

func TestCheckRequiredDocuments(t *testing.T) {
	runner := newTestRunner(t, nil)

	t.Run("AllSubmitted", func(t *testing.T) {
		entry := runner.checkRequiredDocuments("savings", []domain.DocumentType{domain.DocNationalID})
		if !entry.Passed || entry.Score != 100.0 {
			t.Errorf("expected pass, got passed=%v score=%v", entry.Passed, entry.Score)
		}
	})

	t.Run("OneMissing", func(t *testing.T) {
		entry := runner.checkRequiredDocuments("current", []domain.DocumentType{domain.DocNationalID})
		if entry.Passed {
			t.Error("expected missing application form to fail")
		}
		if entry.Score != 60.0 {
			t.Errorf("expected 40-point penalty, got score %v", entry.Score)
		}
	})

	t.Run("ScoreFloorsAtZero", func(t *testing.T) {
		entry := runner.checkRequiredDocuments("business", nil)
		if entry.Score != 0.0 {
			t.Errorf("expected score floor 0, got %v", entry.Score)
		}
	})

	t.Run("NoRequirementsConfigured", func(t *testing.T) {
		entry := runner.checkRequiredDocuments("unknown_type", nil)
		if !entry.Passed || entry.Score != 100.0 {
			t.Errorf("expected pass when no requirements configured, got passed=%v score=%v", entry.Passed, entry.Score)
		}
	})
}

func TestCheckWatchlist(t *testing.T) {
	declared := map[string]string{"full_name": "Jane Doe"}

	t.Run("NoProviderFailsClosed", func(t *testing.T) {
		runner := newTestRunner(t, nil)
		entry := runner.checkWatchlist(context.Background(), declared)
		if entry.Passed || entry.Confidence != 0.0 {
			t.Errorf("expected fail-closed without provider, got passed=%v confidence=%v", entry.Passed, entry.Confidence)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		runner := newTestRunner(t, &fakeWatchlist{result: domain.ScreeningResult{Status: domain.ScreeningClear, Confidence: 0.95}})
		entry := runner.checkWatchlist(context.Background(), declared)
		if !entry.Passed || entry.Score != 100.0 {
			t.Errorf("expected clear screening to pass, got passed=%v score=%v", entry.Passed, entry.Score)
		}
	})

	t.Run("Match", func(t *testing.T) {
		runner := newTestRunner(t, &fakeWatchlist{result: domain.ScreeningResult{Status: domain.ScreeningMatch, Confidence: 0.9}})
		entry := runner.checkWatchlist(context.Background(), declared)
		if entry.Passed {
			t.Error("expected watchlist match to fail")
		}
	})

	t.Run("UnknownIsNotClearance", func(t *testing.T) {
		runner := newTestRunner(t, &fakeWatchlist{result: domain.ScreeningResult{Status: domain.ScreeningUnknown, Confidence: 0.9}})
		entry := runner.checkWatchlist(context.Background(), declared)
		if entry.Passed {
			t.Error("unknown screening status must never pass")
		}
		if entry.Confidence > 0.3 {
			t.Errorf("expected confidence capped at 0.3, got %v", entry.Confidence)
		}
	})

	t.Run("ProviderErrorFailsClosed", func(t *testing.T) {
		runner := newTestRunner(t, &fakeWatchlist{err: fmt.Errorf("connection refused")})
		entry := runner.checkWatchlist(context.Background(), declared)
		if entry.Passed || entry.Confidence != 0.0 {
			t.Errorf("expected provider error to fail closed, got passed=%v confidence=%v", entry.Passed, entry.Confidence)
		}
	})
}

func TestRunAll(t *testing.T) {
	runner := newTestRunner(t, &fakeWatchlist{result: domain.ScreeningResult{Status: domain.ScreeningClear, Confidence: 0.95}})

	in := Input{
		AccountType: "savings",
		Declared: map[string]string{
			"full_name":     "Jane Doe",
			"id_number":     "12345678",
			"date_of_birth": "1990-05-10",
		},
		DocTypes: []domain.DocumentType{domain.DocNationalID},
		Rules: []domain.RuleDefinition{
			{
				Code: "enabled_rule", Type: domain.RuleFieldValidation,
				Category: domain.CategoryKYC, Enabled: true,
				FieldValidation: &domain.FieldValidationCondition{RequiredFields: []string{"full_name"}},
			},
			{
				Code: "disabled_rule", Type: domain.RuleFieldValidation,
				Category: domain.CategoryKYC, Enabled: false,
				FieldValidation: &domain.FieldValidationCondition{RequiredFields: []string{"never_checked"}},
			},
		},
	}

	entries := runner.RunAll(context.Background(), in)

	// 4 built-in checks plus the single enabled rule.
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if !e.Passed {
			t.Errorf("check %s unexpectedly failed: %s", e.Name, e.Message)
		}
		if e.Name == "disabled_rule" {
			t.Error("disabled rule must not run")
		}
	}
}
