// Package compliance runs the regulatory checks of a verification:
// built-in KYC/AML/document checks plus configurable rule definitions.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/compare"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Runner executes the compliance check battery for a verification run.
type Runner struct {
	cfg       domain.VerificationConfig
	watchlist domain.WatchlistClient
	cel       *celEvaluator
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewRunner creates a compliance runner. The watchlist client may be nil,
// in which case screening reports unknown and fails closed.
func NewRunner(cfg domain.VerificationConfig, watchlist domain.WatchlistClient, logger *slog.Logger) (*Runner, error) {
	cel, err := newCELEvaluator()
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:       cfg,
		watchlist: watchlist,
		cel:       cel,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Input carries everything the checks need about one verification run.
type Input struct {
	AccountType string
	Declared    map[string]string
	DocTypes    []domain.DocumentType
	Rules       []domain.RuleDefinition
}

// RunAll executes the built-in checks followed by the enabled rule
// definitions. Every check produces an entry; a check that errors
// internally fails closed rather than disappearing from the record.
func (r *Runner) RunAll(ctx context.Context, in Input) []domain.ComplianceCheckEntry {
	entries := []domain.ComplianceCheckEntry{
		r.checkAge(in.Declared),
		r.checkRequiredFields(in.Declared),
		r.checkRequiredDocuments(in.AccountType, in.DocTypes),
		r.checkWatchlist(ctx, in.Declared),
	}

	for _, rule := range in.Rules {
		if !rule.Enabled {
			continue
		}
		entries = append(entries, r.runRule(ctx, rule, in))
	}
	return entries
}

// checkAge verifies the applicant meets the minimum age. A date of birth
// that cannot be parsed fails with low confidence so it surfaces for
// review rather than passing silently.
func (r *Runner) checkAge(declared map[string]string) domain.ComplianceCheckEntry {
	entry := domain.ComplianceCheckEntry{
		Category: domain.CategoryKYC,
		Name:     "age_verification",
	}

	raw := strings.TrimSpace(declared["date_of_birth"])
	if raw == "" {
		entry.Message = "date of birth not provided"
		entry.Confidence = 0.0
		return entry
	}

	dob, ok := compare.ParseDate(raw)
	if !ok {
		entry.Message = fmt.Sprintf("could not parse date of birth %q", raw)
		entry.Confidence = 0.3
		return entry
	}

	age := yearsSince(dob, r.now())
	entry.Details = map[string]any{"age": age, "minimum_age": r.cfg.MinimumAge}
	entry.Confidence = 1.0

	if age < r.cfg.MinimumAge {
		entry.Message = fmt.Sprintf("applicant age %d below minimum %d", age, r.cfg.MinimumAge)
		return entry
	}

	entry.Passed = true
	entry.Score = 100.0
	entry.Message = fmt.Sprintf("applicant age %d meets minimum %d", age, r.cfg.MinimumAge)
	return entry
}

// checkRequiredFields verifies the mandatory declared fields are present
// and non-blank. Each missing field costs an equal share of the score.
func (r *Runner) checkRequiredFields(declared map[string]string) domain.ComplianceCheckEntry {
	entry := domain.ComplianceCheckEntry{
		Category:   domain.CategoryKYC,
		Name:       "required_fields",
		Confidence: 1.0,
	}

	required := r.cfg.RequiredFields
	if len(required) == 0 {
		entry.Passed = true
		entry.Score = 100.0
		entry.Message = "no required fields configured"
		return entry
	}

	var missing []string
	for _, field := range required {
		if strings.TrimSpace(declared[field]) == "" {
			missing = append(missing, field)
		}
	}

	entry.Score = 100.0 - float64(len(missing))*(100.0/float64(len(required)))
	if entry.Score < 0 {
		entry.Score = 0
	}

	if len(missing) == 0 {
		entry.Passed = true
		entry.Message = "all required fields present"
	} else {
		entry.Message = fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
		entry.Details = map[string]any{"missing_fields": missing}
	}
	return entry
}

// checkRequiredDocuments verifies the document types mandated for the
// account type were submitted. Each missing document costs 40 points.
func (r *Runner) checkRequiredDocuments(accountType string, docTypes []domain.DocumentType) domain.ComplianceCheckEntry {
	entry := domain.ComplianceCheckEntry{
		Category:   domain.CategoryDocument,
		Name:       "required_documents",
		Confidence: 1.0,
	}

	required := r.cfg.RequiredDocuments[accountType]
	if len(required) == 0 {
		entry.Passed = true
		entry.Score = 100.0
		entry.Message = fmt.Sprintf("no document requirements for account type %q", accountType)
		return entry
	}

	present := make(map[domain.DocumentType]bool, len(docTypes))
	for _, t := range docTypes {
		present[t] = true
	}

	var missing []string
	for _, t := range required {
		if !present[t] {
			missing = append(missing, string(t))
		}
	}

	entry.Score = 100.0 - float64(len(missing))*40.0
	if entry.Score < 0 {
		entry.Score = 0
	}

	if len(missing) == 0 {
		entry.Passed = true
		entry.Message = "all required documents submitted"
	} else {
		entry.Message = fmt.Sprintf("missing required documents: %s", strings.Join(missing, ", "))
		entry.Details = map[string]any{"missing_documents": missing}
	}
	return entry
}

// checkWatchlist screens the applicant against sanctions/PEP lists.
// An unavailable or inconclusive provider is never treated as clearance:
// the check fails and the run lands in review.
func (r *Runner) checkWatchlist(ctx context.Context, declared map[string]string) domain.ComplianceCheckEntry {
	entry := domain.ComplianceCheckEntry{
		Category: domain.CategoryAML,
		Name:     "watchlist_screening",
	}

	if r.watchlist == nil {
		entry.Message = "screening provider not configured"
		entry.Confidence = 0.0
		entry.Details = map[string]any{"status": string(domain.ScreeningUnknown)}
		return entry
	}

	result, err := r.watchlist.Screen(ctx, declared)
	if err != nil {
		r.logger.Warn("watchlist screening unavailable", "error", err)
		entry.Message = fmt.Sprintf("screening unavailable: %v", err)
		entry.Confidence = 0.0
		entry.Details = map[string]any{"status": string(domain.ScreeningUnknown)}
		return entry
	}

	entry.Confidence = result.Confidence
	entry.Details = map[string]any{"status": string(result.Status)}
	if result.Detail != "" {
		entry.Details["detail"] = result.Detail
	}

	switch result.Status {
	case domain.ScreeningClear:
		entry.Passed = true
		entry.Score = 100.0
		entry.Message = "no watchlist or PEP matches"
	case domain.ScreeningMatch:
		entry.Message = "watchlist or PEP match found"
	default:
		entry.Message = "screening inconclusive"
		entry.Confidence = min(entry.Confidence, 0.3)
	}
	return entry
}

// yearsSince returns whole years elapsed from dob to now.
func yearsSince(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	anniversary := dob.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
