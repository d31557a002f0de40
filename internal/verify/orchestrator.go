// Package verify orchestrates the full verification pipeline: document
// extraction, field comparison, compliance checks, scoring, and decision.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/compare"
	"github.com/opensource-finance/kestrel/internal/compliance"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// extractionCacheTTL bounds how long a cached OCR result is reused when a
// request is reprocessed.
const extractionCacheTTL = 24 * time.Hour

// Orchestrator runs verification requests through the pipeline and owns
// their state transitions.
type Orchestrator struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	ocr        domain.OCRClient
	comparator *compare.Comparator
	checks     *compliance.Runner
	scorer     *scoring.Aggregator
	decider    *decision.Engine
	cfg        domain.VerificationConfig
	logger     *slog.Logger
}

// NewOrchestrator wires the pipeline. The OCR client may be nil, in which
// case every document extraction reports failure and quality scores drop
// accordingly.
func NewOrchestrator(
	repo domain.Repository,
	cache domain.Cache,
	bus domain.EventBus,
	ocr domain.OCRClient,
	checks *compliance.Runner,
	cfg domain.VerificationConfig,
	logger *slog.Logger,
) *Orchestrator {
	comparatorCfg := compare.DefaultConfig()
	comparatorCfg.PhoneCountryCodes = cfg.PhoneCountryCodes

	return &Orchestrator{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		ocr:        ocr,
		comparator: compare.NewComparator(comparatorCfg),
		checks:     checks,
		scorer:     scoring.NewAggregator(cfg.ComponentWeights),
		decider:    decision.NewEngine(cfg),
		cfg:        cfg,
		logger:     logger,
	}
}

// Submit creates a new pending verification request and announces it on
// the bus for async processing.
func (o *Orchestrator) Submit(ctx context.Context, customerID, accountType string, declared map[string]string) (*domain.VerificationRequest, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer ID is required")
	}
	if declared == nil {
		declared = map[string]string{}
	}

	req := &domain.VerificationRequest{
		ID:           uuid.New().String(),
		CustomerID:   customerID,
		AccountType:  accountType,
		DeclaredData: declared,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	if err := o.repo.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	o.publish(ctx, domain.TopicVerificationRequested, map[string]any{
		"requestId":  req.ID,
		"customerId": req.CustomerID,
	})

	o.logger.Info("verification request submitted",
		"request_id", req.ID,
		"customer_id", req.CustomerID,
		"account_type", req.AccountType,
	)
	return req, nil
}

// AttachDocument registers a submitted document against a pending request.
func (o *Orchestrator) AttachDocument(ctx context.Context, requestID string, docType domain.DocumentType, fileRef string) (*domain.Document, error) {
	req, err := o.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusPending {
		return nil, fmt.Errorf("cannot attach documents to request in status %s", req.Status)
	}

	doc := &domain.Document{
		ID:        uuid.New().String(),
		RequestID: requestID,
		Type:      docType,
		FileRef:   fileRef,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.repo.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	return doc, nil
}

// Process runs the pipeline for one request. The request must be pending;
// any failure after processing starts lands the request in the failed
// state rather than leaving it stuck in processing.
func (o *Orchestrator) Process(ctx context.Context, requestID string) (outcome *domain.Outcome, err error) {
	req, err := o.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := o.repo.TransitionStatus(ctx, requestID, domain.StatusProcessing); err != nil {
		return nil, err
	}
	started := time.Now().UTC()
	req.Status = domain.StatusProcessing
	req.StartedAt = &started

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verification pipeline panic: %v", r)
		}
		if err != nil {
			o.markFailed(requestID, err)
		}
	}()

	// Reprocessing a terminal request replaces its prior artifacts.
	if err := o.repo.DeleteRunArtifacts(ctx, requestID); err != nil {
		return nil, fmt.Errorf("failed to clear prior run artifacts: %w", err)
	}

	docs, err := o.repo.ListDocuments(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	extractions := o.extractAll(ctx, docs)
	extracted := MergeExtractions(extractions)

	comparisons := o.comparator.CompareAll(req.DeclaredData, extracted, nil)

	rules, err := o.repo.ListRuleDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule definitions: %w", err)
	}

	docTypes := make([]domain.DocumentType, len(docs))
	for i, d := range docs {
		docTypes[i] = d.Type
	}
	checkEntries := o.checks.RunAll(ctx, compliance.Input{
		AccountType: req.AccountType,
		Declared:    req.DeclaredData,
		DocTypes:    docTypes,
		Rules:       derefRules(rules),
	})

	score, breakdown := o.scorer.Score(scoring.Input{
		Comparisons: comparisons,
		Checks:      checkEntries,
		Extractions: extractions,
	})

	verdict, reason := o.decider.Decide(score, comparisons, checkEntries)

	completed := time.Now().UTC()
	req.OverallScore = score
	req.ScoreBreakdown = breakdown
	req.Approved = verdict.ApprovedFlag()
	req.DecisionReason = reason
	req.CompletedAt = &completed
	req.Status = statusFor(verdict)

	discrepancies := buildDiscrepancies(requestID, comparisons, completed)
	entries := buildAuditEntries(requestID, comparisons, checkEntries, completed)
	entries = append(entries, buildQualityEntries(requestID, extractions, completed)...)
	run := &domain.VerificationRun{
		Request:       req,
		Entries:       entries,
		Discrepancies: discrepancies,
	}
	if err := o.repo.CommitRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}

	outcome = &domain.Outcome{
		RequestID:      requestID,
		Decision:       verdict,
		Approved:       req.Approved,
		OverallScore:   score,
		ScoreBreakdown: breakdown,
		Comparisons:    comparisons,
		Checks:         checkEntries,
		Discrepancies:  discrepancies,
		DecisionReason: reason,
		RequiresReview: verdict.RequiresReview(),
	}

	topic := domain.TopicVerificationCompleted
	if verdict.RequiresReview() {
		topic = domain.TopicVerificationReview
	}
	o.publish(ctx, topic, outcome)

	o.logger.Info("verification completed",
		"request_id", requestID,
		"decision", string(verdict),
		"score", score,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return outcome, nil
}

// Reprocess returns a terminal request to pending and runs the pipeline
// again. Prior results are replaced, not appended.
func (o *Orchestrator) Reprocess(ctx context.Context, requestID string) (*domain.Outcome, error) {
	if err := o.repo.TransitionStatus(ctx, requestID, domain.StatusPending); err != nil {
		return nil, err
	}
	return o.Process(ctx, requestID)
}

// extractAll fans document extraction out across goroutines. One failed
// document never aborts the run; it yields a failed extraction that
// weighs on the quality score.
func (o *Orchestrator) extractAll(ctx context.Context, docs []*domain.Document) []domain.Extraction {
	extractions := make([]domain.Extraction, len(docs))
	var wg sync.WaitGroup

	for i, doc := range docs {
		wg.Add(1)
		go func(idx int, d *domain.Document) {
			defer wg.Done()
			extractions[idx] = o.extractOne(ctx, d)
		}(i, doc)
	}
	wg.Wait()
	return extractions
}

func (o *Orchestrator) extractOne(ctx context.Context, doc *domain.Document) domain.Extraction {
	if cached, err := o.cache.GetExtraction(ctx, doc.ID); err == nil && cached != nil {
		return *cached
	}

	failed := func(msg string) domain.Extraction {
		return domain.Extraction{
			DocumentID:   doc.ID,
			DocumentType: doc.Type,
			Err:          msg,
		}
	}

	if o.ocr == nil {
		return failed("extraction client not configured")
	}

	ex, err := o.ocr.Extract(ctx, *doc)
	if err != nil {
		o.logger.Warn("document extraction failed",
			"document_id", doc.ID,
			"document_type", string(doc.Type),
			"error", err,
		)
		return failed(err.Error())
	}
	if ex == nil {
		return failed("extraction returned no data")
	}

	ex.DocumentID = doc.ID
	ex.DocumentType = doc.Type
	if err := o.cache.SetExtraction(ctx, doc.ID, ex, extractionCacheTTL); err != nil {
		o.logger.Warn("failed to cache extraction", "document_id", doc.ID, "error", err)
	}
	return *ex
}

// markFailed records a pipeline failure, persisting the cause as the
// request's decision reason. Uses a fresh context so the failure is
// recorded even when the caller's context is gone.
func (o *Orchestrator) markFailed(requestID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.repo.FailRequest(ctx, requestID, cause.Error()); err != nil {
		o.logger.Error("failed to mark request failed",
			"request_id", requestID,
			"error", err,
		)
	}
	o.publish(ctx, domain.TopicVerificationFailed, map[string]any{
		"requestId": requestID,
		"error":     cause.Error(),
	})
	o.logger.Error("verification failed",
		"request_id", requestID,
		"error", cause,
	)
}

func (o *Orchestrator) publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := o.bus.Publish(ctx, topic, data); err != nil {
		o.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func statusFor(d domain.Decision) domain.Status {
	if d.RequiresReview() {
		return domain.StatusReviewRequired
	}
	return domain.StatusCompleted
}

func derefRules(rules []*domain.RuleDefinition) []domain.RuleDefinition {
	out := make([]domain.RuleDefinition, 0, len(rules))
	for _, r := range rules {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// buildAuditEntries flattens comparisons and checks into persistable rows.
func buildAuditEntries(requestID string, comparisons []domain.ComparisonResult, checks []domain.ComplianceCheckEntry, at time.Time) []domain.AuditEntry {
	entries := make([]domain.AuditEntry, 0, len(comparisons)+len(checks))

	for _, c := range comparisons {
		verdict := "mismatch"
		if c.Match {
			verdict = "match"
		}
		entries = append(entries, domain.AuditEntry{
			ID:         uuid.New().String(),
			RequestID:  requestID,
			Category:   domain.CategoryKYC,
			Name:       c.Field + "_match",
			Score:      c.Similarity * 100.0,
			Confidence: c.Confidence,
			Passed:     c.Match,
			Message:    fmt.Sprintf("%s: %s", verdict, c.Method),
			Evidence: map[string]any{
				"entered":   c.Entered,
				"extracted": c.Extracted,
				"method":    c.Method,
				"details":   c.Details,
			},
			CreatedAt: at,
		})
	}

	for _, check := range checks {
		entries = append(entries, domain.AuditEntry{
			ID:         uuid.New().String(),
			RequestID:  requestID,
			Category:   check.Category,
			Name:       check.Name,
			Score:      check.Score,
			Confidence: check.Confidence,
			Passed:     check.Passed,
			Message:    check.Message,
			Evidence:   check.Details,
			CreatedAt:  at,
		})
	}
	return entries
}

// buildQualityEntries records one quality row per document extraction.
func buildQualityEntries(requestID string, extractions []domain.Extraction, at time.Time) []domain.AuditEntry {
	entries := make([]domain.AuditEntry, 0, len(extractions))
	for i := range extractions {
		ex := extractions[i]
		entry := domain.AuditEntry{
			ID:        uuid.New().String(),
			RequestID: requestID,
			Category:  domain.CategoryQuality,
			Name:      string(ex.DocumentType) + "_quality",
			CreatedAt: at,
			Evidence: map[string]any{
				"document_id": ex.DocumentID,
			},
		}
		if ex.Failed() {
			entry.Message = "extraction failed: " + ex.Err
		} else {
			entry.Score = scoring.ConfidenceBand(ex.Confidence)
			entry.Confidence = ex.Confidence
			entry.Passed = ex.Confidence >= 0.6
			entry.Message = fmt.Sprintf("extraction confidence %.2f", ex.Confidence)
		}
		entries = append(entries, entry)
	}
	return entries
}

// buildDiscrepancies records one discrepancy per failed comparison.
func buildDiscrepancies(requestID string, comparisons []domain.ComparisonResult, at time.Time) []domain.Discrepancy {
	var out []domain.Discrepancy
	for _, c := range comparisons {
		if c.Match {
			continue
		}
		out = append(out, domain.Discrepancy{
			ID:              uuid.New().String(),
			RequestID:       requestID,
			Field:           c.Field,
			EnteredValue:    c.Entered,
			DocumentValue:   c.Extracted,
			Severity:        domain.SeverityForSimilarity(c.Similarity),
			SimilarityScore: c.Similarity * 100.0,
			Description: fmt.Sprintf("declared %s does not match document data (similarity %.0f%%)",
				c.Field, c.Similarity*100.0),
			Resolution: domain.ResolutionUnresolved,
			CreatedAt:  at,
		})
	}
	return out
}
