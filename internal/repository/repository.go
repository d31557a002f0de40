// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRequest inserts or updates a verification request.
func (r *SQLRepository) SaveRequest(ctx context.Context, req *domain.VerificationRequest) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("%w: request with ID is required", ErrInvalidInput)
	}

	declared, _ := json.Marshal(req.DeclaredData)
	breakdown, _ := json.Marshal(req.ScoreBreakdown)

	query := `
		INSERT INTO verification_requests (
			id, customer_id, account_type, declared_data, status,
			overall_score, score_breakdown, approved, decision_reason,
			created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			overall_score = excluded.overall_score,
			score_breakdown = excluded.score_breakdown,
			approved = excluded.approved,
			decision_reason = excluded.decision_reason,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		req.ID, req.CustomerID, req.AccountType, string(declared), string(req.Status),
		req.OverallScore, string(breakdown), approvedToDB(req.Approved), req.DecisionReason,
		req.CreatedAt, req.StartedAt, req.CompletedAt,
	)
	return err
}

// GetRequest retrieves a verification request by ID.
func (r *SQLRepository) GetRequest(ctx context.Context, requestID string) (*domain.VerificationRequest, error) {
	query := `
		SELECT id, customer_id, account_type, declared_data, status,
			   overall_score, score_breakdown, approved, decision_reason,
			   created_at, started_at, completed_at
		FROM verification_requests
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), requestID)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

// TransitionStatus moves a request between states, enforcing the state
// machine. The update is guarded on the current status so concurrent
// transitions cannot race past the check.
func (r *SQLRepository) TransitionStatus(ctx context.Context, requestID string, next domain.Status) error {
	var current string
	query := `SELECT status FROM verification_requests WHERE id = ?`
	err := r.db.QueryRowContext(ctx, r.rebind(query), requestID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if !domain.Status(current).CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, next)
	}

	update := `UPDATE verification_requests SET status = ? WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, r.rebind(update), string(next), requestID, current)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: concurrent transition from %s", domain.ErrInvalidTransition, current)
	}
	return nil
}

// FailRequest transitions a request to failed and records the failure
// cause as its decision reason. A failed request must never carry an
// empty reason.
func (r *SQLRepository) FailRequest(ctx context.Context, requestID, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: failure reason is required", ErrInvalidInput)
	}

	var current string
	query := `SELECT status FROM verification_requests WHERE id = ?`
	err := r.db.QueryRowContext(ctx, r.rebind(query), requestID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if !domain.Status(current).CanTransitionTo(domain.StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, domain.StatusFailed)
	}

	update := `
		UPDATE verification_requests
		SET status = ?, decision_reason = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, r.rebind(update),
		string(domain.StatusFailed), reason, requestID, current,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: concurrent transition from %s", domain.ErrInvalidTransition, current)
	}
	return nil
}

// SaveDocument stores a submitted document.
func (r *SQLRepository) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document with ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO documents (id, request_id, doc_type, file_ref, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		doc.ID, doc.RequestID, string(doc.Type), doc.FileRef, doc.CreatedAt,
	)
	return err
}

// ListDocuments retrieves the documents attached to a request.
func (r *SQLRepository) ListDocuments(ctx context.Context, requestID string) ([]*domain.Document, error) {
	query := `
		SELECT id, request_id, doc_type, file_ref, created_at
		FROM documents
		WHERE request_id = ?
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		var docType string
		if err := rows.Scan(&doc.ID, &doc.RequestID, &docType, &doc.FileRef, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = domain.DocumentType(docType)
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// CommitRun persists a finished run atomically: the request's new state,
// its audit entries, and its discrepancies all commit or none do.
func (r *SQLRepository) CommitRun(ctx context.Context, run *domain.VerificationRun) error {
	if run == nil || run.Request == nil {
		return fmt.Errorf("%w: run with request is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	req := run.Request
	breakdown, _ := json.Marshal(req.ScoreBreakdown)

	updateReq := `
		UPDATE verification_requests
		SET status = ?, overall_score = ?, score_breakdown = ?,
			approved = ?, decision_reason = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, r.rebind(updateReq),
		string(req.Status), req.OverallScore, string(breakdown),
		approvedToDB(req.Approved), req.DecisionReason, req.StartedAt, req.CompletedAt,
		req.ID,
	)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err != nil {
		return err
	} else if rows == 0 {
		return ErrNotFound
	}

	insertEntry := r.rebind(`
		INSERT INTO audit_entries (
			id, request_id, category, name, score, confidence, passed, message, evidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, e := range run.Entries {
		evidence, _ := json.Marshal(e.Evidence)
		if _, err := tx.ExecContext(ctx, insertEntry,
			e.ID, e.RequestID, string(e.Category), e.Name,
			e.Score, e.Confidence, boolToDB(e.Passed), e.Message, string(evidence), e.CreatedAt,
		); err != nil {
			return err
		}
	}

	insertDiscrepancy := r.rebind(`
		INSERT INTO discrepancies (
			id, request_id, field, entered_value, document_value,
			severity, similarity_score, description, resolution, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, d := range run.Discrepancies {
		if _, err := tx.ExecContext(ctx, insertDiscrepancy,
			d.ID, d.RequestID, d.Field, d.EnteredValue, d.DocumentValue,
			string(d.Severity), d.SimilarityScore, d.Description, string(d.Resolution), d.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteRunArtifacts removes a request's prior audit entries and
// discrepancies so a rerun replaces rather than appends.
func (r *SQLRepository) DeleteRunArtifacts(ctx context.Context, requestID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM audit_entries WHERE request_id = ?`), requestID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM discrepancies WHERE request_id = ?`), requestID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListAuditEntries retrieves the audit trail for a request.
func (r *SQLRepository) ListAuditEntries(ctx context.Context, requestID string) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, request_id, category, name, score, confidence, passed, message, evidence, created_at
		FROM audit_entries
		WHERE request_id = ?
		ORDER BY created_at, name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var category, evidence string
		var passed int
		if err := rows.Scan(
			&e.ID, &e.RequestID, &category, &e.Name,
			&e.Score, &e.Confidence, &passed, &e.Message, &evidence, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Category = domain.CheckCategory(category)
		e.Passed = passed == 1
		if evidence != "" {
			json.Unmarshal([]byte(evidence), &e.Evidence)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListDiscrepancies retrieves the discrepancies recorded for a request.
func (r *SQLRepository) ListDiscrepancies(ctx context.Context, requestID string) ([]domain.Discrepancy, error) {
	query := `
		SELECT id, request_id, field, entered_value, document_value,
			   severity, similarity_score, description,
			   resolution, resolved_by, resolved_at, resolution_note, created_at
		FROM discrepancies
		WHERE request_id = ?
		ORDER BY similarity_score, field
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discrepancies []domain.Discrepancy
	for rows.Next() {
		var d domain.Discrepancy
		var severity, resolution string
		var resolvedBy, resolutionNote sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.RequestID, &d.Field, &d.EnteredValue, &d.DocumentValue,
			&severity, &d.SimilarityScore, &d.Description,
			&resolution, &resolvedBy, &resolvedAt, &resolutionNote, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		d.Severity = domain.Severity(severity)
		d.Resolution = domain.ResolutionStatus(resolution)
		d.ResolvedBy = resolvedBy.String
		d.ResolutionNote = resolutionNote.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			d.ResolvedAt = &t
		}
		discrepancies = append(discrepancies, d)
	}
	return discrepancies, rows.Err()
}

// ResolveDiscrepancy records a reviewer's resolution. A discrepancy can
// only be resolved once.
func (r *SQLRepository) ResolveDiscrepancy(ctx context.Context, discrepancyID string, res domain.DiscrepancyResolution) error {
	if !domain.ValidResolution(res.Status) || res.Status == domain.ResolutionUnresolved {
		return fmt.Errorf("%w: invalid resolution status %q", ErrInvalidInput, res.Status)
	}

	var current string
	query := `SELECT resolution FROM discrepancies WHERE id = ?`
	err := r.db.QueryRowContext(ctx, r.rebind(query), discrepancyID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if domain.ResolutionStatus(current) != domain.ResolutionUnresolved {
		return domain.ErrAlreadyResolved
	}

	update := `
		UPDATE discrepancies
		SET resolution = ?, resolved_by = ?, resolved_at = ?, resolution_note = ?
		WHERE id = ? AND resolution = ?
	`
	result, err := r.db.ExecContext(ctx, r.rebind(update),
		string(res.Status), res.ResolvedBy, time.Now().UTC(), res.Note,
		discrepancyID, string(domain.ResolutionUnresolved),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAlreadyResolved
	}
	return nil
}

// ruleCondition is the persisted form of a rule's condition union.
type ruleCondition struct {
	RequiredDocument *domain.RequiredDocumentCondition `json:"requiredDocument,omitempty"`
	FieldValidation  *domain.FieldValidationCondition  `json:"fieldValidation,omitempty"`
	Threshold        *domain.ThresholdCondition        `json:"threshold,omitempty"`
	AgeVerification  *domain.AgeVerificationCondition  `json:"ageVerification,omitempty"`
	Custom           *domain.CustomCondition           `json:"custom,omitempty"`
}

// SaveRuleDefinition inserts or updates a rule definition, keyed by code.
func (r *SQLRepository) SaveRuleDefinition(ctx context.Context, rule *domain.RuleDefinition) error {
	if rule == nil || rule.ID == "" || rule.Code == "" {
		return fmt.Errorf("%w: rule with ID and code is required", ErrInvalidInput)
	}

	condition, _ := json.Marshal(ruleCondition{
		RequiredDocument: rule.RequiredDocument,
		FieldValidation:  rule.FieldValidation,
		Threshold:        rule.Threshold,
		AgeVerification:  rule.AgeVerification,
		Custom:           rule.Custom,
	})

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_definitions (
			id, code, name, description, rule_type, category,
			blocking, weight, enabled, error_message, condition, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			rule_type = excluded.rule_type,
			category = excluded.category,
			blocking = excluded.blocking,
			weight = excluded.weight,
			enabled = excluded.enabled,
			error_message = excluded.error_message,
			condition = excluded.condition,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Code, rule.Name, rule.Description,
		string(rule.Type), string(rule.Category),
		boolToDB(rule.Blocking), rule.Weight, boolToDB(rule.Enabled),
		rule.ErrorMessage, string(condition), now, now,
	)
	return err
}

// ListRuleDefinitions retrieves all enabled rule definitions.
func (r *SQLRepository) ListRuleDefinitions(ctx context.Context) ([]*domain.RuleDefinition, error) {
	query := `
		SELECT id, code, name, description, rule_type, category,
			   blocking, weight, enabled, error_message, condition
		FROM rule_definitions
		WHERE enabled = 1
		ORDER BY code
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RuleDefinition
	for rows.Next() {
		var rule domain.RuleDefinition
		var ruleType, category, condition string
		var blocking, enabled int
		if err := rows.Scan(
			&rule.ID, &rule.Code, &rule.Name, &rule.Description,
			&ruleType, &category, &blocking, &rule.Weight, &enabled,
			&rule.ErrorMessage, &condition,
		); err != nil {
			return nil, err
		}
		rule.Type = domain.RuleType(ruleType)
		rule.Category = domain.CheckCategory(category)
		rule.Blocking = blocking == 1
		rule.Enabled = enabled == 1

		var cond ruleCondition
		if err := json.Unmarshal([]byte(condition), &cond); err != nil {
			return nil, fmt.Errorf("failed to parse condition for rule %s: %w", rule.Code, err)
		}
		rule.RequiredDocument = cond.RequiredDocument
		rule.FieldValidation = cond.FieldValidation
		rule.Threshold = cond.Threshold
		rule.AgeVerification = cond.AgeVerification
		rule.Custom = cond.Custom

		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// rebind rewrites ? placeholders into the $n form postgres expects.
// SQLite queries pass through untouched.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*domain.VerificationRequest, error) {
	var req domain.VerificationRequest
	var declared, status string
	var breakdown, reason sql.NullString
	var approved sql.NullInt64
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.CustomerID, &req.AccountType, &declared, &status,
		&req.OverallScore, &breakdown, &approved, &reason,
		&req.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = domain.Status(status)
	req.DecisionReason = reason.String
	if declared != "" {
		json.Unmarshal([]byte(declared), &req.DeclaredData)
	}
	if breakdown.Valid && breakdown.String != "" {
		json.Unmarshal([]byte(breakdown.String), &req.ScoreBreakdown)
	}
	if approved.Valid {
		v := approved.Int64 == 1
		req.Approved = &v
	}
	if startedAt.Valid {
		t := startedAt.Time
		req.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		req.CompletedAt = &t
	}
	return &req, nil
}

func approvedToDB(approved *bool) any {
	if approved == nil {
		return nil
	}
	return boolToDB(*approved)
}

func boolToDB(b bool) int {
	if b {
		return 1
	}
	return 0
}
