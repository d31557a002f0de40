package domain

import (
	"context"
	"time"
)

// AuditEntry is one persisted check or comparison row for a run.
type AuditEntry struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"requestId"`
	Category   CheckCategory  `json:"category"`
	Name       string         `json:"name"`
	Score      float64        `json:"score"` // 0-100
	Confidence float64        `json:"confidence"`
	Passed     bool           `json:"passed"`
	Message    string         `json:"message"`
	Evidence   map[string]any `json:"evidence,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// VerificationRun is the atomic unit persisted when a run finishes: the
// request's new state plus every audit entry and discrepancy it produced.
// Partial writes are a correctness violation.
type VerificationRun struct {
	Request       *VerificationRequest
	Entries       []AuditEntry
	Discrepancies []Discrepancy
}

// DiscrepancyResolution carries a reviewer's resolution of a discrepancy.
type DiscrepancyResolution struct {
	Status     ResolutionStatus
	ResolvedBy string
	Note       string
}

// Repository defines the interface for data persistence.
type Repository interface {
	// Request operations
	SaveRequest(ctx context.Context, req *VerificationRequest) error
	GetRequest(ctx context.Context, requestID string) (*VerificationRequest, error)
	// TransitionStatus moves a request between states, enforcing the state
	// machine. Returns ErrInvalidTransition when the move is not allowed.
	TransitionStatus(ctx context.Context, requestID string, next Status) error
	// FailRequest transitions a request to failed and persists the failure
	// cause as its decision reason in the same update.
	FailRequest(ctx context.Context, requestID string, reason string) error

	// Document operations
	SaveDocument(ctx context.Context, doc *Document) error
	ListDocuments(ctx context.Context, requestID string) ([]*Document, error)

	// CommitRun persists a finished run in a single transaction: request
	// state, audit entries, and discrepancies all commit or none do.
	CommitRun(ctx context.Context, run *VerificationRun) error

	// DeleteRunArtifacts removes prior audit entries and discrepancies for
	// a request, making reprocessing idempotent.
	DeleteRunArtifacts(ctx context.Context, requestID string) error

	// Audit retrieval
	ListAuditEntries(ctx context.Context, requestID string) ([]AuditEntry, error)
	ListDiscrepancies(ctx context.Context, requestID string) ([]Discrepancy, error)
	ResolveDiscrepancy(ctx context.Context, discrepancyID string, res DiscrepancyResolution) error

	// Rule definitions
	SaveRuleDefinition(ctx context.Context, rule *RuleDefinition) error
	ListRuleDefinitions(ctx context.Context) ([]*RuleDefinition, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
