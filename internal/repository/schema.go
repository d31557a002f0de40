package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaRequests = `
CREATE TABLE IF NOT EXISTS verification_requests (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    account_type TEXT NOT NULL,
    declared_data TEXT NOT NULL,
    status TEXT NOT NULL,
    overall_score REAL NOT NULL DEFAULT 0,
    score_breakdown TEXT,
    approved INTEGER,
    decision_reason TEXT,
    created_at TIMESTAMP NOT NULL,
    started_at TIMESTAMP,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_requests_customer ON verification_requests(customer_id);
CREATE INDEX IF NOT EXISTS idx_requests_status ON verification_requests(status);
CREATE INDEX IF NOT EXISTS idx_requests_created ON verification_requests(created_at);
`

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    doc_type TEXT NOT NULL,
    file_ref TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_request ON documents(request_id);
`

const schemaAuditEntries = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    category TEXT NOT NULL,
    name TEXT NOT NULL,
    score REAL NOT NULL,
    confidence REAL NOT NULL,
    passed INTEGER NOT NULL,
    message TEXT,
    evidence TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_request ON audit_entries(request_id);
CREATE INDEX IF NOT EXISTS idx_audit_category ON audit_entries(request_id, category);
`

const schemaDiscrepancies = `
CREATE TABLE IF NOT EXISTS discrepancies (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    field TEXT NOT NULL,
    entered_value TEXT,
    document_value TEXT,
    severity TEXT NOT NULL,
    similarity_score REAL NOT NULL,
    description TEXT,
    resolution TEXT NOT NULL DEFAULT 'unresolved',
    resolved_by TEXT,
    resolved_at TIMESTAMP,
    resolution_note TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discrepancies_request ON discrepancies(request_id);
CREATE INDEX IF NOT EXISTS idx_discrepancies_resolution ON discrepancies(request_id, resolution);
`

const schemaRuleDefinitions = `
CREATE TABLE IF NOT EXISTS rule_definitions (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT,
    rule_type TEXT NOT NULL,
    category TEXT NOT NULL,
    blocking INTEGER NOT NULL DEFAULT 0,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    error_message TEXT,
    condition TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_enabled ON rule_definitions(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRequests,
		schemaDocuments,
		schemaAuditEntries,
		schemaDiscrepancies,
		schemaRuleDefinitions,
	}
}
