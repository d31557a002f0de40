package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/compliance"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/verify"
)

type fakeOCR struct {
	fields map[string]string
}

func (f *fakeOCR) Extract(ctx context.Context, doc domain.Document) (*domain.Extraction, error) {
	return &domain.Extraction{Fields: f.fields, Confidence: 0.95}, nil
}

type fakeWatchlist struct{}

func (f *fakeWatchlist) Screen(ctx context.Context, declared map[string]string) (domain.ScreeningResult, error) {
	return domain.ScreeningResult{Status: domain.ScreeningClear, Confidence: 0.95}, nil
}

func newTestServer(t *testing.T, ocrFields map[string]string) *Server {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := domain.DefaultVerificationConfig()

	checks, err := compliance.NewRunner(cfg, &fakeWatchlist{}, logger)
	if err != nil {
		t.Fatalf("failed to create compliance runner: %v", err)
	}

	lru := cache.NewLRUCache(100)
	orch := verify.NewOrchestrator(repo, lru, eventBus, &fakeOCR{fields: ocrFields}, checks, cfg, logger)

	return NewServer(domain.ServerConfig{Host: "127.0.0.1", Port: 0}, repo, lru, eventBus, orch, checks, "test")
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func matchingFields() map[string]string {
	return map[string]string{
		"full_name":     "Jane Doe",
		"id_number":     "12345678",
		"date_of_birth": "1990-05-10",
	}
}

func submitBody() map[string]any {
	return map[string]any{
		"customerId":   "cust-api-1",
		"accountType":  "savings",
		"declaredData": matchingFields(),
	}
}

func TestSubmitValidation(t *testing.T) {
	router := newTestServer(t, nil).Router()

	tests := []struct {
		name string
		body any
		want int
	}{
		{"Valid", submitBody(), http.StatusCreated},
		{"MissingCustomerID", map[string]any{"accountType": "savings"}, http.StatusBadRequest},
		{"MissingAccountType", map[string]any{"customerId": "c1"}, http.StatusBadRequest},
		{"InvalidJSON", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.body == nil {
				req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader([]byte("{not json")))
				rec = httptest.NewRecorder()
				router.ServeHTTP(rec, req)
			} else {
				rec = doJSON(t, router, http.MethodPost, "/requests", tt.body)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestVerificationFlow(t *testing.T) {
	router := newTestServer(t, matchingFields()).Router()

	rec := doJSON(t, router, http.MethodPost, "/requests", submitBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d (body %s)", rec.Code, rec.Body)
	}
	var created domain.VerificationRequest
	decodeBody(t, rec, &created)
	if created.ID == "" || created.Status != domain.StatusPending {
		t.Fatalf("unexpected created request: %+v", created)
	}

	rec = doJSON(t, router, http.MethodPost, "/requests/"+created.ID+"/documents", map[string]string{
		"type":    "national_id",
		"fileRef": "s3://docs/id.png",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("attach status = %d (body %s)", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, http.MethodPost, "/requests/"+created.ID+"/process", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d (body %s)", rec.Code, rec.Body)
	}
	var outcome domain.Outcome
	decodeBody(t, rec, &outcome)
	if outcome.Decision != domain.DecisionApproved {
		t.Errorf("decision = %v (%s), want approved", outcome.Decision, outcome.DecisionReason)
	}

	t.Run("GetRequest", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/requests/"+created.ID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d", rec.Code)
		}
		var stored domain.VerificationRequest
		decodeBody(t, rec, &stored)
		if stored.Status != domain.StatusCompleted {
			t.Errorf("stored status = %v, want completed", stored.Status)
		}
	})

	t.Run("ListResults", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/requests/"+created.ID+"/results", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("results status = %d", rec.Code)
		}
		var body struct {
			Count int `json:"count"`
		}
		decodeBody(t, rec, &body)
		if body.Count == 0 {
			t.Error("expected audit entries for a processed request")
		}
	})

	t.Run("ProcessAgainConflicts", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/requests/"+created.ID+"/process", nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("second process status = %d, want 409", rec.Code)
		}
	})

	t.Run("Reprocess", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/requests/"+created.ID+"/reprocess", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("reprocess status = %d (body %s)", rec.Code, rec.Body)
		}
	})
}

func TestProcessNotFound(t *testing.T) {
	router := newTestServer(t, nil).Router()

	for _, path := range []string{
		"/requests/no-such-id",
		"/requests/no-such-id/process",
		"/requests/no-such-id/reprocess",
	} {
		method := http.MethodPost
		if path == "/requests/no-such-id" {
			method = http.MethodGet
		}
		rec := doJSON(t, router, method, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", method, path, rec.Code)
		}
	}
}

func TestDiscrepancyResolution(t *testing.T) {
	fields := matchingFields()
	fields["full_name"] = "Totally Different Person"
	router := newTestServer(t, fields).Router()

	rec := doJSON(t, router, http.MethodPost, "/requests", submitBody())
	var created domain.VerificationRequest
	decodeBody(t, rec, &created)

	doJSON(t, router, http.MethodPost, "/requests/"+created.ID+"/documents", map[string]string{
		"type":    "national_id",
		"fileRef": "s3://docs/id.png",
	})
	rec = doJSON(t, router, http.MethodPost, "/requests/"+created.ID+"/process", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d (body %s)", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, http.MethodGet, "/requests/"+created.ID+"/discrepancies", nil)
	var listed struct {
		Discrepancies []domain.Discrepancy `json:"discrepancies"`
		Count         int                  `json:"count"`
	}
	decodeBody(t, rec, &listed)
	if listed.Count == 0 {
		t.Fatal("expected a name discrepancy")
	}
	discrepancyID := listed.Discrepancies[0].ID

	resolution := map[string]string{
		"status":     "accepted",
		"resolvedBy": "analyst@example.com",
		"note":       "known alias",
	}

	t.Run("MissingResolvedBy", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/discrepancies/"+discrepancyID+"/resolution", map[string]string{
			"status": "accepted",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("Resolve", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/discrepancies/"+discrepancyID+"/resolution", resolution)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d (body %s), want 200", rec.Code, rec.Body)
		}
	})

	t.Run("ResolveTwiceConflicts", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/discrepancies/"+discrepancyID+"/resolution", resolution)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/discrepancies/no-such-id/resolution", resolution)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	router := newTestServer(t, nil).Router()

	rule := map[string]any{
		"code":     "country_restriction",
		"name":     "Country restriction",
		"type":     "custom",
		"category": "kyc",
		"enabled":  true,
		"custom":   map[string]string{"expression": `declared["country"] == "KE"`},
	}

	rec := doJSON(t, router, http.MethodPost, "/rules", rule)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body %s)", rec.Code, rec.Body)
	}
	var saved domain.RuleDefinition
	decodeBody(t, rec, &saved)
	if saved.ID == "" {
		t.Error("server must assign an ID")
	}
	if saved.Weight != 1.0 {
		t.Errorf("default weight = %v, want 1.0", saved.Weight)
	}

	t.Run("List", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rules", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list status = %d", rec.Code)
		}
		var body struct {
			Rules []domain.RuleDefinition `json:"rules"`
			Count int                     `json:"count"`
		}
		decodeBody(t, rec, &body)
		if body.Count != 1 || body.Rules[0].Code != "country_restriction" {
			t.Errorf("unexpected rule list: %+v", body)
		}
	})

	t.Run("InvalidExpressionRejected", func(t *testing.T) {
		bad := map[string]any{
			"code":     "broken",
			"name":     "Broken",
			"type":     "custom",
			"category": "kyc",
			"custom":   map[string]string{"expression": `declared[==`},
		}
		rec := doJSON(t, router, http.MethodPost, "/rules", bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("MissingConditionRejected", func(t *testing.T) {
		bad := map[string]any{
			"code":     "no_condition",
			"name":     "No condition",
			"type":     "threshold",
			"category": "kyc",
		}
		rec := doJSON(t, router, http.MethodPost, "/rules", bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestServer(t, nil).Router()

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health map[string]string
	decodeBody(t, rec, &health)
	if health["status"] != "healthy" || health["version"] != "test" {
		t.Errorf("unexpected health body: %v", health)
	}

	rec = doJSON(t, router, http.MethodGet, "/ready", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}
}

func TestEnabledRuleRunsDuringProcessing(t *testing.T) {
	router := newTestServer(t, matchingFields()).Router()

	minAge := map[string]any{
		"code":            "senior_account_age",
		"name":            "Minimum age for account",
		"type":            "age_verification",
		"category":        "kyc",
		"enabled":         true,
		"blocking":        true,
		"ageVerification": map[string]int{"minAge": 99},
		"errorMessage":    "applicant below minimum age",
	}
	rec := doJSON(t, router, http.MethodPost, "/rules", minAge)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule status = %d (body %s)", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, http.MethodPost, "/requests", submitBody())
	var created domain.VerificationRequest
	decodeBody(t, rec, &created)

	doJSON(t, router, http.MethodPost, "/requests/"+created.ID+"/documents", map[string]string{
		"type":    "national_id",
		"fileRef": "s3://docs/id.png",
	})

	rec = doJSON(t, router, http.MethodPost, "/requests/"+created.ID+"/process", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d (body %s)", rec.Code, rec.Body)
	}
	var outcome domain.Outcome
	decodeBody(t, rec, &outcome)
	if outcome.Decision == domain.DecisionApproved {
		t.Error("blocking age rule must prevent approval")
	}

	found := false
	for _, entry := range outcome.Checks {
		if entry.Name == "senior_account_age" && !entry.Passed {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a failed senior_account_age entry, got %+v", outcome.Checks)
	}
}
