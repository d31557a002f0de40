// Package clients holds the external collaborators of the verification
// pipeline: the OCR extraction service and the watchlist screening
// provider. Both are plain JSON-over-HTTP clients.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// HTTPOCRClient calls an external document extraction service.
type HTTPOCRClient struct {
	endpoint string
	client   *http.Client
}

// NewOCRClient creates an OCR client for the given endpoint.
func NewOCRClient(endpoint string, timeout time.Duration) *HTTPOCRClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &HTTPOCRClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ocrRequest struct {
	DocumentID string `json:"documentId"`
	DocType    string `json:"docType"`
	FileRef    string `json:"fileRef"`
}

type ocrResponse struct {
	Fields     map[string]string `json:"structuredFields"`
	Confidence float64           `json:"overallConfidence"`
	RawText    string            `json:"rawText"`
	Error      string            `json:"error"`
}

// Extract sends a document to the OCR service and returns the extraction.
func (c *HTTPOCRClient) Extract(ctx context.Context, doc domain.Document) (*domain.Extraction, error) {
	body, err := json.Marshal(ocrRequest{
		DocumentID: doc.ID,
		DocType:    string(doc.Type),
		FileRef:    doc.FileRef,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned %d", resp.StatusCode)
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	return &domain.Extraction{
		DocumentID:   doc.ID,
		DocumentType: doc.Type,
		Fields:       out.Fields,
		Confidence:   out.Confidence,
		RawText:      out.RawText,
		Err:          out.Error,
	}, nil
}
