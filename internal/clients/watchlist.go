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

// HTTPWatchlistClient calls an external sanctions/PEP screening provider.
type HTTPWatchlistClient struct {
	endpoint string
	client   *http.Client
}

// NewWatchlistClient creates a screening client for the given endpoint.
func NewWatchlistClient(endpoint string, timeout time.Duration) *HTTPWatchlistClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPWatchlistClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type screenRequest struct {
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	IDNumber    string `json:"idNumber,omitempty"`
}

type screenResponse struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"detail"`
}

// Screen checks the declared identity against watchlists. Any transport
// or decoding failure surfaces as an error; the caller treats that as an
// unknown verdict, never as clearance.
func (c *HTTPWatchlistClient) Screen(ctx context.Context, declared map[string]string) (domain.ScreeningResult, error) {
	body, err := json.Marshal(screenRequest{
		FullName:    declared["full_name"],
		DateOfBirth: declared["date_of_birth"],
		IDNumber:    declared["id_number"],
	})
	if err != nil {
		return domain.ScreeningResult{Status: domain.ScreeningUnknown}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/screen", bytes.NewReader(body))
	if err != nil {
		return domain.ScreeningResult{Status: domain.ScreeningUnknown}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ScreeningResult{Status: domain.ScreeningUnknown}, fmt.Errorf("screening request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ScreeningResult{Status: domain.ScreeningUnknown},
			fmt.Errorf("screening provider returned %d", resp.StatusCode)
	}

	var out screenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ScreeningResult{Status: domain.ScreeningUnknown},
			fmt.Errorf("failed to decode screening response: %w", err)
	}

	status := domain.ScreeningStatus(out.Status)
	switch status {
	case domain.ScreeningClear, domain.ScreeningMatch:
	default:
		status = domain.ScreeningUnknown
	}

	return domain.ScreeningResult{
		Status:     status,
		Confidence: out.Confidence,
		Detail:     out.Detail,
	}, nil
}
