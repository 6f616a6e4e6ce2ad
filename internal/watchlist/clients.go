package watchlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"cred/internal/domain"
	"cred/pkg/errors"
)

// ==============================================================================
// STATIC LIST CLIENT
// ==============================================================================

// StaticListClient screens against an in-memory name list. Used for
// jurisdiction lists distributed as files and for tests.
type StaticListClient struct {
	name    string
	entries map[string]float64 // normalized full name -> confidence
}

func NewStaticListClient(name string, entries map[string]float64) *StaticListClient {
	normalized := make(map[string]float64, len(entries))
	for k, v := range entries {
		normalized[normalizeName(k)] = v
	}
	return &StaticListClient{name: name, entries: normalized}
}

func (c *StaticListClient) Name() string { return c.name }

func (c *StaticListClient) Query(ctx context.Context, profile *domain.Profile) (*domain.WatchlistQueryResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	confidence, matched := c.entries[normalizeName(profile.FullName)]
	return &domain.WatchlistQueryResult{
		Source:     c.name,
		Matched:    matched,
		Confidence: confidence,
	}, nil
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

// ==============================================================================
// HTTP SOURCE CLIENT
// ==============================================================================

// HTTPClient queries a remote screening provider over HTTP.
type HTTPClient struct {
	name     string
	endpoint string
	client   *http.Client
}

func NewHTTPClient(name, endpoint string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{name: name, endpoint: endpoint, client: client}
}

func (c *HTTPClient) Name() string { return c.name }

type screeningRequest struct {
	FullName    string `json:"full_name"`
	Nationality string `json:"nationality"`
	DateOfBirth string `json:"date_of_birth"`
}

type screeningResponse struct {
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
}

func (c *HTTPClient) Query(ctx context.Context, profile *domain.Profile) (*domain.WatchlistQueryResult, error) {
	body, err := json.Marshal(screeningRequest{
		FullName:    profile.FullName,
		Nationality: profile.Nationality,
		DateOfBirth: profile.DateOfBirth.Format("2006-01-02"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode screening request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build screening request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "screening request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screening source %s returned status %d", c.name, resp.StatusCode)
	}

	var decoded screeningResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode screening response")
	}

	return &domain.WatchlistQueryResult{
		Source:     c.name,
		Matched:    decoded.Matched,
		Confidence: decoded.Confidence,
	}, nil
}
