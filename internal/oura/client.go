package oura

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/3Health-View/backend/internal/domain"
	"github.com/3Health-View/backend/pkg/httpclient"
)

const serviceName = "oura"

// Payload is a decoded provider response body.
type Payload map[string]any

// Documents returns the documents under the top-level "data" key.
func (p Payload) Documents() ([]domain.Document, error) {
	raw, ok := p["data"]
	if !ok {
		return nil, &ShapeError{Payload: p}
	}
	list, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return []domain.Document{}, nil
		}
		return nil, &ShapeError{Payload: p}
	}

	docs := make([]domain.Document, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &ShapeError{Payload: p}
		}
		docs = append(docs, domain.Document(obj))
	}
	return docs, nil
}

// DataClient reads the usercollection API. Calls go through a circuit
// breaker so a failing provider is not hammered by every sync.
type DataClient struct {
	baseURL string
	http    *httpclient.CircuitBreakerClient
}

func NewDataClient(baseURL string, client *httpclient.CircuitBreakerClient) *DataClient {
	return &DataClient{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// Get fetches path with the user's access token. Non-2xx answers are
// returned as *httpclient.StatusError.
func (c *DataClient) Get(ctx context.Context, accessToken, path string, params url.Values) (Payload, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ReadStatusError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return payload, nil
}
