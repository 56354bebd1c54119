package casedata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// HTTPClient looks up case data from the case service over HTTP.
type HTTPClient struct {
	url  string
	http *http.Client
}

// NewHTTPClient creates a new HTTPClient. When creds is non-nil, requests
// carry a client-credentials bearer token obtained from creds.TokenURL.
func NewHTTPClient(baseURL string, timeout time.Duration, creds *clientcredentials.Config) *HTTPClient {
	base := &http.Client{Timeout: timeout}
	hc := base
	if creds != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc = creds.Client(ctx)
		hc.Timeout = timeout
	}
	return &HTTPClient{url: baseURL, http: hc}
}

type valueResponse struct {
	Value any `json:"value"`
}

// Resolve fetches the value at sourcePath for a case. A 404 or a null value
// means the data is unavailable. Any other non-200 status is an error.
func (c *HTTPClient) Resolve(ctx context.Context, caseID, sourcePath string) (any, bool, error) {
	endpoint := fmt.Sprintf("%s/cases/%s/data?path=%s", c.url, url.PathEscape(caseID), url.QueryEscape(sourcePath))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("case service returned status code %d for %s", resp.StatusCode, sourcePath)
	}

	var body valueResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("failed to decode response body: %w", err)
	}
	if body.Value == nil {
		return nil, false, nil
	}
	return body.Value, true, nil
}
