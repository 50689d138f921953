// Package backend holds the REST clients for the merchant backend: the cart
// resource, the coupon registry, and order creation. Transport details stay
// here; the rest of the engine sees only the cart.SyncClient, coupon.Registry
// and order.Gateway ports.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jcmexdev/storefront-checkout/internal/pkg/requestmeta"
)

// Client is the shared HTTP plumbing for all backend resources.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient parses baseURL and wraps httpClient. An invalid base URL is a
// configuration error and fails fast.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

// apiError is the backend's structured error body: {"error": ..., "message": ...}.
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// do issues a JSON request and decodes a JSON response into out (when out is
// non-nil). Non-2xx responses are returned as *StatusError carrying the
// decoded error body when one is present.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	// JoinPath keeps any path prefix on the base URL, so BACKEND_URL may be
	// "https://host/api" and requests still land under /api.
	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Propagate correlation headers downstream.
	if id := requestmeta.RequestID(ctx); id != "" {
		req.Header.Set(requestmeta.HeaderRequestID, id)
	}
	if key := requestmeta.IdempotencyKey(ctx); key != "" {
		req.Header.Set(requestmeta.HeaderIdempotencyKey, key)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		se := &StatusError{StatusCode: res.StatusCode}
		var ae apiError
		if err := json.NewDecoder(res.Body).Decode(&ae); err == nil {
			se.Code = ae.Code
			se.Message = ae.Message
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}
