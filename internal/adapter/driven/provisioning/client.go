// Package provisioning implements the ProvisioningClient port against the
// hosted provisioning API (JSON over HTTPS, bearer authorization).
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/aliuygur/instol-panel/internal/domain/model"
	"github.com/aliuygur/instol-panel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProvisioningClient = (*Client)(nil)

// Client talks to the provisioning API. The bearer credential is attached
// per request from the TokenSource, so a captured or invalidated session
// takes effect on the very next call. No client-side deadline is imposed
// beyond the caller's context; failures surface as transport errors or
// non-2xx mappings.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     driven.TokenSource
}

// NewClient creates a Client for the given base URL with an ETag-aware
// caching transport (conditional requests cost the backend nothing today
// but come free if it ever sends validators).
func NewClient(baseURL string, tokens driven.TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: httpcache.NewMemoryCacheTransport()},
		tokens:     tokens,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, tokens driven.TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}
}

// wireInstance is the provisioning API's instance record.
type wireInstance struct {
	ID        string `json:"id"`
	URL       string `json:"instance_url"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (w wireInstance) toModel() model.Instance {
	// created_at is best-effort: a malformed timestamp degrades display,
	// not function.
	createdAt, _ := time.Parse(time.RFC3339, w.CreatedAt)
	return model.Instance{
		ID:        w.ID,
		URL:       w.URL,
		Status:    w.Status,
		CreatedAt: createdAt,
	}
}

// CheckSubdomain probes availability of a candidate subdomain.
func (c *Client) CheckSubdomain(ctx context.Context, subdomain string) (driven.SubdomainCheck, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/instances/check-subdomain", map[string]string{"subdomain": subdomain})
	if err != nil {
		return driven.SubdomainCheck{}, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return driven.SubdomainCheck{}, err
	}

	var body struct {
		Available bool   `json:"available"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return driven.SubdomainCheck{}, fmt.Errorf("decode availability response: %w", err)
	}

	return driven.SubdomainCheck{Available: body.Available, Message: body.Message}, nil
}

// CreateInstance requests a new hosted instance.
func (c *Client) CreateInstance(ctx context.Context, subdomain, region string) (model.Instance, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/instances", map[string]string{
		"subdomain": subdomain,
		"region":    region,
	})
	if err != nil {
		return model.Instance{}, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return model.Instance{}, err
	}

	var created wireInstance
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return model.Instance{}, fmt.Errorf("decode created instance: %w", err)
	}
	return created.toModel(), nil
}

// ListInstances returns the full instance set for the current session.
func (c *Client) ListInstances(ctx context.Context) ([]model.Instance, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/instances", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var body struct {
		Instances []wireInstance `json:"instances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode instance listing: %w", err)
	}

	instances := make([]model.Instance, 0, len(body.Instances))
	for _, wi := range body.Instances {
		instances = append(instances, wi.toModel())
	}
	return instances, nil
}

// DeleteInstance tears down the instance with the given id. The success
// body is ignored.
func (c *Client) DeleteInstance(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/instances/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.checkStatus(resp)
}

// Logout notifies the backend that the session is ending. Callers treat
// this as best-effort.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.checkStatus(resp)
}

// do builds and issues a request, attaching the bearer credential when one
// is present. An absent credential sends the request unauthenticated; the
// backend is the authority on rejecting it.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err == nil && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// checkStatus maps a non-2xx response to the port's error vocabulary:
// 401/403 become ErrUnauthorized, a decodable {error} body becomes a
// ValidationError with the server's message verbatim, anything else a
// generic status error.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return driven.ErrUnauthorized
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return &driven.ValidationError{Message: body.Error}
	}

	return fmt.Errorf("provisioning api error: %s", resp.Status)
}
