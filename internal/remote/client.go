// Package remote is the HTTP/JSON client for the upstream requisition API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"requisition-sync/config"
	"requisition-sync/internal/apperror"
	applog "requisition-sync/pkg/logger"
)

// Client talks to the upstream API. Calls are throttled client-side and
// never retried.
type Client struct {
	baseURL   string
	token     string
	headers   map[string]string
	probePath string
	http      *http.Client
	limiter   *rate.Limiter
	log       *applog.Logger
}

// NewClient creates a new upstream client.
func NewClient(cfg *config.RemoteConfig, log *applog.Logger) *Client {
	log = log.WithComponent("remote")

	transport := &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warnw("invalid proxy URL, not using a proxy", "proxy", cfg.HTTPProxy, "error", err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		token:     cfg.AccessToken,
		headers:   cfg.Headers,
		probePath: cfg.ProbePath,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send performs the request and returns the status and body. Only transport
// failures are errors here; status handling is up to the caller.
func (c *Client) send(req *http.Request) (int, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return 0, nil, apperror.NewTransport("request throttled", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, apperror.NewTransport("http request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperror.NewTransport("failed to read response body", err)
	}

	c.log.Debugw("upstream call", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
	return resp.StatusCode, body, nil
}

// do sends the request and decodes a 2xx JSON answer into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	status, payload, err := c.send(req)
	if err != nil {
		return err
	}
	if err := statusError(req, status, payload); err != nil {
		return err
	}
	return decode(payload, out)
}

func statusError(req *http.Request, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotFound {
		return apperror.NewNotFound("resource", req.URL.Path)
	}
	return apperror.NewTransport(
		fmt.Sprintf("%s %s returned status %d", req.Method, req.URL.Path, status), nil,
	).WithDetail("status", status).WithDetail("body", string(body))
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperror.NewTransport("failed to unmarshal api response", err)
	}
	return nil
}
