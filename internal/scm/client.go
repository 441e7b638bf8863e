package scm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 60 * time.Second
	defaultRPS     = 10
)

// Client talks to the external modeling service over HTTP JSON.
type Client struct {
	client   *http.Client
	endpoint string
	limiter  *rate.Limiter
}

// NewClient creates a client for the given base URL. timeout bounds
// each round trip; zero means the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &Client{
		client:   &http.Client{Timeout: timeout},
		endpoint: url,
		limiter:  rate.NewLimiter(rate.Limit(defaultRPS), defaultRPS),
	}
}

// Fit sends a fit request. Any transport failure, malformed body, or
// error status comes back as a single ExternalServiceError.
func (c *Client) Fit(ctx context.Context, req FitRequest) (*FitResponse, error) {
	var resp FitResponse
	if err := c.post(ctx, "fit", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status == StatusError {
		return nil, &ExternalServiceError{Op: "fit", Message: resp.Error, Traceback: resp.Traceback}
	}
	return &resp, nil
}

// Query sends an interventional query request.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.post(ctx, "query", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status == StatusError {
		return nil, &ExternalServiceError{Op: "query", Message: resp.Error, Traceback: resp.Traceback}
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, op string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &ExternalServiceError{Op: op, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &ExternalServiceError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+op, bytes.NewReader(body))
	if err != nil {
		return &ExternalServiceError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return &ExternalServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ExternalServiceError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ExternalServiceError{
			Op:      op,
			Message: fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ExternalServiceError{Op: op, Message: "malformed response", Err: err}
	}
	return nil
}
