// Package agentclient talks to remote executor agents over HTTP.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RezaEskandarii/datafire/internal/payload"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
)

const (
	TokenHeader     = "X-Agent-Token"
	RequestIDHeader = "X-Request-ID"

	HealthPath  = "/health"
	ExecutePath = "/execute"
)

// ErrUnauthorized marks an ExecutionError caused by a rejected token.
var ErrUnauthorized = errors.New("agent rejected token")

type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"
	KindAuth        ErrorKind = "auth"
	KindApplication ErrorKind = "application"
)

// ExecutionError is returned for every failed execute call. Callers are not
// expected to branch on Kind; it is kept for logs and metrics.
type ExecutionError struct {
	Kind    ErrorKind
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrUnauthorized && e.Kind == KindAuth
}

// Endpoint identifies an agent and the token it expects.
type Endpoint struct {
	URL   string
	Token string
}

// Executor is what the scheduler needs from an agent client.
type Executor interface {
	CheckHealth(ctx context.Context, ep Endpoint) (bool, error)
	Execute(ctx context.Context, ep Endpoint, p types.Payload, batchNo int64, requestID string) (*types.ExecuteResponse, error)
}

// Client keeps one http.Client, and so one connection pool, per normalised
// agent address. It is safe for concurrent use.
type Client struct {
	mu             sync.Mutex
	clients        map[string]*http.Client
	healthTimeout  time.Duration
	executeTimeout time.Duration
}

func New(healthTimeout, executeTimeout time.Duration) *Client {
	return &Client{
		clients:        make(map[string]*http.Client),
		healthTimeout:  healthTimeout,
		executeTimeout: executeTimeout,
	}
}

// NormalizeURL trims the address, drops trailing slashes and adds http://
// when no scheme is given.
func NormalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return u
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return u
}

func (c *Client) httpClient(base string) *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.clients[base]; ok {
		return hc
	}
	hc := &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	c.clients[base] = hc
	return hc
}

// Cached reports how many agent addresses currently hold a connection pool.
func (c *Client) Cached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// CheckHealth returns true when GET /health answers 200. Transport failures
// are returned as the error alongside false.
func (c *Client) CheckHealth(ctx context.Context, ep Endpoint) (bool, error) {
	base := NormalizeURL(ep.URL)
	if base == "" {
		return false, errors.New("agent url is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+HealthPath, nil)
	if err != nil {
		return false, errors.Wrap(err, "build health request")
	}
	req.Header.Set(TokenHeader, ep.Token)

	resp, err := c.httpClient(base).Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "health check %s", base)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return false, errors.Newf("health check %s: status %d", base, resp.StatusCode)
	}
	return true, nil
}

// Execute posts one batch to the agent. Any failure, whether the agent was
// unreachable, refused the token or reported an error, is an
// *ExecutionError.
func (c *Client) Execute(ctx context.Context, ep Endpoint, p types.Payload, batchNo int64, requestID string) (*types.ExecuteResponse, error) {
	base := NormalizeURL(ep.URL)
	if base == "" {
		return nil, &ExecutionError{Kind: KindTransport, Message: "agent url is empty"}
	}

	data, err := payload.Encode(p)
	if err != nil {
		return nil, &ExecutionError{Kind: KindApplication, Message: err.Error()}
	}
	body, err := json.Marshal(types.ExecuteRequest{
		PayloadKind: p.Kind(),
		PayloadData: data,
		BatchNumber: batchNo,
	})
	if err != nil {
		return nil, &ExecutionError{Kind: KindApplication, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.executeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+ExecutePath, bytes.NewReader(body))
	if err != nil {
		return nil, &ExecutionError{Kind: KindTransport, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TokenHeader, ep.Token)
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := c.httpClient(base).Do(req)
	if err != nil {
		return nil, &ExecutionError{Kind: KindTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExecutionError{Kind: KindTransport, Message: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &ExecutionError{Kind: KindAuth, Message: fmt.Sprintf("agent %s rejected token (status %d)", base, resp.StatusCode)}
	}

	var out types.ExecuteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ExecutionError{
			Kind:    KindApplication,
			Message: fmt.Sprintf("agent %s: status %d: %s", base, resp.StatusCode, truncate(string(raw), 512)),
		}
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("agent %s: status %d", base, resp.StatusCode)
		}
		return &out, &ExecutionError{Kind: KindApplication, Message: msg}
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
