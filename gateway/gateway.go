// Package gateway is the single chokepoint for all remote calls to the
// WeightHabit API. It injects the bearer token and a per-request tracing ID,
// decodes the response envelope, and classifies every failure into the
// ErrorKind taxonomy. It performs no caching and holds no domain state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

// DefaultTimeout is the per-request timeout when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Config holds gateway configuration.
type Config struct {
	// BaseURL is the API root, e.g. https://api.weighthabit.com/api.
	BaseURL string
	// Timeout is the per-request timeout. Zero means DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the underlying client; Timeout is ignored when set.
	HTTPClient *http.Client
	// OnUnauthorized is invoked once per response that completes with
	// status 401, before the classified error is returned. The session
	// manager installs its local teardown here so that exactly one place
	// enforces "any unauthorized response ends the session".
	OnUnauthorized func()
	// Logger receives request/response trace lines. Nil disables them.
	Logger *slog.Logger
}

// Client is the HTTP gateway.
//
// The bearer token is held in a memguard enclave and written only by the
// session manager; every outgoing request reads it at send time.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	onUnauthorized func()
	logger         *slog.Logger

	mu    sync.RWMutex
	token *memguard.Enclave
}

// New creates a new gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		onUnauthorized: cfg.OnUnauthorized,
		logger:         cfg.Logger,
	}, nil
}

// SetToken sets the bearer token attached to subsequent requests. The
// gateway's internal state is the only side effect; persisting the token is
// the session manager's job.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = memguard.NewEnclave([]byte(token))
}

// ClearToken removes the bearer token from subsequent requests.
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}

// HasToken reports whether a bearer token is currently set.
func (c *Client) HasToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil
}

// openToken returns the current token, or "" if none is set.
func (c *Client) openToken() (string, error) {
	c.mu.RLock()
	enclave := c.token
	c.mu.RUnlock()
	if enclave == nil {
		return "", nil
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening token enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Envelope is the response wrapper used by every endpoint.
type Envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Request performs one API call and returns the decoded envelope. Failures
// are always *Error values carrying a classified ErrorKind.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (*Envelope, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	token, err := c.openToken()
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.logger != nil {
		c.logger.Debug("api request", slog.String("method", method), slog.String("path", path))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyTransport(err)
		if c.logger != nil {
			c.logger.Warn("api transport failure",
				slog.String("method", method),
				slog.String("path", path),
				slog.String("kind", kind.String()))
		}
		return nil, &Error{Kind: kind, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetworkUnreachable, Message: err.Error()}
	}

	var env Envelope
	// Error bodies may not carry the envelope; a decode failure there is
	// not itself an error.
	envDecoded := json.Unmarshal(data, &env) == nil

	if c.logger != nil {
		c.logger.Debug("api response",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, &Error{Kind: KindUnauthorized, Status: resp.StatusCode, Message: serverMessage(env, envDecoded)}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Message: serverMessage(env, envDecoded)}
	}
	if !envDecoded {
		return nil, &Error{Kind: KindUnknown, Status: resp.StatusCode, Message: "malformed response envelope"}
	}
	if !env.Success {
		return nil, &Error{Kind: KindUnknown, Status: resp.StatusCode, Message: serverMessage(env, true)}
	}
	return &env, nil
}

func serverMessage(env Envelope, decoded bool) string {
	if !decoded {
		return ""
	}
	if env.Error != "" {
		return env.Error
	}
	return env.Message
}

// Do performs one API call and decodes the envelope's data field into T.
func Do[T any](ctx context.Context, c *Client, method, path string, body any, query url.Values) (T, error) {
	var zero T
	env, err := c.Request(ctx, method, path, body, query)
	if err != nil {
		return zero, err
	}
	if len(env.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return zero, fmt.Errorf("decoding response data: %w", err)
	}
	return v, nil
}
