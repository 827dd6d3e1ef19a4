// Package backend is the HTTP client for the managed backend: the identity
// API (signup) and the SQL RPC surface the provisioning flow is built on.
//
// The RPC surface evolved across backend releases, so callers never assume a
// function name resolves; RpcFirstAvailable probes an ordered capability
// table and reports unresolvable names with a typed error instead of leaking
// transport details upward.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mesa/internal/platform/config"
)

// Client talks to one backend deployment. It is cheap to construct and is
// built fresh per registration call chain; nothing here is shared mutable
// state.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	jwtSecret  string
	http       *http.Client
	logger     *slog.Logger
}

// Factory builds a fresh Client per call chain. The orchestrator takes a
// Factory, not a Client, so no request ever observes another request's
// connection state.
type Factory func() *Client

// NewFactory returns a Factory over the given configuration.
func NewFactory(cfg config.BackendConfig, logger *slog.Logger) Factory {
	return func() *Client {
		return New(cfg, logger)
	}
}

// New creates a backend client.
func New(cfg config.BackendConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		jwtSecret:  cfg.JWTSecret,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// bearer resolves the authorization token: a static service key when
// configured, otherwise a token minted from the shared JWT secret.
func (c *Client) bearer() (string, error) {
	if c.serviceKey != "" {
		return c.serviceKey, nil
	}
	if c.jwtSecret != "" {
		return mintServiceToken(c.jwtSecret)
	}
	return c.anonKey, nil
}

// SignupRequest creates an identity account. Data travels as opaque profile
// metadata attached to the identity.
type SignupRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// signupResponse covers both response shapes the identity API has shipped:
// the user object at top level or nested under "user".
type signupResponse struct {
	ID   string `json:"id"`
	User *struct {
		ID string `json:"id"`
	} `json:"user"`
}

// apiError is the union of the identity API and PostgREST error bodies.
type apiError struct {
	Code      json.RawMessage `json:"code"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	Msg       string          `json:"msg"`
	Hint      string          `json:"hint"`
	Details   string          `json:"details"`
}

func (e *apiError) codeString() string {
	var s string
	if json.Unmarshal(e.Code, &s) == nil {
		return s
	}
	var n int
	if json.Unmarshal(e.Code, &n) == nil {
		return fmt.Sprintf("%d", n)
	}
	return ""
}

func (e *apiError) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

// Signup creates an identity account and returns the new user id.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (string, error) {
	body, status, err := c.post(ctx, c.baseURL+"/auth/v1/signup", req)
	if err != nil {
		return "", err
	}

	if status >= 400 {
		var ae apiError
		_ = json.Unmarshal(body, &ae)
		kind := classifySignup(status, ae.ErrorCode, ae.message())
		return "", &Error{
			Kind:    kind,
			Code:    ae.ErrorCode,
			Message: ae.message(),
			Status:  status,
		}
	}

	var resp signupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &Error{Kind: KindInternal, Message: "malformed signup response", Err: err}
	}
	if resp.ID != "" {
		return resp.ID, nil
	}
	if resp.User != nil && resp.User.ID != "" {
		return resp.User.ID, nil
	}
	return "", nil
}

// Rpc invokes a single SQL function by name.
func (c *Client) Rpc(ctx context.Context, fn string, params map[string]any) (json.RawMessage, error) {
	body, status, err := c.post(ctx, c.baseURL+"/rest/v1/rpc/"+fn, params)
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		var ae apiError
		_ = json.Unmarshal(body, &ae)
		code := ae.codeString()
		kind := classifyRPC(status, code, ae.message())
		return nil, &Error{
			Kind:    kind,
			Code:    code,
			Message: ae.message(),
			Status:  status,
		}
	}

	return json.RawMessage(body), nil
}

// RpcFirstAvailable probes an ordered list of candidate function names and
// invokes the first one the backend resolves. It returns the function that
// answered alongside its result. Only "function not found" advances the
// probe; any other failure belongs to the function that raised it and is
// returned as-is.
func (c *Client) RpcFirstAvailable(ctx context.Context, fns []string, params map[string]any) (json.RawMessage, string, error) {
	if len(fns) == 0 {
		return nil, "", &Error{Kind: KindFunctionNotFound, Message: "no candidate functions"}
	}

	var lastErr error
	for _, fn := range fns {
		result, err := c.Rpc(ctx, fn, params)
		if err == nil {
			return result, fn, nil
		}
		if !IsFunctionNotFound(err) {
			return nil, fn, err
		}
		c.logger.DebugContext(ctx, "rpc function not deployed, trying next candidate",
			"fn", fn,
		)
		lastErr = err
	}
	return nil, "", lastErr
}

// Health checks backend reachability through the identity API health probe.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend health returned %d", resp.StatusCode)
	}
	return nil
}

// post runs one JSON POST and hands back the raw body and status. Transport
// failures are normalized to KindUnavailable so callers branch on Kind only.
func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, &Error{Kind: KindInternal, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, &Error{Kind: KindInternal, Message: "build request", Err: err}
	}

	token, err := c.bearer()
	if err != nil {
		return nil, 0, &Error{Kind: KindInternal, Message: "resolve credentials", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &Error{Kind: KindUnavailable, Message: "backend unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, &Error{Kind: KindUnavailable, Message: "read response", Err: err}
	}

	return body, resp.StatusCode, nil
}
