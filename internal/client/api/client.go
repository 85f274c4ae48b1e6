// Package api implements the HTTP client for the TaskHub server.
//
// Every outbound request goes through Client.Do: it attaches the stored
// access token as a bearer credential, and when the server answers 401 it
// renews the token through a single-flight refresh call and replays the
// original request exactly once with the fresh token. Renewal failure is
// terminal: the credential store is cleared and the configured expiry hook
// fires so the application can drop to its unauthenticated entry point.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/mkartavenko/taskhub/internal/client/creds"
	"github.com/mkartavenko/taskhub/internal/logging"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL string
	httpc   *http.Client
	store   creds.Store
	log     logging.Logger

	refreshGroup singleflight.Group
	onExpired    func()
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (timeouts, transport).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(baseURL string, store creds.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: defaultTimeout},
		store:   store,
		log:     logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnAuthExpired registers fn to run after a terminally failed renewal.
// It fires once per failed request, so fn must be idempotent.
func (c *Client) OnAuthExpired(fn func()) {
	c.onExpired = fn
}

// Request describes one outbound call. Body, when non-nil, is marshalled
// to JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// envelope is the server's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Do sends req and decodes the response payload into out (which may be nil
// for calls without a useful body).
//
// A 401 triggers one renewal and one replay; any other failure is returned
// unchanged. Transport errors wrap ErrNetwork. Server rejections come back
// as *APIError with the server message intact.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	pair, err := c.store.Get(ctx)
	if err != nil {
		// unreachable storage reads as logged out, the request proceeds
		// unauthenticated
		c.log.Warn(ctx, "credential store unavailable", "error", err)
		pair = creds.Pair{}
	}

	status, body, err := c.send(ctx, req, pair.AccessToken)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		token, rerr := c.renew(ctx, pair)
		if rerr != nil {
			c.expire(ctx)
			if errors.Is(rerr, ErrNoRefreshToken) {
				// renewal was never attempted; the server's original
				// rejection (and its message) is the real answer
				return decodeResponse(status, body, out)
			}
			if errors.Is(rerr, ErrAuthExpired) {
				return rerr
			}
			return fmt.Errorf("%w: %w", ErrAuthExpired, rerr)
		}

		// one replay with the fresh token; a second 401 surfaces as a
		// plain APIError below
		status, body, err = c.send(ctx, req, token)
		if err != nil {
			return err
		}
	}

	return decodeResponse(status, body, out)
}

// send performs one HTTP round-trip. It never inspects the status code
// beyond returning it; the 401 handling lives in Do.
func (c *Client) send(ctx context.Context, r Request, token string) (int, []byte, error) {
	var reqBody io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	u := c.baseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, reqBody)
	if err != nil {
		return 0, nil, err
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Debug(ctx, "request failed", "method", r.Method, "path", r.Path, "request_id", requestID, "error", err)
		return 0, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	c.log.Debug(ctx, "request completed",
		"method", r.Method, "path", r.Path, "status", resp.StatusCode, "request_id", requestID)

	return resp.StatusCode, data, nil
}

// expire tears the session down after a failed renewal: credentials first,
// then the application hook, so observers never see a half-cleared state.
func (c *Client) expire(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Error(ctx, "failed to clear credentials", "error", err)
	}
	if c.onExpired != nil {
		c.onExpired()
	}
}

func decodeResponse(status int, body []byte, out any) error {
	var env envelope
	// tolerate empty or non-JSON bodies; Message just stays empty
	_ = json.Unmarshal(body, &env)

	if status < 200 || status >= 300 {
		return &APIError{Status: status, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response payload: %w", err)
	}
	return nil
}
