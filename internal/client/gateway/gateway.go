// Package gateway is the single path for client-to-server calls. It
// attaches the bearer credential, unwraps the response envelope, maps
// failures onto a small error taxonomy and performs the one
// refresh-and-retry permitted after a 401.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Authorizer supplies the current access token and performs the
// single-flight refresh. Implemented by the session manager.
type Authorizer interface {
	AccessToken(ctx context.Context) (string, bool)
	Refresh(ctx context.Context) error
}

// Kind classifies a request failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindForbidden
	KindNotFound
	KindNetwork
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Error is the uniform failure shape surfaced by every gateway call.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Client issues envelope-aware HTTP requests against one base URL.
type Client struct {
	baseURL string
	http    *http.Client
	auth    Authorizer
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the coarse per-request timeout. Exceeding it surfaces
// as a network failure.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAuthorizer wires the session manager in after construction. Until it
// is set, requests go out unauthenticated and 401s are not retried.
func (c *Client) SetAuthorizer(a Authorizer) { c.auth = a }

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do runs one request, retrying exactly once after a 401 that a successful
// refresh can repair. Login and refresh calls are never retried; their 401
// means the credentials themselves are bad.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Message: "encode request: " + err.Error()}
		}
	}

	// One idempotency key per logical call, shared by the retry so the
	// server can deduplicate the pair.
	var idemKey string
	if method == http.MethodPost && !authExempt(path) {
		idemKey = uuid.NewString()
	}

	err := c.once(ctx, method, path, payload, idemKey, out)
	gwErr, ok := err.(*Error)
	if !ok || gwErr == nil {
		return err
	}
	if gwErr.Kind != KindAuth || authExempt(path) || c.auth == nil {
		return err
	}
	if refreshErr := c.auth.Refresh(ctx); refreshErr != nil {
		// Session is already torn down; the caller sees the original 401.
		return err
	}
	return c.once(ctx, method, path, payload, idemKey, out)
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, idemKey string, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "build request: " + err.Error()}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	c.attachToken(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "connection failed", Detail: err.Error()}
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

func (c *Client) attachToken(req *http.Request) {
	if c.auth == nil {
		return
	}
	if token, ok := c.auth.AccessToken(req.Context()); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Upload sends a file as multipart form data. The whole payload is
// buffered so the 401 retry inside do() is not available here; uploads
// against an expired token surface the 401 directly.
func (c *Client) Upload(ctx context.Context, path, field, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return &Error{Kind: KindValidation, Message: "build upload: " + err.Error()}
	}
	if _, err := io.Copy(part, r); err != nil {
		return &Error{Kind: KindValidation, Message: "read upload: " + err.Error()}
	}
	if err := mw.Close(); err != nil {
		return &Error{Kind: KindValidation, Message: "finish upload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.attachToken(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "connection failed", Detail: err.Error()}
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

// Download streams a raw (non-enveloped) response body into w.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "build request: " + err.Error()}
	}
	c.attachToken(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "connection failed", Detail: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeEnvelope(resp, nil)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return &Error{Kind: KindNetwork, Message: "read download", Detail: err.Error()}
	}
	return nil
}

type successEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

type failureEnvelope struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func decodeEnvelope(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "read response", Detail: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		var env successEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return &Error{Kind: KindServer, Code: resp.StatusCode, Message: "malformed response", Detail: err.Error()}
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Error{Kind: KindServer, Code: resp.StatusCode, Message: "malformed response data", Detail: err.Error()}
		}
		return nil
	}

	var fail failureEnvelope
	_ = json.Unmarshal(raw, &fail)
	if fail.Message == "" {
		fail.Message = http.StatusText(resp.StatusCode)
	}
	return &Error{
		Kind:    kindFromStatus(resp.StatusCode),
		Code:    resp.StatusCode,
		Message: fail.Message,
		Detail:  fail.Detail,
	}
}

func kindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

func authExempt(path string) bool {
	return strings.Contains(path, "/auth/login") || strings.Contains(path, "/auth/refresh")
}
