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
	"strconv"
	"time"

	"github.com/obfx/themecheck/internal/httputil"
)

// StatusOK is the status_code the theme check API declares on success.
const StatusOK = "200"

const maxResponseBytes = 1 << 20

// DefaultTimeout bounds a single check request.
const DefaultTimeout = 45 * time.Second

type Client struct {
	endpoint     string
	packageField string
	httpClient   *http.Client
	retry        httputil.RetryConfig
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithPackageField sets the form field name carrying the package id.
// Legacy endpoints expect "theme".
func WithPackageField(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.packageField = name
		}
	}
}

// WithRetry overrides the retry policy. The default makes a single attempt.
func WithRetry(cfg httputil.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is kept
// unless WithTimeout is applied afterwards.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:     endpoint,
		packageField: "package",
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		retry:        httputil.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL checks are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type CheckRequest struct {
	Package        string
	CurrentVersion string
	NextVersion    string
}

// Form encodes the request the way the theme check endpoint expects it.
func (r CheckRequest) Form(packageField string) url.Values {
	v := url.Values{}
	v.Set(packageField, r.Package)
	v.Set("current_ver", r.CurrentVersion)
	v.Set("next_ver", r.NextVersion)
	return v
}

// StatusCode is the status declared inside the response body. The API
// sends it as a string but numbers are accepted too.
type StatusCode string

func (s *StatusCode) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = StatusCode(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("status_code must be a string or number: %w", err)
	}
	*s = StatusCode(n.String())
	return nil
}

type CheckData struct {
	GlobalDiff *float64 `json:"global_diff,omitempty"`
	Gallery    string   `json:"gallery,omitempty"`
}

type CheckResponse struct {
	StatusCode StatusCode `json:"status_code"`
	Data       *CheckData `json:"data,omitempty"`

	// HTTPStatus is the transport-level status; the declared StatusCode is
	// what decides success.
	HTTPStatus int             `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

// OK reports whether the response declares success.
func (r *CheckResponse) OK() bool {
	return r != nil && string(r.StatusCode) == StatusOK
}

// NetworkError wraps transport failures, including timeouts.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "theme check request failed: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a timeout.
func (e *NetworkError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) {
		return t.Timeout()
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// MalformedResponseError means the body could not be decoded or lacks
// required fields.
type MalformedResponseError struct {
	HTTPStatus int
	Reason     string
	Err        error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed theme check response (http " + strconv.Itoa(e.HTTPStatus) + "): " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Check posts one theme check request. A decodable response is returned even
// when its declared status is not StatusOK; callers decide what to do with it.
func (c *Client) Check(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	body := []byte(req.Form(c.packageField).Encode())
	headers := http.Header{}
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Set("Accept", "application/json")

	resp, err := httputil.Do(ctx, c.httpClient, http.MethodPost, c.endpoint, body, headers, c.retry)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}

	return decodeCheckResponse(resp.StatusCode, raw)
}

func decodeCheckResponse(httpStatus int, raw []byte) (*CheckResponse, error) {
	var out CheckResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &MalformedResponseError{HTTPStatus: httpStatus, Reason: "invalid JSON", Err: err}
	}
	if out.StatusCode == "" {
		return nil, &MalformedResponseError{HTTPStatus: httpStatus, Reason: "missing status_code"}
	}
	if out.OK() && (out.Data == nil || out.Data.GlobalDiff == nil) {
		return nil, &MalformedResponseError{HTTPStatus: httpStatus, Reason: "missing data.global_diff"}
	}

	out.HTTPStatus = httpStatus
	out.Raw = json.RawMessage(raw)
	return &out, nil
}
