package voltxt

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL = "https://api.voltxt.io/api"
	defaultTimeout = 30 * time.Second
	connectTimeout = 10 * time.Second

	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"

	apiKeyLength = 32
)

// Client talks to the Voltxt payment API. It is stateless and safe for
// concurrent use.
type Client struct {
	apiKey    string
	network   string
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	audit     AuditFunc
}

// AuditFunc receives a record of every API call. It must not be relied on for
// control flow; a panicking sink is swallowed.
type AuditFunc func(method, endpoint string, request any, response *Result)

// ConfigError reports invalid client credentials at construction time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("voltxt config: %s %s", e.Field, e.Reason)
}

type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent overrides the outbound User-Agent string.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithAudit installs an audit sink for API call records.
func WithAudit(fn AuditFunc) Option {
	return func(c *Client) { c.audit = fn }
}

// WithTimeout sets the request timeout, clamped to [5,120] seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.SetTimeout(d) }
}

func NewClient(apiKey, network string, opts ...Option) (*Client, error) {
	network = strings.ToLower(network)
	if apiKey == "" {
		return nil, &ConfigError{Field: "api_key", Reason: "is required and cannot be empty"}
	}
	if len(apiKey) != apiKeyLength {
		return nil, &ConfigError{Field: "api_key", Reason: fmt.Sprintf("must be exactly %d characters long", apiKeyLength)}
	}
	if network != NetworkTestnet && network != NetworkMainnet {
		return nil, &ConfigError{Field: "network", Reason: `must be either "testnet" or "mainnet"`}
	}

	c := &Client{
		apiKey:    apiKey,
		network:   network,
		baseURL:   defaultBaseURL,
		userAgent: "Go-Voltxt/1.0.0",
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		// Payment endpoints must never be silently redirected.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return c, nil
}

// SetTimeout adjusts the request timeout, clamped to [5,120] seconds.
func (c *Client) SetTimeout(d time.Duration) {
	if d < 5*time.Second {
		d = 5 * time.Second
	}
	if d > 120*time.Second {
		d = 120 * time.Second
	}
	c.timeout = d
	if c.http != nil {
		c.http.Timeout = d
	}
}

// Network returns the configured chain environment.
func (c *Client) Network() string { return c.network }

// TestConnection verifies the API key against the Voltxt backend. extra
// carries store metadata (store_name, platform, version).
func (c *Client) TestConnection(ctx context.Context, extra map[string]any) *Result {
	payload := c.basePayload()
	for k, v := range extra {
		payload[k] = v
	}
	res := c.makeRequest(ctx, http.MethodPost, "/plugin/test-connection", payload)
	c.logCall(http.MethodPost, "/plugin/test-connection", payload, res)
	return res
}

// InitiatePayment creates a dynamic payment session.
func (c *Client) InitiatePayment(ctx context.Context, data PaymentData) *Result {
	if data.ExpiryHours < 1 || data.ExpiryHours > 168 {
		return &Result{
			Success:   false,
			Error:     fmt.Sprintf("expiry_hours must be between 1 and 168, got %d", data.ExpiryHours),
			ErrorCode: "INVALID_EXPIRY_HOURS",
		}
	}
	payload := c.basePayload()
	for k, v := range data.payload() {
		payload[k] = v
	}
	res := c.makeRequest(ctx, http.MethodPost, "/dynamic-payment/initiate", payload)
	c.logCall(http.MethodPost, "/dynamic-payment/initiate", payload, res)
	return res
}

// GetPaymentStatus fetches the current state of a payment session.
func (c *Client) GetPaymentStatus(ctx context.Context, sessionID string) *Result {
	endpoint := "/dynamic-payment/" + url.PathEscape(sessionID) + "/status"
	query := url.Values{
		"api_key": {c.apiKey},
		"network": {c.network},
	}
	res := c.makeRequest(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	c.logCall(http.MethodGet, endpoint, map[string]any{"session_id": sessionID}, res)
	return res
}

// CancelPaymentSession cancels a pending payment session.
func (c *Client) CancelPaymentSession(ctx context.Context, sessionID string) *Result {
	endpoint := "/dynamic-payment/" + url.PathEscape(sessionID) + "/cancel"
	payload := map[string]any{
		"api_key": c.apiKey,
		"network": c.network,
	}
	res := c.makeRequest(ctx, http.MethodPost, endpoint, payload)
	c.logCall(http.MethodPost, endpoint, payload, res)
	return res
}

func (c *Client) basePayload() map[string]any {
	return map[string]any{
		"api_key":    c.apiKey,
		"network":    c.network,
		"platform":   "go",
		"user_agent": c.userAgent,
	}
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, payload map[string]any) *Result {
	var body io.Reader
	if method == http.MethodPost && payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return &Result{Success: false, Error: "failed to encode request: " + err.Error(), ErrorCode: "REQUEST_ENCODING_ERROR"}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return &Result{Success: false, Error: "failed to build request: " + err.Error(), ErrorCode: "REQUEST_BUILD_ERROR"}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Platform", "go")
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return &Result{
			Success:   false,
			Error:     transportErrorMessage(err),
			ErrorCode: transportErrorCode(err),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{
			Success:   false,
			Error:     transportErrorMessage(err),
			ErrorCode: transportErrorCode(err),
		}
	}
	return processResponse(raw, resp.StatusCode)
}

func processResponse(raw []byte, status int) *Result {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return &Result{
			Success:    false,
			Error:      "Invalid JSON response from payment gateway: " + err.Error(),
			ErrorCode:  "INVALID_JSON_RESPONSE",
			HTTPStatus: status,
			RawBody:    truncate(string(raw), 500),
		}
	}

	if status < 200 || status >= 300 {
		if msg, ok := decoded["error"].(string); ok && msg != "" {
			return &Result{
				Success:    false,
				Error:      msg,
				ErrorCode:  stringOr(decoded, "error_code", "API_HTTP_ERROR"),
				HTTPStatus: status,
				Data:       decoded,
			}
		}
		return &Result{
			Success:    false,
			Error:      httpErrorMessage(status),
			ErrorCode:  fmt.Sprintf("HTTP_ERROR_%d", status),
			HTTPStatus: status,
		}
	}

	if ok, present := decoded["success"].(bool); present && !ok {
		return &Result{
			Success:    false,
			Error:      stringOr(decoded, "error", "Payment gateway error (API reported failure)"),
			ErrorCode:  stringOr(decoded, "error_code", "API_REPORTED_FAILURE"),
			HTTPStatus: status,
			Data:       decoded,
		}
	}

	data := decoded
	if d, ok := decoded["data"].(map[string]any); ok {
		data = d
	}
	return &Result{
		Success:    true,
		Data:       data,
		Message:    stringOr(decoded, "message", "Request successful"),
		HTTPStatus: status,
	}
}

func transportErrorMessage(err error) string {
	switch transportErrorCode(err) {
	case "DNS_RESOLUTION_FAILED":
		return "Unable to connect to the payment gateway server. Please check your internet connection or DNS settings."
	case "CONNECTION_TIMEOUT":
		return "Connection to the payment gateway timed out. This might be a temporary network issue. Please try again."
	case "SSL_ERROR":
		return "Secure connection to payment gateway failed. Please contact support."
	default:
		return "A network connection error occurred. Please try again or contact support if the issue persists."
	}
}

func transportErrorCode(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS_RESOLUTION_FAILED"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "CONNECTION_TIMEOUT"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "CONNECTION_TIMEOUT"
	}
	var certErr *tls.CertificateVerificationError
	var recErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &recErr) || strings.Contains(err.Error(), "tls:") {
		return "SSL_ERROR"
	}
	return "NETWORK_ERROR"
}

func httpErrorMessage(status int) string {
	messages := map[int]string{
		400: "Bad request to payment gateway (invalid data)",
		401: "Invalid API credentials (Unauthorized)",
		403: "Access denied by payment gateway (Forbidden)",
		404: "Payment gateway endpoint not found",
		429: "Too many requests to payment gateway (Rate Limit Exceeded)",
		500: "Payment gateway internal server error",
		502: "Payment gateway temporarily unavailable (Bad Gateway)",
		503: "Payment gateway is currently under maintenance or overloaded",
		504: "Payment gateway request timed out",
	}
	if msg, ok := messages[status]; ok {
		return msg
	}
	return fmt.Sprintf("An unexpected payment gateway error occurred (HTTP %d)", status)
}

func (c *Client) logCall(method, endpoint string, request any, response *Result) {
	if c.audit == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	c.audit(method, endpoint, request, response)
}

func stringOr(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
