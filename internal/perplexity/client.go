// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package perplexity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the Perplexity API.
const (
	// DefaultBaseURL is the base URL for the Perplexity API.
	DefaultBaseURL = "https://api.perplexity.ai"

	// ChatCompletionsPath is the only endpoint the client talks to.
	ChatCompletionsPath = "/chat/completions"

	// DefaultTimeout is the default timeout for one request.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// DefaultModel is used when no model is configured.
	DefaultModel = "sonar-pro"

	// DefaultMaxTokens and DefaultTemperature match the CLI defaults.
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.2
)

// System prompts for the two request presets.
const (
	SearchSystemPrompt = "You are a helpful AI assistant that provides accurate and up-to-date information."
	ChatSystemPrompt   = "You are a helpful AI assistant."
)

// Models lists the model names offered in pickers. Names outside the
// list are still sent as-is.
var Models = []string{
	"sonar-pro",
	"sonar",
	"sonar-reasoning",
	"llama-3.1-sonar-small-128k-chat",
	"llama-3.1-sonar-large-128k-chat",
	"llama-3.1-sonar-huge-128k-chat",
}

// KnownModel reports whether name is in Models.
func KnownModel(name string) bool {
	for _, m := range Models {
		if m == name {
			return true
		}
	}
	return false
}

// sharedTransport pools connections across clients.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          10,
	MaxIdleConnsPerHost:   4,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoAPIKey is returned when a request is attempted without a key.
	ErrNoAPIKey = errors.New("no API key provided")

	// ErrUnauthorized is wrapped by 401 responses.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrPaymentRequired is wrapped by 402 responses.
	ErrPaymentRequired = errors.New("insufficient credits")

	// ErrNotFound is wrapped by 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is wrapped by 429 responses.
	ErrRateLimited = errors.New("rate limited")

	// ErrServer is wrapped by 5xx responses.
	ErrServer = errors.New("server error")

	// ErrEmptyPrompt is returned for blank queries.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize.
	ErrResponseTooLarge = errors.New("response too large")
)

// APIError is a non-200 response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

// Error formats the error as "HTTP <code>: <message>".
func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code to one of the package sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusPaymentRequired:
		return ErrPaymentRequired
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return nil
	}
}

// apiErrorResponse is the error body the API sends.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client calls the Perplexity chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client with default settings.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

// WithBaseURL sets a custom API base URL.
func (c *Client) WithBaseURL(url string) *Client {
	if url != "" {
		c.baseURL = strings.TrimRight(url, "/")
	}
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithRateLimit allows at most perMinute requests per minute. Zero or
// less removes the limit.
func (c *Client) WithRateLimit(perMinute int) *Client {
	if perMinute <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	return c
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Endpoint returns the full chat completions URL.
func (c *Client) Endpoint() string {
	return c.baseURL + ChatCompletionsPath
}

// KeyFingerprint returns a short SHA-256 fingerprint of the key for logs.
func (c *Client) KeyFingerprint() string {
	return Fingerprint(c.apiKey)
}

// Fingerprint returns the first 8 hex characters of the key's SHA-256.
func Fingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// REQUESTS
// =============================================================================

// Options are the per-request tunables.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultOptions returns the CLI defaults.
func DefaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

func (o Options) request(messages []Message) *ChatRequest {
	model := o.Model
	if model == "" {
		model = DefaultModel
	}
	return &ChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
		Stream:      false,
	}
}

// Search sends query with the search system prompt.
func (c *Client) Search(ctx context.Context, query string, opts Options) (*ChatResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyPrompt
	}
	return c.ChatCompletion(ctx, opts.request([]Message{
		NewSystemMessage(SearchSystemPrompt),
		NewUserMessage(query),
	}))
}

// Chat sends message with the chat system prompt.
func (c *Client) Chat(ctx context.Context, message string, opts Options) (*ChatResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyPrompt
	}
	return c.ChatCompletion(ctx, opts.request([]Message{
		NewSystemMessage(ChatSystemPrompt),
		NewUserMessage(message),
	}))
}

// Converse sends a multi-turn history (user and assistant turns, oldest
// first) with the chat system prompt prepended.
func (c *Client) Converse(ctx context.Context, history []Message, opts Options) (*ChatResponse, error) {
	if len(history) == 0 {
		return nil, ErrEmptyPrompt
	}
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, NewSystemMessage(ChatSystemPrompt))
	msgs = append(msgs, history...)
	return c.ChatCompletion(ctx, opts.request(msgs))
}

// ChatCompletion performs one request and parses the response.
func (c *Client) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	raw, err := c.Probe(ctx, req)
	if err != nil {
		return nil, err
	}
	if raw.StatusCode != http.StatusOK {
		return nil, parseError(raw.StatusCode, raw.Body)
	}

	var resp ChatResponse
	if err := json.Unmarshal(raw.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	resp.Raw = raw.Body
	return &resp, nil
}

// RawResponse is an unparsed exchange with the API.
type RawResponse struct {
	URL        string
	Payload    []byte
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Probe sends req and returns the response without interpreting the
// status code.
func (c *Client) Probe(ctx context.Context, req *ChatRequest) (*RawResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.Endpoint()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	log.Printf("perplexity: POST %s model=%s key=%s", ChatCompletionsPath, req.Model, c.KeyFingerprint())
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	httpReq.Header.Del("Authorization")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)
	log.Printf("perplexity: %d (%v)", resp.StatusCode, duration)

	return &RawResponse{
		URL:        url,
		Payload:    payload,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		Duration:   duration,
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// readResponse reads at most MaxResponseSize bytes of the body.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

// parseError builds an APIError from a non-200 response. The message is
// error.message from a JSON body, otherwise the body text.
func parseError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Type = parsed.Error.Type
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
