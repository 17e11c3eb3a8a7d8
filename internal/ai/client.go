package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/termchat-cli/internal/credential"
	"github.com/KaramelBytes/termchat-cli/internal/provider"
	"github.com/KaramelBytes/termchat-cli/internal/utils"
)

const (
	// DefaultTimeout bounds every request regardless of provider.
	DefaultTimeout     = 30 * time.Second
	defaultMaxTokens   = 4096
	defaultTemperature = 0.7

	maxResponseBytes = 4 << 20
	maxErrorDetail   = 512
)

// ErrEmptyTranscript is returned when there is nothing to send.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Client sends a transcript to whichever provider a credential names and
// normalizes the answer. It performs no retries.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	log        *zap.Logger
	params     params
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is
// overwritten with the client timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMaxTokens sets the completion budget for schemas that take one.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.params.MaxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature for schemas that take one.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		if t >= 0 {
			c.params.Temperature = t
		}
	}
}

// NewClient returns a client whose requests time out after timeout
// (DefaultTimeout when <= 0).
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		timeout: timeout,
		log:     zap.NewNop(),
		params:  params{MaxTokens: defaultMaxTokens, Temperature: defaultTemperature},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.httpClient.Timeout = c.timeout
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Send issues one request for transcript using cred and returns the
// generated text. Failures are *Error values, except for invalid input
// (unknown provider, empty key, empty transcript). transcript is not modified.
func (c *Client) Send(ctx context.Context, cred credential.Credential, transcript []Message) (string, error) {
	d, ok := cred.Descriptor()
	if !ok {
		return "", fmt.Errorf("%w: kind %d", provider.ErrUnknownKind, uint8(cred.Provider))
	}
	if cred.APIKey.Empty() {
		return "", credential.ErrEmptyAPIKey
	}
	if len(transcript) == 0 {
		return "", ErrEmptyTranscript
	}
	model := d.Model(cred.Model)

	payload, err := buildBody(d.Schema, model, slices.Clone(transcript), c.params)
	if err != nil {
		return "", err
	}
	endpoint := d.URL(cred.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %s", cred.APIKey.Redact(err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(d.AuthHeader, d.AuthPrefix+cred.APIKey.Reveal())
	for k, v := range d.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	log := c.log.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("provider", d.ID),
		zap.String("model", model),
		zap.Int("turns", len(transcript)),
	)
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		e := &Error{
			Kind:     NetworkError,
			Provider: d.Kind,
			Detail:   cred.APIKey.Redact(describeNetErr(err, c.timeout)),
			Err:      err,
		}
		log.Warn("chat request failed", zap.Duration("latency", time.Since(start)), zap.String("error", e.Detail))
		return "", e
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	requestID := extractRequestID(resp)
	log = log.With(
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.String("vendor_request_id", requestID),
	)
	if err != nil {
		e := &Error{
			Kind:       NetworkError,
			Provider:   d.Kind,
			Detail:     cred.APIKey.Redact("read response: " + describeNetErr(err, c.timeout)),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Err:        err,
		}
		log.Warn("chat response read failed", zap.String("error", e.Detail))
		return "", e
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{
			Kind:       ProviderError,
			Provider:   d.Kind,
			Detail:     cred.APIKey.Redact(errorDetail(resp, body, d.ErrorPaths)),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if wait, err := parseRetryAfter(ra); err == nil {
				e.RetryAfter = wait
			}
		}
		log.Warn("chat request rejected", zap.String("error", e.Detail))
		return "", e
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		log.Warn("chat response undecodable", zap.Error(err))
		return "", &Error{
			Kind:       MalformedResponse,
			Provider:   d.Kind,
			Detail:     fmt.Sprintf("decode response: %v", err),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Err:        err,
		}
	}
	text, ok := firstString(doc, d.ResponsePaths)
	if !ok {
		detail := fmt.Sprintf("no text at %s", d.ResponsePaths[0])
		if msg, found := firstString(doc, d.ErrorPaths); found {
			detail += ": " + msg
		}
		log.Warn("chat response without text")
		return "", &Error{
			Kind:       MalformedResponse,
			Provider:   d.Kind,
			Detail:     cred.APIKey.Redact(detail),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
		}
	}
	log.Debug("chat request completed", zap.Int("reply_chars", len(text)))
	return text, nil
}

// errorDetail extracts the vendor message from an error body, falling back
// to the truncated raw body and finally to the status text.
func errorDetail(resp *http.Response, body []byte, paths []provider.Path) string {
	var doc any
	if err := json.Unmarshal(body, &doc); err == nil {
		if msg, ok := firstString(doc, paths); ok {
			return msg
		}
	}
	if raw := string(bytes.TrimSpace(body)); raw != "" {
		return utils.Truncate(raw, maxErrorDetail)
	}
	if txt := http.StatusText(resp.StatusCode); txt != "" {
		return txt
	}
	return resp.Status
}
