package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

// ErrorKind classifies a failed Send.
type ErrorKind int

const (
	// ProviderError is a non-2xx response carrying the vendor's message.
	ProviderError ErrorKind = iota + 1
	// MalformedResponse is a 2xx response without usable text.
	MalformedResponse
	// NetworkError is a transport failure: DNS, refused connection, timeout.
	NetworkError
)

func (k ErrorKind) String() string {
	switch k {
	case ProviderError:
		return "provider error"
	case MalformedResponse:
		return "malformed response"
	case NetworkError:
		return "network error"
	}
	return "unknown error"
}

// Error is returned by Client.Send for every failure that reached (or tried
// to reach) the provider. Detail never contains the api key.
type Error struct {
	Kind       ErrorKind
	Provider   provider.Kind
	Detail     string
	StatusCode int
	// RequestID is the vendor's request id header, when present.
	RequestID  string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status=%d", e.StatusCode)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&sb, " request_id=%s", e.RequestID)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Hint suggests what the user can do about the failure.
func (e *Error) Hint() string {
	switch e.Kind {
	case NetworkError:
		return "Check your connection and try again."
	case MalformedResponse:
		return "The provider answered in an unexpected format; check the model name."
	}
	switch sc := e.StatusCode; {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return "The API key was rejected. Use /addapi to update it."
	case sc == http.StatusTooManyRequests:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("Rate limited: wait about %ds before retrying.", int(e.RetryAfter.Seconds()))
		}
		return "Rate limited: wait a moment before retrying."
	case sc == http.StatusNotFound || containsAllFold(e.Detail, "model", "not", "found"):
		return "The model may not exist for this provider. Use /addapi to change it."
	case containsAnyFold(e.Detail, "quota", "billing", "insufficient"):
		return "Your account quota or billing limit was reached."
	case sc >= 500 && sc <= 599:
		return "The provider is having problems; try again later."
	}
	return ""
}

// describeNetErr turns a transport error into a short message.
func describeNetErr(err error, timeout time.Duration) string {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var nerr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &nerr) && nerr.Timeout():
		if timeout > 0 {
			return fmt.Sprintf("request timed out after %s", timeout)
		}
		return "request timed out"
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("cannot resolve host %s", dnsErr.Name)
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Sprintf("cannot connect: %v", opErr.Err)
	}
	return err.Error()
}

// parseRetryAfter interprets a Retry-After header value as seconds or HTTP date.
func parseRetryAfter(v string) (time.Duration, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		if s < 0 {
			s = 0
		}
		return time.Duration(s) * time.Second, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d.Truncate(time.Second), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	keys := []string{"X-Request-Id", "Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"}
	for _, k := range keys {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
