package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/termchat-cli/internal/credential"
	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	t.Cleanup(s.Close)
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// captured is what a fake vendor saw.
type captured struct {
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

func fakeVendor(t *testing.T, status int, respBody string, seen *captured) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if seen != nil {
			seen.Path = r.URL.Path
			seen.Query = r.URL.RawQuery
			seen.Header = r.Header.Clone()
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &seen.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
}

func cred(k provider.Kind, baseURL string) credential.Credential {
	return credential.Credential{
		Provider: k,
		APIKey:   credential.NewSecret("sk-test-secret-key"),
		BaseURL:  baseURL,
	}
}

var transcript = []Message{
	{Role: RoleUser, Content: "first"},
	{Role: RoleAssistant, Content: "second"},
	{Role: RoleUser, Content: "third"},
}

func sendCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func requireAIError(t *testing.T, err error) *Error {
	t.Helper()
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.NotContains(t, err.Error(), "sk-test-secret-key")
	assert.NotContains(t, e.Detail, "sk-test-secret-key")
	return e
}

func TestSendOpenAIChat(t *testing.T) {
	var seen captured
	srv := fakeVendor(t, 200, `{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`, &seen)

	in := append([]Message(nil), transcript...)
	out, err := NewClient(2*time.Second).Send(sendCtx(t), cred(provider.OpenAI, srv.URL), in)
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	assert.Equal(t, "/chat/completions", seen.Path)
	assert.Equal(t, "Bearer sk-test-secret-key", seen.Header.Get("Authorization"))
	assert.Equal(t, "gpt-3.5-turbo", seen.Body["model"])
	msgs := seen.Body["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, map[string]any{"role": "user", "content": "first"}, msgs[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "third"}, msgs[2])
	assert.Equal(t, transcript, in, "transcript must not be modified")
}

func TestSendOpenRouterAddsAttributionHeaders(t *testing.T) {
	var seen captured
	srv := fakeVendor(t, 200, `{"choices":[{"message":{"content":"ok"}}]}`, &seen)

	_, err := NewClient(2*time.Second).Send(sendCtx(t), cred(provider.OpenRouter, srv.URL), transcript)
	require.NoError(t, err)
	assert.Equal(t, "TermChat", seen.Header.Get("X-Title"))
	assert.NotEmpty(t, seen.Header.Get("HTTP-Referer"))
}

func TestSendGeminiConcatenatesInOrder(t *testing.T) {
	var seen captured
	srv := fakeVendor(t, 200, `{"candidates":[{"content":{"parts":[{"text":"Gemini response"}]}}]}`, &seen)

	c := cred(provider.Google, srv.URL)
	c.Model = "gemini-pro"
	out, err := NewClient(2*time.Second).Send(sendCtx(t), c, transcript)
	require.NoError(t, err)
	assert.Equal(t, "Gemini response", out)

	assert.Equal(t, "/models/gemini-pro:generateContent", seen.Path)
	assert.Empty(t, seen.Query, "the key must not travel in the URL")
	assert.Equal(t, "sk-test-secret-key", seen.Header.Get("x-goog-api-key"))
	contents := seen.Body["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "first\n\nsecond\n\nthird", parts[0].(map[string]any)["text"])
}

func TestSendAnthropicMessages(t *testing.T) {
	var seen captured
	srv := fakeVendor(t, 200, `{"content":[{"type":"text","text":"claude says hi"}]}`, &seen)

	out, err := NewClient(2*time.Second, WithMaxTokens(1024)).Send(sendCtx(t), cred(provider.Anthropic, srv.URL), transcript)
	require.NoError(t, err)
	assert.Equal(t, "claude says hi", out)

	assert.Equal(t, "/messages", seen.Path)
	assert.Equal(t, "sk-test-secret-key", seen.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", seen.Header.Get("anthropic-version"))
	assert.Empty(t, seen.Header.Get("Authorization"))
	assert.EqualValues(t, 1024, seen.Body["max_tokens"])
	assert.Len(t, seen.Body["messages"], 3)
}

func TestSendHuggingFaceRolePrefixedPrompt(t *testing.T) {
	var seen captured
	srv := fakeVendor(t, 200, `[{"generated_text":"hf output"}]`, &seen)

	c := cred(provider.HuggingFace, srv.URL)
	c.Model = "org/some-model"
	out, err := NewClient(2*time.Second, WithTemperature(0.2)).Send(sendCtx(t), c, transcript)
	require.NoError(t, err)
	assert.Equal(t, "hf output", out)

	assert.Equal(t, "/models/org/some-model", seen.Path)
	assert.Equal(t, "user: first\nassistant: second\nuser: third", seen.Body["inputs"])
	p := seen.Body["parameters"].(map[string]any)
	assert.EqualValues(t, 500, p["max_new_tokens"])
	assert.EqualValues(t, 0.2, p["temperature"])
	assert.Equal(t, false, p["return_full_text"])
}

func TestSend401WithStringErrorYieldsProviderError(t *testing.T) {
	srv := fakeVendor(t, http.StatusUnauthorized, `{"error":"invalid key"}`, nil)

	_, err := NewClient(2*time.Second).Send(sendCtx(t), cred(provider.OpenAI, srv.URL), transcript)
	e := requireAIError(t, err)
	assert.Equal(t, ProviderError, e.Kind)
	assert.Equal(t, "invalid key", e.Detail)
	assert.Equal(t, http.StatusUnauthorized, e.StatusCode)
	assert.Equal(t, "req_test_123", e.RequestID)
	assert.Contains(t, e.Hint(), "/addapi")
}

func TestSendNestedErrorMessageAndRetryAfter(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down", "code": "rate_limited"}})
	}))

	_, err := NewClient(2*time.Second).Send(sendCtx(t), cred(provider.DeepSeek, srv.URL), transcript)
	e := requireAIError(t, err)
	assert.Equal(t, "slow down", e.Detail)
	assert.Equal(t, 7*time.Second, e.RetryAfter)
	assert.Contains(t, e.Hint(), "7s")
}

func TestSendErrorFallsBackToTruncatedBody(t *testing.T) {
	long := strings.Repeat("x", 2000)
	srv := fakeVendor(t, http.StatusBadGateway, long, nil)

	_, err := NewClient(2*time.Second).Send(sendCtx(t), cred(provider.XAI, srv.URL), transcript)
	e := requireAIError(t, err)
	assert.Equal(t, ProviderError, e.Kind)
	assert.Len(t, []rune(e.Detail), maxErrorDetail)
	assert.True(t, strings.HasSuffix(e.Detail, "..."))
}

func TestSendEmptyErrorBodyUsesStatusText(t *testing.T) {
	srv := fakeVendor(t, http.StatusServiceUnavailable, "", nil)
	_, err := NewClient(2*time.Second).Send(sendCtx(t), cred(provider.Qwen, srv.URL), transcript)
	e := requireAIError(t, err)
	assert.Equal(t, "Service Unavailable", e.Detail)
}

func TestSendNeverEchoesKey(t *testing.T) {
	srv := fakeVendor(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided: sk-test-secret-key"}}`, nil)
	_, err := NewClient(2*time.Second).Send(sendCtx(t), cred(provider.OpenAI, srv.URL), transcript)
	e := requireAIError(t, err)
	assert.Equal(t, "Incorrect API key provided: [REDACTED]", e.Detail)
}

func TestSendMalformedResponses(t *testing.T) {
	cases := map[string]string{
		"missing path": `{"choices":[]}`,
		"empty text":   `{"choices":[{"message":{"content":"   "}}]}`,
		"not json":     `<html>oops</html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := fakeVendor(t, 200, body, nil)
			_, err := NewClient(2*time.Second).Send(sendCtx(t), cred(provider.OpenAI, srv.URL), transcript)
			e := requireAIError(t, err)
			assert.Equal(t, MalformedResponse, e.Kind)
		})
	}
}

func TestSendConnectionRefusedIsNetworkError(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open local listener: %v", err)
	}
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewClient(2*time.Second).Send(sendCtx(t), cred(provider.OpenAI, "http://"+addr), transcript)
	e := requireAIError(t, err)
	assert.Equal(t, NetworkError, e.Kind)
	assert.NotEmpty(t, e.Hint())
}

func TestSendTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	_, err := NewClient(100*time.Millisecond).Send(sendCtx(t), cred(provider.OpenAI, srv.URL), transcript)
	e := requireAIError(t, err)
	assert.Equal(t, NetworkError, e.Kind)
	assert.Contains(t, e.Detail, "timed out")
}

func TestSendRejectsInvalidInputWithoutCalling(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	c := NewClient(time.Second)

	_, err := c.Send(sendCtx(t), cred(provider.OpenAI, srv.URL), nil)
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	noKey := cred(provider.OpenAI, srv.URL)
	noKey.APIKey = credential.Secret{}
	_, err = c.Send(sendCtx(t), noKey, transcript)
	assert.ErrorIs(t, err, credential.ErrEmptyAPIKey)

	_, err = c.Send(sendCtx(t), cred(provider.Kind(77), srv.URL), transcript)
	assert.ErrorIs(t, err, provider.ErrUnknownKind)

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(0)
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.Equal(t, defaultMaxTokens, c.params.MaxTokens)
}
