package llm_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcart/cartsense-go/pkg/llm"
	openaiLLM "github.com/freshcart/cartsense-go/pkg/llm/openai"
)

// newOpenAIServer returns an httptest server that answers every chat
// completion request with the given status and body.
func newOpenAIServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newOpenAIClient(t *testing.T, baseURL string) *openaiLLM.Client {
	t.Helper()
	client, err := openaiLLM.NewClient(&openaiLLM.Config{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: baseURL,
	})
	require.NoError(t, err)
	return client
}

func TestOpenAIGenerateClassifiesRateLimit(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusTooManyRequests,
		`{"error": {"message": "rate limit reached", "type": "rate_limit_exceeded"}}`)
	defer srv.Close()

	client := newOpenAIClient(t, srv.URL)
	defer func() { _ = client.Close() }()

	_, err := client.Generate(context.Background(), "suggest a breakfast item")
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrRateLimited))
	assert.False(t, errors.Is(err, llm.ErrQuotaExhausted))
}

func TestOpenAIGenerateClassifiesQuotaExhausted(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusPaymentRequired,
		`{"error": {"message": "budget exceeded", "type": "insufficient_quota"}}`)
	defer srv.Close()

	client := newOpenAIClient(t, srv.URL)
	defer func() { _ = client.Close() }()

	_, err := client.Generate(context.Background(), "suggest a breakfast item")
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrQuotaExhausted))
}

func TestOpenAIGenerateClassifiesRateLimitWithNonJSONBody(t *testing.T) {
	// Gateways in front of the API often answer 429 with a plain text body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("too many requests"))
	}))
	defer srv.Close()

	client := newOpenAIClient(t, srv.URL)
	defer func() { _ = client.Close() }()

	_, err := client.Generate(context.Background(), "suggest a breakfast item")
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrRateLimited))
}

func TestOpenAIGenerateLeavesOtherFailuresUnclassified(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusInternalServerError,
		`{"error": {"message": "upstream exploded", "type": "server_error"}}`)
	defer srv.Close()

	client := newOpenAIClient(t, srv.URL)
	defer func() { _ = client.Close() }()

	_, err := client.Generate(context.Background(), "suggest a breakfast item")
	require.Error(t, err)
	assert.False(t, errors.Is(err, llm.ErrRateLimited))
	assert.False(t, errors.Is(err, llm.ErrQuotaExhausted))
}

func TestOpenAIGenerateReturnsContent(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": "Whole Milk (1L)"}, "finish_reason": "stop"}
		]
	}`)
	defer srv.Close()

	client := newOpenAIClient(t, srv.URL)
	defer func() { _ = client.Close() }()

	text, err := client.Generate(context.Background(), "suggest a breakfast item")
	require.NoError(t, err)
	assert.Equal(t, "Whole Milk (1L)", text)
}
