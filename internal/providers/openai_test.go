package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	o, err := NewOpenAI(Options{Model: "gpt-4o", APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	return o
}

func TestOpenAI_Review(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Nil(t, req.ResponseFormat)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "looks good"}}},
			Usage:   openaiUsage{TotalTokens: 50},
		})
	})

	resp, err := o.Review(context.Background(), ReviewRequest{SystemPrompt: "sys", UserPrompt: "user", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "looks good", resp.Content)
	assert.Equal(t, 50, resp.TokensUsed)
	assert.Equal(t, "openai", o.Name())
}

func TestOpenAI_SchemaSetsJSONMode(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		assert.Contains(t, req.Messages[0].Content, `"decision"`)

		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: `{"decision":"APPROVE"}`}}},
		})
	})

	schema := &Schema{Type: "object", Properties: map[string]*Schema{"decision": {Type: "string"}}}
	resp, err := o.Review(context.Background(), ReviewRequest{SystemPrompt: "sys", UserPrompt: "u", Schema: schema})
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"APPROVE"}`, resp.Content)
}

func TestOpenAI_EmptyContentIsNotAnError(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openaiResponse{Choices: []openaiChoice{{Message: openaiMessage{}}}})
	})

	resp, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "u"})
	require.NoError(t, err)
	assert.Empty(t, resp.Content)
}

func TestOpenAI_NoChoices(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestOpenAI_AuthError(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	})

	_, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "u"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestOpenAI_NoRetryByDefault(t *testing.T) {
	attempts := 0
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "u"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestOpenAI_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(openaiResponse{Choices: []openaiChoice{{Message: openaiMessage{Content: "ok"}}}})
	}))
	defer server.Close()

	o, err := NewOpenAI(Options{Model: "m", APIKey: "k", BaseURL: server.URL + "/v1", MaxRetries: 1})
	require.NoError(t, err)

	resp, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "u"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, attempts)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(Options{Model: "gpt-4o"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestNewLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(openaiResponse{Choices: []openaiChoice{{Message: openaiMessage{Content: "local"}}}})
	}))
	defer server.Close()

	o, err := NewLocal(Options{Provider: "Ollama", Model: "llama3", BaseURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "ollama", o.Name())

	resp, err := o.Review(context.Background(), ReviewRequest{UserPrompt: "u"})
	require.NoError(t, err)
	assert.Equal(t, "local", resp.Content)
}

func TestChatCompletionsURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:11434":                        "http://localhost:11434/v1/chat/completions",
		"http://localhost:11434/":                       "http://localhost:11434/v1/chat/completions",
		"https://proxy.example.com/v1":                  "https://proxy.example.com/v1/chat/completions",
		"https://proxy.example.com/v1/chat/completions": "https://proxy.example.com/v1/chat/completions",
	}
	for in, want := range tests {
		assert.Equal(t, want, chatCompletionsURL(in), in)
	}
}
