package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"
	defaultLocalURL  = "http://localhost:11434"
)

// OpenAI implements the Reviewer interface for OpenAI's chat completions API
// and for any server that speaks it (Ollama, LM Studio, vLLM, proxies).
type OpenAI struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	client     *http.Client
}

// NewOpenAI creates a new OpenAI provider. An API key is required.
func NewOpenAI(opts Options) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, &authError{message: "OPENAI_API_KEY is not set"}
	}
	baseURL := defaultOpenAIURL
	if opts.BaseURL != "" {
		baseURL = chatCompletionsURL(opts.BaseURL)
	}
	return &OpenAI{
		name:       "openai",
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    baseURL,
		maxRetries: opts.MaxRetries,
		client:     &http.Client{Timeout: opts.httpTimeout()},
	}, nil
}

// NewLocal creates a provider for a local OpenAI-compatible server such as
// Ollama or LM Studio. No API key is required.
func NewLocal(opts Options) (*OpenAI, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultLocalURL
	}
	return &OpenAI{
		name:       strings.ToLower(opts.Provider),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    chatCompletionsURL(baseURL),
		maxRetries: opts.MaxRetries,
		client:     &http.Client{Timeout: opts.httpTimeout()},
	}, nil
}

// chatCompletionsURL normalizes a base URL that may or may not already carry
// the /v1 or /v1/chat/completions suffix.
func chatCompletionsURL(base string) string {
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	base = strings.TrimSuffix(base, "/v1")
	return base + "/v1/chat/completions"
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := []openaiMessage{
		{Role: "system", Content: withSchemaInstruction(req.SystemPrompt, req.Schema)},
		{Role: "user", Content: req.UserPrompt},
	}

	body := openaiRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.Schema != nil {
		body.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ReviewResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	var resp ReviewResponse
	err = retryWithBackoff(ctx, o.maxRetries, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		}

		httpResp, err := o.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if httpResp.StatusCode == 429 {
			return &rateLimitError{retryable: true}
		}
		if httpResp.StatusCode == 401 || httpResp.StatusCode == 403 {
			return &authError{message: string(respBody)}
		}
		if httpResp.StatusCode >= 500 {
			return &serverError{statusCode: httpResp.StatusCode, body: string(respBody)}
		}
		if httpResp.StatusCode != 200 {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
		}

		var result openaiResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}

		if len(result.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}

		resp = ReviewResponse{
			Content:    result.Choices[0].Message.Content,
			TokensUsed: result.Usage.TotalTokens,
		}
		return nil
	})

	return resp, err
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiUsage struct {
	TotalTokens int `json:"total_tokens"`
}
