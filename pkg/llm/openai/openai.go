// Package openai provides an OpenAI-compatible LLM provider implementation.
//
// The provider speaks the plain chat-completions HTTP API so it works with
// OpenAI, Azure, and local OpenAI-compatible servers alike. Requests are
// built explicitly rather than through a generated client, which keeps
// multimodal content blocks (page screenshots) under our control.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/entrhq/wander/pkg/types"
	"github.com/openai/openai-go"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
)

// Provider implements the llm.Provider interface for OpenAI-compatible APIs.
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets a custom HTTP client (mainly for tests).
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it reads OPENAI_API_KEY from the environment. If no
// base URL is set via WithBaseURL, OPENAI_BASE_URL is consulted before
// falling back to the public API.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	return p, nil
}

// Complete sends messages to the chat-completions endpoint and returns the
// full assistant response.
func (p *Provider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	reqBody := map[string]interface{}{
		"model":    p.model,
		"messages": convertMessages(messages),
	}
	return p.send(ctx, reqBody)
}

// ShortAnswer sends a single user prompt and returns the response text.
func (p *Provider) ShortAnswer(ctx context.Context, prompt string) (string, error) {
	msg, err := p.Complete(ctx, []*types.Message{types.NewUserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// VisionAnswer sends messages that may carry image attachments and returns
// the response text. Images are inlined as base64 data URLs, which every
// OpenAI-compatible multimodal endpoint accepts.
func (p *Provider) VisionAnswer(ctx context.Context, messages []*types.Message) (string, error) {
	reqBody := map[string]interface{}{
		"model":    p.model,
		"messages": convertMultimodalMessages(messages),
	}
	msg, err := p.send(ctx, reqBody)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// send posts the request body to /chat/completions and decodes the first
// choice of the response.
func (p *Provider) send(ctx context.Context, reqBody map[string]interface{}) (*types.Message, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("API response contained no choices")
	}

	role := parsed.Choices[0].Message.Role
	if role == "" {
		role = string(types.RoleAssistant)
	}

	return &types.Message{
		Role:    types.MessageRole(role),
		Content: parsed.Choices[0].Message.Content,
	}, nil
}

// convertMessages converts text-only messages to the OpenAI param format.
func convertMessages(messages []*types.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}

	return out
}

// convertMultimodalMessages builds raw content-part bodies so image blocks
// can be attached to user messages.
func convertMultimodalMessages(messages []*types.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(messages))

	for _, msg := range messages {
		if !msg.HasImage() {
			out = append(out, map[string]interface{}{
				"role":    string(msg.Role),
				"content": msg.Content,
			})
			continue
		}

		mime := msg.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(msg.ImageData))

		out = append(out, map[string]interface{}{
			"role": string(msg.Role),
			"content": []map[string]interface{}{
				{"type": "text", "text": msg.Content},
				{"type": "image_url", "image_url": map[string]interface{}{"url": dataURL}},
			},
		})
	}

	return out
}
