package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4o-mini"
)

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int32           `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIClient calls the chat completions endpoint.
type OpenAIClient struct {
	apiKey string
	model  string
	url    string
	http   *http.Client
}

func NewOpenAIClient(apiKey, model string, timeout time.Duration) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("narrator: openai api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		url:    defaultOpenAIURL,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

// WithURL points the client at a different endpoint.
func (c *OpenAIClient) WithURL(url string) *OpenAIClient {
	c.url = url
	return c
}

func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	body := openAIChatRequest{Model: model, MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	for _, s := range req.System {
		if strings.TrimSpace(s) != "" {
			body.Messages = append(body.Messages, openAIMessage{Role: RoleSystem, Content: s})
		}
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("narrator: encode openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("narrator: build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("narrator: openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LLMResponse{}, fmt.Errorf("narrator: openai returned status %d", resp.StatusCode)
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return LLMResponse{}, fmt.Errorf("narrator: decode openai response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return LLMResponse{}, errors.New("narrator: openai returned no choices")
	}

	return LLMResponse{
		Text:       strings.TrimSpace(chatResp.Choices[0].Message.Content),
		StopReason: chatResp.Choices[0].FinishReason,
	}, nil
}
