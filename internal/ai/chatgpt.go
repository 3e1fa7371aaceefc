package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	chatGPTModel   = "gpt-3.5-turbo"
)

// ChatGPTProvider implements LLMProvider over the OpenAI chat completions API.
type ChatGPTProvider struct {
	apiKey   string
	endpoint string
	// The 30s timeout guards against stalled connections; cancellation still
	// flows through the request context.
	http *http.Client
}

// NewChatGPTProvider returns a provider for apiKey. An empty endpoint uses
// the public OpenAI API.
func NewChatGPTProvider(apiKey, endpoint string) (*ChatGPTProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("chatgpt: missing api key")
	}
	if endpoint == "" {
		endpoint = openAIEndpoint
	}
	return &ChatGPTProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *ChatGPTProvider) Summarize(ctx context.Context, title, text string) (string, error) {
	if err := validateInput(title, text); err != nil {
		return "", err
	}
	return p.complete(ctx, summaryPrompt(title, text))
}

func (p *ChatGPTProvider) Answer(ctx context.Context, title, text, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("chatgpt: empty question")
	}
	return p.complete(ctx, answerPrompt(title, text, question))
}

// complete sends prompt as a single user message and returns the reply text.
func (p *ChatGPTProvider) complete(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:    chatGPTModel,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("chatgpt: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("chatgpt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chatgpt: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chatgpt: read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("chatgpt: unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("chatgpt: api error: %s", cr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chatgpt: unexpected status %d", resp.StatusCode)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
