package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/httpclient"
)

// DeepSeekClient OpenAI 兼容的 chat/completions 接口
type DeepSeekClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *httpclient.Client
}

func NewDeepSeekClient(apiKey, model, baseURL string, timeout time.Duration) (*DeepSeekClient, error) {
	hc, err := httpclient.New(timeout)
	if err != nil {
		return nil, err
	}
	return &DeepSeekClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}, nil
}

func (c *DeepSeekClient) Provider() string { return "deepseek" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []chatMessage     `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *DeepSeekClient) ExtractPlan(ctx context.Context, rawText string) (string, error) {
	req := chatRequest{
		Model:          c.model,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: deepSeekSystemPrompt},
			{Role: "user", Content: rawText},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp chatResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("%w: deepseek request failed: %v", pkgerrors.ParserUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: deepseek response content is invalid", pkgerrors.ParserUnavailable)
	}
	return *resp.Choices[0].Message.Content, nil
}
