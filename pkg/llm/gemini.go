package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgerrors "Atlas/pkg/errors"
	"Atlas/pkg/httpclient"
)

// GeminiClient generateContent 接口
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *httpclient.Client
}

func NewGeminiClient(apiKey, model, baseURL string, timeout time.Duration) (*GeminiClient, error) {
	hc, err := httpclient.New(timeout)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}, nil
}

func (c *GeminiClient) Provider() string { return "gemini" }

type geminiPart struct {
	Text *string `json:"text,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig map[string]string `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) ExtractPlan(ctx context.Context, rawText string) (string, error) {
	prompt := geminiPromptTemplate + rawText + "\n"
	req := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: &prompt}}}},
		GenerationConfig: map[string]string{"responseMimeType": "application/json"},
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	var resp geminiResponse
	if err := c.http.PostJSON(ctx, endpoint, nil, req, &resp); err != nil {
		return "", fmt.Errorf("%w: gemini request failed: %v", pkgerrors.ParserUnavailable, redactKey(err.Error(), c.apiKey))
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini response has no candidates", pkgerrors.ParserUnavailable)
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == nil {
		return "", fmt.Errorf("%w: gemini response content is invalid", pkgerrors.ParserUnavailable)
	}
	return *parts[0].Text, nil
}

// redactKey key 在 query 里，错误信息不能带出去
func redactKey(msg, key string) string {
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "***")
}
