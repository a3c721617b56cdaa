package httpclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// StatusError 上游返回了非 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Client 对 hertz client 的薄封装，统一超时与 JSON 编解码
type Client struct {
	hc      *client.Client
	timeout time.Duration
}

// New 使用标准网络库，https 上游需要 TLS
func New(timeout time.Duration) (*Client, error) {
	hc, err := client.NewClient(
		client.WithDialer(standard.NewDialer()),
		client.WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}),
		client.WithDialTimeout(5*time.Second),
		client.WithClientReadTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	return &Client{hc: hc, timeout: timeout}, nil
}

// GetJSON GET 请求并把响应体解码到 out
func (c *Client) GetJSON(ctx context.Context, uri string, headers map[string]string, out interface{}) error {
	return c.do(ctx, consts.MethodGet, uri, headers, nil, out)
}

// PostJSON POST JSON 请求体并把响应体解码到 out
func (c *Client) PostJSON(ctx context.Context, uri string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return c.do(ctx, consts.MethodPost, uri, headers, payload, out)
}

func (c *Client) do(ctx context.Context, method, uri string, headers map[string]string, body []byte, out interface{}) error {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.SetContentTypeBytes([]byte("application/json; charset=utf-8"))
		req.SetBody(body)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	if err := c.hc.DoTimeout(ctx, req, resp, timeout); err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URI().Path(), err)
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return &StatusError{StatusCode: status, Body: truncate(string(resp.Body()), 256)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
