package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// apiClient 是编排器 HTTP 接口的最小客户端。
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string, hc *http.Client) *apiClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &apiClient{base: strings.TrimRight(base, "/"), token: token, http: hc}
}

// askResult 是 POST /ask 的结果，ID 来自 X-Ask-ID 头，未开启历史时为空。
type askResult struct {
	ID       string
	Response string
}

func (c *apiClient) ask(ctx context.Context, message string) (*askResult, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	var out struct {
		Response string `json:"response"`
	}
	header, err := c.do(ctx, http.MethodPost, "/ask", body, &out)
	if err != nil {
		return nil, err
	}
	return &askResult{ID: header.Get("X-Ask-ID"), Response: out.Response}, nil
}

func (c *apiClient) get(ctx context.Context, path string) (map[string]any, error) {
	var out map[string]any
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, errorDetail(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.Header, nil
}

// errorDetail 取出 {"detail": ...} 或 {"error": ...}，否则返回原文。
func errorDetail(raw []byte) string {
	var body map[string]any
	if json.Unmarshal(raw, &body) == nil {
		for _, key := range []string{"detail", "error"} {
			if v, ok := body[key].(string); ok {
				return v
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
