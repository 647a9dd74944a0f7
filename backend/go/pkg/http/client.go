package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/pkg/circuitbreaker"
	"Conductor/backend/go/pkg/logger"
)

// DefaultClientTimeout bounds a single outbound request.
const DefaultClientTimeout = 30 * time.Second

// StatusError 表示下游返回了 5xx，Body 截取了响应的前一部分便于排查。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: received status code %d: %s", e.StatusCode, e.Body)
}

// Client is a custom HTTP client that wraps the standard http.Client
// and provides built-in support for circuit breaking.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient 替换底层的 http.Client（测试中注入 httptest 的客户端）。
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient creates a new Client; the breaker is only installed when cfg.Enabled.
func NewClient(cfg config.CircuitBreakerConfig, opts ...ClientOption) (*Client, error) {
	c := &Client{httpClient: &http.Client{Timeout: DefaultClientTimeout}}
	if cfg.Enabled {
		breaker, err := createCircuitBreaker(cfg, logger.New("http_client", "", ""))
		if err != nil {
			return nil, err
		}
		c.breaker = breaker
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do executes an HTTP request with circuit breaker protection.
// Status codes >= 500 are failures: the body is consumed and a *StatusError returned.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.do(req)
	}

	var resp *http.Response
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var err error
		resp, err = c.do(req)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// StandardClient 把 Client 包装成 *http.Client，供只接受标准客户端的库（A2A 传输等）使用，
// 请求仍然经过熔断器。
func (c *Client) StandardClient() *http.Client {
	return &http.Client{Transport: roundTripperFunc(c.Do)}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
