// Package supabase 通过 PostgREST 接口访问托管的 Postgres 数据库。
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"Conductor/backend/go/internal/models"

	"github.com/supabase-community/postgrest-go"
)

// ErrMissingCredentials 表示没有配置地址或密钥。
var ErrMissingCredentials = errors.New("supabase url and key must be configured (SUPABASE_URL, SUPABASE_ANON_KEY)")

// ErrReservedFilter 表示过滤条件的列名与 PostgREST 的保留查询参数冲突。
var ErrReservedFilter = errors.New("supabase: filter column is a reserved query parameter")

// FallbackColumns 是 OpenAPI 文档中找不到表时使用的列定义。
var FallbackColumns = []models.Column{
	{Name: "id", Kind: models.KindInteger, Required: true},
	{Name: "data", Kind: models.KindJSON, Required: true},
}

// reservedParams 会被 PostgREST 当作查询控制参数而不是列过滤。
var reservedParams = map[string]bool{
	"select": true, "order": true, "limit": true, "offset": true,
	"on_conflict": true, "columns": true, "and": true, "or": true, "not": true,
}

// Doer 是发送请求的最小接口，pkg/http.Client 和 *http.Client 都满足。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Store 实现数据库 Agent 的远端存储。
type Store struct {
	baseURL string
	key     string
	client  Doer
}

// New 创建存储，url 或 key 为空时返回 ErrMissingCredentials。
func New(baseURL, key string, client Doer) (*Store, error) {
	if strings.TrimSpace(baseURL) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrMissingCredentials
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{baseURL: strings.TrimRight(baseURL, "/"), key: key, client: client}, nil
}

// doerTransport 让 postgrest 客户端的请求经过 Doer（熔断器），并带上调用方的 ctx。
type doerTransport struct {
	ctx    context.Context
	client Doer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req.WithContext(t.ctx))
}

// rest 为一次调用创建 PostgREST 客户端；客户端的 ClientError 是粘性的，不能跨调用共享。
func (s *Store) rest(ctx context.Context) *postgrest.Client {
	c := postgrest.NewClient(s.baseURL+"/rest/v1", "", map[string]string{
		"apikey":        s.key,
		"Authorization": "Bearer " + s.key,
	})
	if c.ClientError == nil {
		c.Transport.Parent = doerTransport{ctx: ctx, client: s.client}
	}
	return c
}

// Upsert 插入一行，主键冲突时合并。
func (s *Store) Upsert(ctx context.Context, table string, row map[string]any) ([]map[string]any, error) {
	raw, _, err := s.rest(ctx).From(table).Upsert(row, "", "representation", "").Execute()
	if err != nil {
		return nil, fmt.Errorf("supabase: upsert %s: %w", table, err)
	}
	return decodeRows(raw)
}

// Select 返回满足全部过滤条件的行，nil 值按 IS NULL 过滤。
func (s *Store) Select(ctx context.Context, table string, filters map[string]any) ([]map[string]any, error) {
	q := s.rest(ctx).From(table).Select("*", "", false)
	for k, v := range filters {
		if reservedParams[strings.ToLower(k)] {
			return nil, fmt.Errorf("%w: %s", ErrReservedFilter, k)
		}
		if v == nil {
			q = q.Is(k, "null")
			continue
		}
		q = q.Eq(k, formatValue(v))
	}
	raw, _, err := q.Execute()
	if err != nil {
		return nil, fmt.Errorf("supabase: select %s: %w", table, err)
	}
	return decodeRows(raw)
}

// ExecuteSQL 调用数据库中预先定义的 execute_sql 函数。
// Rpc 不检查状态码，错误从响应体中的 PostgREST 错误对象识别。
func (s *Store) ExecuteSQL(ctx context.Context, sql string) error {
	c := s.rest(ctx)
	body := c.Rpc("execute_sql", "", map[string]string{"sql": sql})
	if c.ClientError != nil {
		return fmt.Errorf("supabase: execute_sql: %w", c.ClientError)
	}
	var apiErr postgrest.ExecuteError
	if json.Unmarshal([]byte(body), &apiErr) == nil && apiErr.Code != "" && apiErr.Message != "" {
		return fmt.Errorf("supabase: execute_sql: (%s) %s", apiErr.Code, apiErr.Message)
	}
	return nil
}

// APIError 是 OpenAPI 文档请求返回的非 2xx 响应。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.StatusCode, e.Message)
}

type openAPIDocument struct {
	Definitions map[string]struct {
		Required   []string `json:"required"`
		Properties map[string]struct {
			Type   string `json:"type"`
			Format string `json:"format"`
		} `json:"properties"`
	} `json:"definitions"`
}

// Columns 从 PostgREST 的 OpenAPI 文档读取表的列定义。
// postgrest 客户端不提供这个接口，这里直接请求根路径。
func (s *Store) Columns(ctx context.Context, table string) ([]models.Column, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/openapi+json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	var doc openAPIDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("supabase: decode openapi document: %w", err)
	}
	def, ok := doc.Definitions[table]
	if !ok {
		return append([]models.Column(nil), FallbackColumns...), nil
	}

	required := make(map[string]bool, len(def.Required))
	for _, name := range def.Required {
		required[name] = true
	}
	cols := make([]models.Column, 0, len(def.Properties))
	for name, prop := range def.Properties {
		kind := models.KindFromType(prop.Format)
		if kind == models.KindAny {
			kind = models.KindFromType(prop.Type)
		}
		cols = append(cols, models.Column{Name: name, Kind: kind, Required: required[name]})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols, nil
}

// readMessage 优先取 PostgREST 错误体中的 message 字段。
func readMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Message string `json:"message"`
		Hint    string `json:"hint"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		if body.Hint != "" {
			return body.Message + " (" + body.Hint + ")"
		}
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// decodeRows 解码行数组，整数保持为 int64，其余数字为 float64。
func decodeRows(raw []byte) ([]map[string]any, error) {
	rows := []map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return rows, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("supabase: decode rows: %w", err)
	}
	for _, row := range rows {
		for k, v := range row {
			if n, ok := v.(json.Number); ok {
				if i, err := n.Int64(); err == nil {
					row[k] = i
				} else if f, err := n.Float64(); err == nil {
					row[k] = f
				}
			}
		}
	}
	return rows, nil
}
