package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/metrics"

	"github.com/tidwall/gjson"
)

// 后端调用错误
var (
	ErrNotFound      = errors.New("backend: resource not found")
	ErrConflict      = errors.New("backend: resource conflict")
	ErrRequestFailed = errors.New("backend: request failed")
	ErrSchema        = errors.New("backend: response schema invalid")
	ErrInvalidInput  = errors.New("backend: invalid input")
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
)

// RemoteError 后端非 2xx 响应
type RemoteError struct {
	Resource  string
	Operation string
	Status    int
	Message   string
}

// Error 实现 error
func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend %s.%s status %d: %s", e.Resource, e.Operation, e.Status, e.Message)
}

// Is 让 404/409 可以通过 errors.Is 匹配哨兵错误
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	default:
		return false
	}
}

// Options 客户端配置
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 远端 REST 后端客户端，不做自动重试
type Client struct {
	baseURL string
	http    *http.Client
}

// New 创建后端客户端
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidInput)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}, nil
}

type call struct {
	resource  string
	operation string
	method    string
	path      string
	body      interface{}
}

// do 执行请求；out 为空时忽略响应体
func (c *Client) do(ctx context.Context, req call, out interface{}) (err error) {
	started := time.Now()
	defer func() {
		metrics.ObserveRemote(req.resource, req.operation, err, time.Since(started))
	}()

	var reader io.Reader
	if req.body != nil {
		payload, marshalErr := json.Marshal(req.body)
		if marshalErr != nil {
			return fmt.Errorf("%w: marshal %s.%s body: %v", ErrInvalidInput, req.resource, req.operation, marshalErr)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrRequestFailed, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrRequestFailed, req.resource, req.operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read %s.%s response: %v", ErrRequestFailed, req.resource, req.operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remoteErr := &RemoteError{
			Resource:  req.resource,
			Operation: req.operation,
			Status:    resp.StatusCode,
			Message:   remoteMessage(body, resp.StatusCode),
		}
		if resp.StatusCode != http.StatusNotFound {
			logger.Warnw("backend_call_failed",
				"resource", req.resource,
				"operation", req.operation,
				"status", resp.StatusCode,
				"message", remoteErr.Message,
			)
		}
		return remoteErr
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: %s.%s empty body", ErrSchema, req.resource, req.operation)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s.%s decode: %v", ErrSchema, req.resource, req.operation, err)
	}
	if v, ok := out.(validator); ok {
		if err := v.validate(); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrSchema, req.resource, req.operation, err)
		}
	}
	return nil
}

// remoteMessage 优先取 JSON message 字段，其次原始文本，最后 HTTP 状态
func remoteMessage(body []byte, status int) string {
	trimmed := bytes.TrimSpace(body)
	if gjson.ValidBytes(trimmed) {
		if msg := gjson.GetBytes(trimmed, "message"); msg.Type == gjson.String && strings.TrimSpace(msg.String()) != "" {
			return strings.TrimSpace(msg.String())
		}
	}
	if len(trimmed) > 0 {
		return string(trimmed)
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

type validator interface {
	validate() error
}
