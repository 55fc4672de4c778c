package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/metrics"
	"github.com/musicfy-storefront/internal/models"
)

// 商品目录错误
var (
	ErrNotFound    = errors.New("catalog: product not found")
	ErrUnavailable = errors.New("catalog: service unavailable")
	ErrSchema      = errors.New("catalog: unexpected response shape")
)

const (
	defaultTimeout     = 5 * time.Second
	defaultListPath    = "/products"
	defaultProductPath = "/products"
	maxResponseSize    = 2 << 20
	listCacheKey       = "list"
)

// Product 目录商品，价格以此为准
type Product struct {
	ID          uint64       `json:"id"`
	Title       string       `json:"title"`
	Price       models.Money `json:"price"`
	Image       string       `json:"image"`
	Description string       `json:"description"`
	Category    string       `json:"category,omitempty"`
}

func (p *Product) validate() error {
	if p.ID == 0 {
		return errors.New("product id is missing")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("product %d has no title", p.ID)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %d has negative price", p.ID)
	}
	return nil
}

// Cache 目录结果缓存
type Cache interface {
	Load(ctx context.Context, key string, dest interface{}) (bool, error)
	Store(ctx context.Context, key string, value interface{}) error
}

// Options 目录客户端配置
type Options struct {
	BaseURL     string
	ListPath    string
	ProductPath string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Cache       Cache
}

// Client 商品目录客户端
type Client struct {
	baseURL     string
	listPath    string
	productPath string
	http        *http.Client
	cache       Cache
}

// New 创建商品目录客户端
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("catalog base url is empty")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     baseURL,
		listPath:    normalizePath(opts.ListPath, defaultListPath),
		productPath: normalizePath(opts.ProductPath, defaultProductPath),
		http:        httpClient,
		cache:       opts.Cache,
	}, nil
}

// List 商品列表
func (c *Client) List(ctx context.Context) ([]Product, error) {
	var products []Product
	if c.load(ctx, listCacheKey, &products) {
		return products, nil
	}
	body, err := c.get(ctx, "list", c.baseURL+c.listPath)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	for i := range products {
		if err := products[i].validate(); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrSchema, i, err)
		}
	}
	c.store(ctx, listCacheKey, products)
	return products, nil
}

// Get 单个商品；上游对未知 ID 返回空内容时按不存在处理
func (c *Client) Get(ctx context.Context, productID uint64) (*Product, error) {
	if productID == 0 {
		return nil, ErrNotFound
	}
	key := "product:" + strconv.FormatUint(productID, 10)
	var product Product
	if c.load(ctx, key, &product) {
		return &product, nil
	}
	body, err := c.get(ctx, "get", c.baseURL+c.productPath+"/"+strconv.FormatUint(productID, 10))
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrNotFound
	}
	if err := json.Unmarshal(trimmed, &product); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := product.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if product.ID != productID {
		return nil, fmt.Errorf("%w: asked for product %d, got %d", ErrSchema, productID, product.ID)
	}
	c.store(ctx, key, product)
	return &product, nil
}

func (c *Client) load(ctx context.Context, key string, dest interface{}) bool {
	if c.cache == nil {
		return false
	}
	hit, err := c.cache.Load(ctx, key, dest)
	if err != nil {
		logger.Warnw("catalog_cache_load_failed", "key", key, "error", err)
		return false
	}
	return hit
}

func (c *Client) store(ctx context.Context, key string, value interface{}) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Store(ctx, key, value); err != nil {
		logger.Warnw("catalog_cache_store_failed", "key", key, "error", err)
	}
}

func (c *Client) get(ctx context.Context, operation, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRemote("catalog", operation, err, time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	var outcome error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		outcome = ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		outcome = fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case readErr != nil:
		outcome = fmt.Errorf("%w: %v", ErrUnavailable, readErr)
	}
	metrics.ObserveRemote("catalog", operation, outcome, time.Since(start))
	if outcome != nil {
		return nil, outcome
	}
	return body, nil
}

func normalizePath(path, fallback string) string {
	path = strings.TrimRight(strings.TrimSpace(path), "/")
	if path == "" {
		return fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
