package postal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/metrics"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// 邮编查询错误
var (
	ErrInvalidPostalCode = errors.New("postal: code must have 8 digits")
	ErrNotFound          = errors.New("postal: code not found")
	ErrUnavailable       = errors.New("postal: lookup services unavailable")
)

const (
	defaultTimeout  = 5 * time.Second
	maxResponseSize = 256 << 10
)

// Address 邮编对应的地址
type Address struct {
	PostalCode   string `json:"cep"`
	Street       string `json:"rua"`
	Neighborhood string `json:"bairro"`
	City         string `json:"cidade"`
	State        string `json:"estado"`
}

// Cache 查询结果缓存
type Cache interface {
	Load(ctx context.Context, code string, dest interface{}) (bool, error)
	Store(ctx context.Context, code string, value interface{}) error
}

// Options 查询客户端配置
type Options struct {
	PrimaryURL    string
	SecondaryURL  string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
	Cache         Cache
}

// Client 邮编查询客户端：主源失败时回退到备用源
type Client struct {
	primaryURL   string
	secondaryURL string
	http         *http.Client
	limiter      *rate.Limiter
	cache        Cache
}

// New 创建邮编查询客户端
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		primaryURL:   strings.TrimRight(strings.TrimSpace(opts.PrimaryURL), "/"),
		secondaryURL: strings.TrimRight(strings.TrimSpace(opts.SecondaryURL), "/"),
		http:         httpClient,
		limiter:      rate.NewLimiter(limit, burst),
		cache:        opts.Cache,
	}
}

// NormalizeCode 去掉非数字字符并校验长度
func NormalizeCode(code string) (string, error) {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 8 {
		return "", ErrInvalidPostalCode
	}
	return digits, nil
}

// Lookup 查询邮编
func (c *Client) Lookup(ctx context.Context, code string) (Address, error) {
	digits, err := NormalizeCode(code)
	if err != nil {
		return Address{}, err
	}

	if c.cache != nil {
		var cached Address
		if hit, err := c.cache.Load(ctx, digits, &cached); err != nil {
			logger.Warnw("postal_cache_load_failed", "cep", digits, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	addr, primaryErr := c.fromPrimary(ctx, digits)
	if primaryErr != nil {
		logger.Debugw("postal_primary_failed", "cep", digits, "error", primaryErr)
		addr, err = c.fromSecondary(ctx, digits)
		if err != nil {
			logger.Warnw("postal_lookup_failed", "cep", digits, "primary_error", primaryErr, "error", err)
			return Address{}, err
		}
	}

	if c.cache != nil {
		if err := c.cache.Store(ctx, digits, addr); err != nil {
			logger.Warnw("postal_cache_store_failed", "cep", digits, "error", err)
		}
	}
	return addr, nil
}

// fromPrimary BrasilAPI v2
func (c *Client) fromPrimary(ctx context.Context, digits string) (Address, error) {
	if c.primaryURL == "" {
		return Address{}, ErrUnavailable
	}
	body, status, err := c.get(ctx, "primary", c.primaryURL+"/"+digits)
	if err != nil {
		return Address{}, err
	}
	if status != http.StatusOK {
		if status == http.StatusNotFound {
			return Address{}, ErrNotFound
		}
		return Address{}, fmt.Errorf("%w: primary status %d", ErrUnavailable, status)
	}
	result := gjson.ParseBytes(body)
	if !result.IsObject() || !result.Get("cep").Exists() {
		return Address{}, fmt.Errorf("%w: primary payload invalid", ErrUnavailable)
	}
	return Address{
		PostalCode:   digits,
		Street:       result.Get("street").String(),
		Neighborhood: result.Get("neighborhood").String(),
		City:         result.Get("city").String(),
		State:        result.Get("state").String(),
	}, nil
}

// fromSecondary ViaCEP，erro=true 表示邮编不存在
func (c *Client) fromSecondary(ctx context.Context, digits string) (Address, error) {
	if c.secondaryURL == "" {
		return Address{}, ErrUnavailable
	}
	body, status, err := c.get(ctx, "secondary", c.secondaryURL+"/"+digits+"/json/")
	if err != nil {
		return Address{}, err
	}
	if status != http.StatusOK {
		return Address{}, fmt.Errorf("%w: secondary status %d", ErrUnavailable, status)
	}
	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		return Address{}, fmt.Errorf("%w: secondary payload invalid", ErrUnavailable)
	}
	if result.Get("erro").Bool() {
		return Address{}, ErrNotFound
	}
	return Address{
		PostalCode:   digits,
		Street:       result.Get("logradouro").String(),
		Neighborhood: result.Get("bairro").String(),
		City:         result.Get("localidade").String(),
		State:        result.Get("uf").String(),
	}, nil
}

func (c *Client) get(ctx context.Context, source, url string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRemote("postal_"+source, "lookup", err, time.Since(start))
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	var outcome error
	if resp.StatusCode >= http.StatusInternalServerError {
		outcome = ErrUnavailable
	}
	metrics.ObserveRemote("postal_"+source, "lookup", outcome, time.Since(start))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, resp.StatusCode, nil
}
