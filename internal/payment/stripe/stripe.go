package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var (
	ErrConfigInvalid    = errors.New("stripe config invalid")
	ErrRequestFailed    = errors.New("stripe request failed")
	ErrResponseInvalid  = errors.New("stripe response invalid")
	ErrSignatureInvalid = errors.New("stripe signature invalid")
)

// 支付状态
const (
	StatusSuccess = "success"
	StatusPending = "pending"
	StatusFailed  = "failed"
	StatusExpired = "expired"
)

const (
	defaultAPIBaseURL        = "https://api.stripe.com"
	defaultCurrency          = "brl"
	defaultTimeout           = 12 * time.Second
	defaultWebhookToleranceS = 300
	maxResponseSize          = 1 << 20
)

var zeroDecimalCurrencies = map[string]struct{}{
	"CLP": {}, "JPY": {}, "KRW": {}, "PYG": {}, "VND": {}, "XAF": {}, "XOF": {},
}

// Config Stripe Checkout 配置
type Config struct {
	SecretKey               string
	WebhookSecret           string
	SuccessURL              string
	CancelURL               string
	APIBaseURL              string
	Currency                string
	WebhookToleranceSeconds int
	HTTPClient              *http.Client
}

// FromSettings 由应用配置生成 Stripe 配置
func FromSettings(s config.StripeConfig) *Config {
	cfg := &Config{
		SecretKey:               s.SecretKey,
		WebhookSecret:           s.WebhookSecret,
		SuccessURL:              s.SuccessURL,
		CancelURL:               s.CancelURL,
		APIBaseURL:              s.APIBaseURL,
		Currency:                s.Currency,
		WebhookToleranceSeconds: s.WebhookTolerance,
	}
	cfg.normalize()
	return cfg
}

// Configured 是否已配置密钥
func (c *Config) Configured() bool {
	return c != nil && c.SecretKey != ""
}

// ValidateConfig 校验创建会话所需配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(sanitizeURLForValidation(cfg.SuccessURL)); err != nil {
		return fmt.Errorf("%w: success_url is invalid", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(sanitizeURLForValidation(cfg.CancelURL)); err != nil {
		return fmt.Errorf("%w: cancel_url is invalid", ErrConfigInvalid)
	}
	return nil
}

// LineItem 结账行
type LineItem struct {
	Name       string
	UnitAmount decimal.Decimal
	Quantity   int
	ImageURL   string
}

// CreateInput 创建 Checkout Session 输入
type CreateInput struct {
	OrderID       uint64
	UserID        uint64
	CustomerEmail string
	Currency      string
	Items         []LineItem
	SuccessURL    string
	CancelURL     string
}

// CreateResult 创建结果
type CreateResult struct {
	SessionID       string
	PaymentIntentID string
	URL             string
	Status          string
}

// QueryResult 支付查询结果
type QueryResult struct {
	SessionID       string
	PaymentIntentID string
	OrderID         uint64
	UserID          uint64
	Status          string
	Amount          string
	Currency        string
	PaidAt          *time.Time
}

// WebhookResult Webhook 解析结果
type WebhookResult struct {
	EventID         string
	EventType       string
	OrderID         uint64
	SessionID       string
	PaymentIntentID string
	Status          string
	Amount          string
	Currency        string
	PaidAt          *time.Time
}

// CreatePayment 创建 Stripe Checkout Session，每个购物车行一条 line item
func CreatePayment(ctx context.Context, cfg *Config, input CreateInput) (*CreateResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if input.OrderID == 0 {
		return nil, fmt.Errorf("%w: order id is required", ErrConfigInvalid)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one line item is required", ErrConfigInvalid)
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = cfg.Currency
	}
	successURL := firstNonEmpty(input.SuccessURL, cfg.SuccessURL)
	cancelURL := firstNonEmpty(input.CancelURL, cfg.CancelURL)
	orderID := strconv.FormatUint(input.OrderID, 10)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	form.Set("client_reference_id", orderID)
	form.Set("metadata[order_id]", orderID)
	form.Set("payment_intent_data[metadata][order_id]", orderID)
	if input.UserID > 0 {
		userID := strconv.FormatUint(input.UserID, 10)
		form.Set("metadata[user_id]", userID)
		form.Set("payment_intent_data[metadata][user_id]", userID)
	}
	if email := strings.TrimSpace(input.CustomerEmail); email != "" {
		form.Set("customer_email", email)
	}
	form.Add("payment_method_types[]", "card")

	line := 0
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			continue
		}
		minor, err := toMinorAmount(item.UnitAmount, currency)
		if err != nil {
			return nil, err
		}
		if minor == 0 {
			continue
		}
		prefix := fmt.Sprintf("line_items[%d]", line)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(minor, 10))
		form.Set(prefix+"[price_data][product_data][name]", firstNonEmpty(item.Name, "Item"))
		if image := strings.TrimSpace(item.ImageURL); strings.HasPrefix(image, "http") {
			form.Set(prefix+"[price_data][product_data][images][0]", image)
		}
		line++
	}
	if line == 0 {
		return nil, fmt.Errorf("%w: no payable line items", ErrConfigInvalid)
	}

	body, status, err := doRequest(ctx, cfg, "create_session", http.MethodPost, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: create checkout session status %d: %s", ErrResponseInvalid, status, errorMessage(body))
	}

	raw := gjson.ParseBytes(body)
	result := &CreateResult{
		SessionID:       strings.TrimSpace(raw.Get("id").String()),
		URL:             strings.TrimSpace(raw.Get("url").String()),
		Status:          strings.TrimSpace(raw.Get("status").String()),
		PaymentIntentID: paymentIntentID(raw),
	}
	if result.SessionID == "" || result.URL == "" {
		return nil, fmt.Errorf("%w: missing session id or url", ErrResponseInvalid)
	}
	return result, nil
}

// QueryPayment 按 Checkout Session 或 PaymentIntent ID 查询支付状态
func QueryPayment(ctx context.Context, cfg *Config, ref string) (*QueryResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrConfigInvalid)
	}
	if strings.HasPrefix(ref, "pi_") {
		return queryPaymentIntent(ctx, cfg, ref)
	}
	return queryCheckoutSession(ctx, cfg, ref)
}

// VerifyAndParseWebhook 校验签名并解析 Stripe webhook
func VerifyAndParseWebhook(cfg *Config, headers http.Header, body []byte, now time.Time) (*WebhookResult, error) {
	if cfg == nil || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	if now.IsZero() {
		now = time.Now()
	}

	signatureHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: Stripe-Signature is required", ErrSignatureInvalid)
	}
	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}
	tolerance := cfg.WebhookToleranceSeconds
	if tolerance <= 0 {
		tolerance = defaultWebhookToleranceS
	}
	if delta := now.Unix() - timestamp; delta > int64(tolerance) || -delta > int64(tolerance) {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	expected := computeSignature(cfg.WebhookSecret, timestamp, body)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}

	event := gjson.ParseBytes(body)
	eventType := strings.TrimSpace(event.Get("type").String())
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrResponseInvalid)
	}
	object := event.Get("data.object")
	if !object.IsObject() {
		return nil, fmt.Errorf("%w: missing event object", ErrResponseInvalid)
	}

	result := &WebhookResult{
		EventID:   event.Get("id").String(),
		EventType: eventType,
		OrderID:   object.Get("metadata.order_id").Uint(),
		Currency:  strings.ToUpper(object.Get("currency").String()),
		PaidAt:    unixTime(object.Get("created").Int()),
	}
	status, known := eventStatus(eventType)
	switch object.Get("object").String() {
	case "checkout.session":
		result.SessionID = object.Get("id").String()
		result.PaymentIntentID = paymentIntentID(object)
		result.Amount = fromMinorAmount(object.Get("amount_total").Int(), result.Currency)
		if !known {
			status = sessionStatus(object.Get("payment_status").String(), object.Get("status").String())
		}
	case "payment_intent":
		result.PaymentIntentID = object.Get("id").String()
		result.Amount = fromMinorAmount(intentAmount(object), result.Currency)
		if !known {
			status = intentStatus(object.Get("status").String())
		}
	}
	if status == "" {
		status = StatusPending
	}
	result.Status = status
	return result, nil
}

func queryCheckoutSession(ctx context.Context, cfg *Config, sessionID string) (*QueryResult, error) {
	path := fmt.Sprintf("/v1/checkout/sessions/%s?expand[]=payment_intent", url.PathEscape(sessionID))
	body, status, err := doRequest(ctx, cfg, "query_session", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: query checkout session status %d: %s", ErrResponseInvalid, status, errorMessage(body))
	}
	raw := gjson.ParseBytes(body)
	result := &QueryResult{
		SessionID:       raw.Get("id").String(),
		PaymentIntentID: paymentIntentID(raw),
		OrderID:         raw.Get("metadata.order_id").Uint(),
		UserID:          raw.Get("metadata.user_id").Uint(),
		Currency:        strings.ToUpper(raw.Get("currency").String()),
		Status:          sessionStatus(raw.Get("payment_status").String(), raw.Get("status").String()),
		PaidAt:          unixTime(raw.Get("created").Int()),
	}
	result.Amount = fromMinorAmount(raw.Get("amount_total").Int(), result.Currency)
	if result.SessionID == "" {
		return nil, fmt.Errorf("%w: missing checkout session id", ErrResponseInvalid)
	}
	return result, nil
}

func queryPaymentIntent(ctx context.Context, cfg *Config, intentID string) (*QueryResult, error) {
	path := fmt.Sprintf("/v1/payment_intents/%s", url.PathEscape(intentID))
	body, status, err := doRequest(ctx, cfg, "query_intent", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: query payment intent status %d: %s", ErrResponseInvalid, status, errorMessage(body))
	}
	raw := gjson.ParseBytes(body)
	result := &QueryResult{
		PaymentIntentID: raw.Get("id").String(),
		OrderID:         raw.Get("metadata.order_id").Uint(),
		UserID:          raw.Get("metadata.user_id").Uint(),
		Currency:        strings.ToUpper(raw.Get("currency").String()),
		Status:          intentStatus(raw.Get("status").String()),
		PaidAt:          unixTime(raw.Get("created").Int()),
	}
	result.Amount = fromMinorAmount(intentAmount(raw), result.Currency)
	if result.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", ErrResponseInvalid)
	}
	return result, nil
}

func eventStatus(eventType string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "checkout.session.async_payment_succeeded", "payment_intent.succeeded":
		return StatusSuccess, true
	case "checkout.session.expired":
		return StatusExpired, true
	case "checkout.session.async_payment_failed", "payment_intent.payment_failed", "payment_intent.canceled":
		return StatusFailed, true
	case "payment_intent.processing":
		return StatusPending, true
	default:
		return "", false
	}
}

// sessionStatus completed 事件不一定已付款（异步支付），以 payment_status 为准
func sessionStatus(paymentStatus, status string) string {
	paymentStatus = strings.ToLower(strings.TrimSpace(paymentStatus))
	status = strings.ToLower(strings.TrimSpace(status))
	switch {
	case paymentStatus == "paid", status == "complete" && paymentStatus == "no_payment_required":
		return StatusSuccess
	case status == "expired":
		return StatusExpired
	default:
		return StatusPending
	}
}

func intentStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return StatusSuccess
	case "canceled", "requires_payment_method":
		return StatusFailed
	default:
		return StatusPending
	}
}

func intentAmount(raw gjson.Result) int64 {
	if received := raw.Get("amount_received").Int(); received > 0 {
		return received
	}
	return raw.Get("amount").Int()
}

// paymentIntentID payment_intent 可能是 ID 字符串，也可能是展开后的对象
func paymentIntentID(raw gjson.Result) string {
	value := raw.Get("payment_intent")
	if value.IsObject() {
		return strings.TrimSpace(value.Get("id").String())
	}
	return strings.TrimSpace(value.String())
}

func errorMessage(body []byte) string {
	if message := gjson.GetBytes(body, "error.message").String(); message != "" {
		return message
	}
	return strings.TrimSpace(string(body))
}

func unixTime(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	at := time.Unix(seconds, 0)
	return &at
}

func sanitizeURLForValidation(rawURL string) string {
	return strings.ReplaceAll(strings.TrimSpace(rawURL), "{CHECKOUT_SESSION_ID}", "cs_test_placeholder")
}

func (c *Config) normalize() {
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.SuccessURL = strings.TrimSpace(c.SuccessURL)
	c.CancelURL = strings.TrimSpace(c.CancelURL)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	c.Currency = strings.ToLower(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	if c.WebhookToleranceSeconds <= 0 {
		c.WebhookToleranceSeconds = defaultWebhookToleranceS
	}
}

func toMinorAmount(amount decimal.Decimal, currency string) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: amount must not be negative", ErrConfigInvalid)
	}
	minor := amount.Shift(int32(currencyScale(currency)))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

func fromMinorAmount(minor int64, currency string) string {
	if minor <= 0 || currency == "" {
		return ""
	}
	scale := currencyScale(currency)
	return decimal.NewFromInt(minor).Shift(int32(-scale)).StringFixed(int32(scale))
}

func currencyScale(currency string) int {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

func doRequest(ctx context.Context, cfg *Config, operation, method, path string, form url.Values) ([]byte, int, error) {
	endpoint := cfg.APIBaseURL + path
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.ObserveRemote("stripe", operation, err, time.Since(start))
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	var outcome error
	if resp.StatusCode >= 300 {
		outcome = ErrResponseInvalid
	}
	metrics.ObserveRemote("stripe", operation, outcome, time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return body, resp.StatusCode, nil
}

func computeSignature(secret string, timestamp int64, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(strconv.FormatInt(timestamp, 10) + "."))
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// parseSignatureHeader 解析 "t=...,v1=...,v1=..." 格式
func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
				signatures = append(signatures, v)
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
