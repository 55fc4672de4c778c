package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/models"
	"github.com/musicfy-storefront/internal/payment/stripe"
	"github.com/musicfy-storefront/internal/postal"
	"github.com/musicfy-storefront/internal/queue"
	"github.com/musicfy-storefront/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
)

const statusRetryDelay = 30 * time.Second

// CheckoutBackend 结账所需的后端资源
type CheckoutBackend interface {
	CreateAddress(ctx context.Context, input backend.AddressInput) (uint64, error)
	CreateOrder(ctx context.Context, input backend.CreateOrderInput) (*backend.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint64, status string) error
}

// TaskQueue 支付确认与状态回写任务队列
type TaskQueue interface {
	Enabled() bool
	EnqueuePaymentConfirm(payload queue.PaymentConfirmPayload, opts ...asynq.Option) error
	EnqueueOrderStatusUpdate(payload queue.OrderStatusUpdatePayload, delay time.Duration) error
}

// AddressInput 收货地址输入
type AddressInput struct {
	PostalCode     string `json:"cep" validate:"required,len=8,numeric"`
	Street         string `json:"rua" validate:"required,max=200"`
	Number         string `json:"numero" validate:"required,max=20"`
	Complement     string `json:"complemento" validate:"max=100"`
	Neighborhood   string `json:"bairro" validate:"required,max=100"`
	City           string `json:"cidade" validate:"required,max=100"`
	State          string `json:"estado" validate:"required,len=2,alpha"`
	Kind           string `json:"tipo" validate:"omitempty,oneof=casa trabalho outro"`
	DeliveryMethod string `json:"metodo_entrega" validate:"omitempty,oneof=padrao expresso retirada"`
}

// AddressResult 地址保存结果
type AddressResult struct {
	AddressID      uint64         `json:"endereco_id"`
	UserID         uint64         `json:"user_id"`
	DeliveryOption DeliveryOption `json:"delivery_option"`
}

// StartCheckoutInput 发起支付输入
type StartCheckoutInput struct {
	AddressID      uint64 `json:"endereco_id"`
	DeliveryMethod string `json:"metodo_entrega"`
}

// CheckoutResult 支付会话
type CheckoutResult struct {
	OrderID    uint64         `json:"order_id"`
	SessionID  string         `json:"session_id"`
	URL        string         `json:"url"`
	Subtotal   models.Money   `json:"subtotal"`
	Shipping   DeliveryOption `json:"shipping"`
	GrandTotal models.Money   `json:"grand_total"`
}

// CompleteResult 支付完成结果
type CompleteResult struct {
	OrderID       uint64 `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	OrderStatus   string `json:"order_status"`
	CartCleared   bool   `json:"cart_cleared"`
}

// CheckoutService 收货地址、支付会话与支付确认
type CheckoutService struct {
	backend  CheckoutBackend
	catalog  ProductCatalog
	payments *stripe.Config
	queue    TaskQueue
	validate *validator.Validate
}

// NewCheckoutService 创建结账服务
func NewCheckoutService(backendClient CheckoutBackend, products ProductCatalog, payments *stripe.Config, taskQueue TaskQueue) *CheckoutService {
	return &CheckoutService{
		backend:  backendClient,
		catalog:  products,
		payments: payments,
		queue:    taskQueue,
		validate: validator.New(),
	}
}

// SubmitAddress 校验并保存收货地址
func (s *CheckoutService) SubmitAddress(ctx context.Context, sess *session.Session, input AddressInput) (*AddressResult, error) {
	subject := sess.Subject()
	if !subject.Authenticated() || subject.UserID == 0 {
		return nil, ErrNotAuthenticated
	}
	if sess.Store.Count() == 0 {
		return nil, ErrCartEmpty
	}
	input = normalizeAddress(input)
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddressInvalid, err)
	}
	option, ok := FindDeliveryOption(input.DeliveryMethod)
	if !ok {
		return nil, ErrDeliveryMethodInvalid
	}
	if input.Kind == "" {
		input.Kind = constants.AddressKindHome
	}

	addressID, err := s.backend.CreateAddress(ctx, backend.AddressInput{
		UserID:       subject.UserID,
		PostalCode:   input.PostalCode,
		Street:       input.Street,
		Number:       input.Number,
		Complement:   input.Complement,
		Neighborhood: input.Neighborhood,
		City:         input.City,
		State:        input.State,
		Kind:         input.Kind,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddressSaveFailed, err)
	}
	logger.Infow("checkout_address_saved",
		"session_id", sess.ID,
		"user_id", subject.UserID,
		"address_id", addressID,
		"delivery_method", option.Method,
	)
	return &AddressResult{
		AddressID:      addressID,
		UserID:         subject.UserID,
		DeliveryOption: option,
	}, nil
}

// StartCheckout 记录待支付订单并创建支付会话
func (s *CheckoutService) StartCheckout(ctx context.Context, sess *session.Session, input StartCheckoutInput) (*CheckoutResult, error) {
	subject := sess.Subject()
	if !subject.Authenticated() || subject.UserID == 0 {
		return nil, ErrNotAuthenticated
	}
	if s.payments == nil || !s.payments.Configured() {
		return nil, ErrPaymentNotConfigured
	}
	snapshot := sess.Store.Snapshot()
	if len(snapshot.Lines) == 0 {
		return nil, ErrCartEmpty
	}
	if snapshot.CartID == 0 {
		return nil, ErrCartNotLinked
	}
	if input.AddressID == 0 {
		return nil, ErrAddressRequired
	}
	option, ok := FindDeliveryOption(input.DeliveryMethod)
	if !ok {
		return nil, ErrDeliveryMethodInvalid
	}

	lines, subtotal, err := s.priceLines(ctx, sess.ID, snapshot.Lines)
	if err != nil {
		return nil, err
	}
	items := make([]backend.OrderItem, 0, len(lines))
	lineItems := make([]stripe.LineItem, 0, len(lines)+1)
	for _, line := range lines {
		items = append(items, backend.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
		lineItems = append(lineItems, stripe.LineItem{
			Name:       line.Name,
			UnitAmount: line.UnitPrice.Decimal,
			Quantity:   line.Quantity,
			ImageURL:   line.ImageRef,
		})
	}
	lineItems = append(lineItems, stripe.LineItem{
		Name:       "Frete: " + option.Name,
		UnitAmount: option.Price.Decimal,
		Quantity:   1,
	})
	grandTotal := subtotal.Plus(option.Price)

	order, err := s.backend.CreateOrder(ctx, backend.CreateOrderInput{
		UserID:    subject.UserID,
		CartID:    snapshot.CartID,
		AddressID: input.AddressID,
		Items:     items,
		Shipping: backend.Shipping{
			Method:        option.Method,
			Name:          option.Name,
			Price:         option.Price,
			EstimatedTime: option.EstimatedTime,
		},
		TotalPrice: grandTotal,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %w", ErrCheckoutFailed, err)
	}

	created, err := stripe.CreatePayment(ctx, s.payments, stripe.CreateInput{
		OrderID:       order.ID,
		UserID:        subject.UserID,
		CustomerEmail: subject.Email,
		Items:         lineItems,
	})
	if err != nil {
		logger.Warnw("checkout_payment_session_failed", "session_id", sess.ID, "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: payment session: %w", ErrCheckoutFailed, err)
	}
	logger.Infow("checkout_payment_session_created",
		"session_id", sess.ID,
		"user_id", subject.UserID,
		"order_id", order.ID,
		"payment_session_id", created.SessionID,
		"grand_total", grandTotal.String(),
	)
	return &CheckoutResult{
		OrderID:    order.ID,
		SessionID:  created.SessionID,
		URL:        created.URL,
		Subtotal:   subtotal,
		Shipping:   option,
		GrandTotal: grandTotal,
	}, nil
}

// priceLines 按目录重新定价，购物车中保存的价格不参与扣款
func (s *CheckoutService) priceLines(ctx context.Context, sessionID string, lines []cart.Line) ([]cart.Line, models.Money, error) {
	priced := make([]cart.Line, 0, len(lines))
	subtotal := models.Money{}
	for _, line := range lines {
		product, err := resolveProduct(ctx, s.catalog, line.ProductID)
		if err != nil {
			return nil, models.Money{}, err
		}
		if !product.UnitPrice.Equal(line.UnitPrice.Decimal) {
			logger.Infow("checkout_line_repriced",
				"session_id", sessionID,
				"product_id", line.ProductID,
				"cart_price", line.UnitPrice.String(),
				"catalog_price", product.UnitPrice.String(),
			)
		}
		next := line
		next.Name = product.Name
		next.UnitPrice = product.UnitPrice
		next.ImageRef = product.ImageRef
		priced = append(priced, next)
		subtotal = subtotal.Plus(next.Subtotal())
	}
	return priced, subtotal, nil
}

// CompleteCheckout 支付跳转回来后核验支付会话，成功时清空购物车
func (s *CheckoutService) CompleteCheckout(ctx context.Context, sess *session.Session, paymentSessionID string) (*CompleteResult, error) {
	subject := sess.Subject()
	if !subject.Authenticated() || subject.UserID == 0 {
		return nil, ErrNotAuthenticated
	}
	if s.payments == nil || !s.payments.Configured() {
		return nil, ErrPaymentNotConfigured
	}
	paymentSessionID = strings.TrimSpace(paymentSessionID)
	if paymentSessionID == "" {
		return nil, ErrPaymentVerifyFailed
	}
	queried, err := stripe.QueryPayment(ctx, s.payments, paymentSessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentVerifyFailed, err)
	}
	if queried.OrderID == 0 {
		return nil, fmt.Errorf("%w: session has no order", ErrPaymentVerifyFailed)
	}
	if queried.UserID != 0 && queried.UserID != subject.UserID {
		return nil, ErrPaymentOrderMismatch
	}

	orderStatus, settled := orderStatusForPayment(queried.Status)
	if !settled {
		return nil, ErrPaymentNotSettled
	}
	s.applyOrderStatus(ctx, queried.OrderID, orderStatus)

	result := &CompleteResult{
		OrderID:       queried.OrderID,
		PaymentStatus: queried.Status,
		OrderStatus:   orderStatus,
	}
	if queried.Status != stripe.StatusSuccess {
		return result, nil
	}
	if err := sess.Sync.Clear(ctx); err != nil {
		logger.Warnw("checkout_cart_clear_failed", "session_id", sess.ID, "order_id", queried.OrderID, "error", err)
		return result, nil
	}
	result.CartCleared = true
	logger.Infow("checkout_completed", "session_id", sess.ID, "user_id", subject.UserID, "order_id", queried.OrderID)
	return result, nil
}

// HandleWebhook 校验 Stripe 回调并投递支付确认任务，队列不可用时同步处理
func (s *CheckoutService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (*stripe.WebhookResult, error) {
	if s.payments == nil || !s.payments.Configured() {
		return nil, ErrPaymentNotConfigured
	}
	event, err := stripe.VerifyAndParseWebhook(s.payments, headers, body, time.Now())
	if err != nil {
		return nil, err
	}
	if event.OrderID == 0 {
		logger.Debugw("payment_webhook_skip_no_order", "event_id", event.EventID, "event_type", event.EventType)
		return event, nil
	}
	payload := queue.PaymentConfirmPayload{
		OrderID:   event.OrderID,
		SessionID: firstNonEmpty(event.SessionID, event.PaymentIntentID),
		Status:    event.Status,
		EventID:   event.EventID,
	}
	if s.queue != nil && s.queue.Enabled() {
		err := s.queue.EnqueuePaymentConfirm(payload)
		if err == nil {
			return event, nil
		}
		logger.Warnw("payment_webhook_enqueue_failed", "event_id", event.EventID, "order_id", event.OrderID, "error", err)
	}
	if err := s.ConfirmPayment(ctx, payload); err != nil {
		return nil, err
	}
	return event, nil
}

// ConfirmPayment 按支付结果推进后端订单状态
func (s *CheckoutService) ConfirmPayment(ctx context.Context, payload queue.PaymentConfirmPayload) error {
	if payload.OrderID == 0 {
		return nil
	}
	orderStatus, settled := orderStatusForPayment(payload.Status)
	if !settled {
		logger.Debugw("payment_confirm_skip_pending", "order_id", payload.OrderID, "status", payload.Status)
		return nil
	}
	if err := s.backend.UpdateOrderStatus(ctx, payload.OrderID, orderStatus); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			logger.Warnw("payment_confirm_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		return fmt.Errorf("%w: %w", ErrOrderUpdateFailed, err)
	}
	logger.Infow("payment_confirmed", "order_id", payload.OrderID, "status", orderStatus, "event_id", payload.EventID)
	return nil
}

// ApplyOrderStatus 回写订单状态，供异步任务重试使用
func (s *CheckoutService) ApplyOrderStatus(ctx context.Context, payload queue.OrderStatusUpdatePayload) error {
	if payload.OrderID == 0 || !IsKnownOrderStatus(payload.Status) {
		return nil
	}
	if err := s.backend.UpdateOrderStatus(ctx, payload.OrderID, payload.Status); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrOrderUpdateFailed, err)
	}
	return nil
}

// applyOrderStatus 同步回写失败时转入异步重试
func (s *CheckoutService) applyOrderStatus(ctx context.Context, orderID uint64, status string) {
	err := s.backend.UpdateOrderStatus(ctx, orderID, status)
	if err == nil {
		return
	}
	logger.Warnw("checkout_order_status_update_failed", "order_id", orderID, "status", status, "error", err)
	if s.queue == nil || !s.queue.Enabled() {
		return
	}
	payload := queue.OrderStatusUpdatePayload{OrderID: orderID, Status: status}
	if err := s.queue.EnqueueOrderStatusUpdate(payload, statusRetryDelay); err != nil {
		logger.Errorw("checkout_order_status_enqueue_failed", "order_id", orderID, "status", status, "error", err)
	}
}

func orderStatusForPayment(paymentStatus string) (string, bool) {
	switch paymentStatus {
	case stripe.StatusSuccess:
		return constants.OrderStatusReceived, true
	case stripe.StatusFailed, stripe.StatusExpired:
		return constants.OrderStatusPaymentFailed, true
	default:
		return "", false
	}
}

func normalizeAddress(input AddressInput) AddressInput {
	if digits, err := postal.NormalizeCode(input.PostalCode); err == nil {
		input.PostalCode = digits
	} else {
		input.PostalCode = strings.TrimSpace(input.PostalCode)
	}
	input.Street = strings.TrimSpace(input.Street)
	input.Number = strings.TrimSpace(input.Number)
	input.Complement = strings.TrimSpace(input.Complement)
	input.Neighborhood = strings.TrimSpace(input.Neighborhood)
	input.City = strings.TrimSpace(input.City)
	input.State = strings.ToUpper(strings.TrimSpace(input.State))
	input.Kind = strings.ToLower(strings.TrimSpace(input.Kind))
	input.DeliveryMethod = strings.ToLower(strings.TrimSpace(input.DeliveryMethod))
	return input
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}
