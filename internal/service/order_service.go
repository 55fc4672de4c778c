package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/logger"
)

var orderStatuses = []string{
	constants.OrderStatusAwaitingPayment,
	constants.OrderStatusReceived,
	constants.OrderStatusPicking,
	constants.OrderStatusOutForDelivery,
	constants.OrderStatusInTransit,
	constants.OrderStatusDelivered,
	constants.OrderStatusPaymentFailed,
}

// OrderBackend 订单后端资源
type OrderBackend interface {
	ListOrdersByUser(ctx context.Context, userID uint64) ([]backend.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint64, status string) error
}

// OrderView 订单历史条目
type OrderView struct {
	backend.Order
	EstimatedDelivery string `json:"entregaEstimada"`
}

// OrderService 订单历史与状态推进
type OrderService struct {
	backend OrderBackend
}

// NewOrderService 创建订单服务
func NewOrderService(backendClient OrderBackend) *OrderService {
	return &OrderService{backend: backendClient}
}

// ListForSubject 当前用户订单，按下单时间倒序
func (s *OrderService) ListForSubject(ctx context.Context, subject identity.Subject) ([]OrderView, error) {
	if !subject.Authenticated() || subject.UserID == 0 {
		return nil, ErrNotAuthenticated
	}
	orders, err := s.backend.ListOrdersByUser(ctx, subject.UserID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return []OrderView{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrOrderFetchFailed, err)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Date.Equal(orders[j].Date) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].Date.After(orders[j].Date)
	})
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, OrderView{
			Order:             order,
			EstimatedDelivery: EstimateDelivery(order.Date, order.Shipping.EstimatedTime),
		})
	}
	return views, nil
}

// UpdateStatus 推进订单状态，调用方需已通过运营权限校验
func (s *OrderService) UpdateStatus(ctx context.Context, operator identity.Subject, orderID uint64, status string) error {
	if orderID == 0 {
		return ErrOrderNotFound
	}
	status = strings.TrimSpace(status)
	if !IsKnownOrderStatus(status) {
		return ErrOrderStatusInvalid
	}
	if err := s.backend.UpdateOrderStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("%w: %w", ErrOrderUpdateFailed, err)
	}
	logger.Infow("order_status_updated",
		"order_id", orderID,
		"status", status,
		"operator_subject_id", operator.SubjectID,
	)
	return nil
}

// OrderStatuses 全部订单状态
func OrderStatuses() []string {
	out := make([]string, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// IsKnownOrderStatus 判断订单状态是否合法
func IsKnownOrderStatus(status string) bool {
	for _, known := range orderStatuses {
		if known == status {
			return true
		}
	}
	return false
}
