package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const resourceOrders = "orders"

// CreateOrder 记录待支付订单
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	var order Order
	if err := c.do(ctx, call{
		resource:  resourceOrders,
		operation: "create",
		method:    http.MethodPost,
		path:      "/api/pedidos",
		body:      input,
	}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUser 查询用户订单
func (c *Client) ListOrdersByUser(ctx context.Context, userID uint64) ([]Order, error) {
	var orders orderList
	if err := c.do(ctx, call{
		resource:  resourceOrders,
		operation: "list_by_user",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/api/pedidos/usuario/%d", userID),
	}, &orders); err != nil {
		return nil, err
	}
	return []Order(orders), nil
}

// UpdateOrderStatus 更新订单状态
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID uint64, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidInput)
	}
	return c.do(ctx, call{
		resource:  resourceOrders,
		operation: "update_status",
		method:    http.MethodPatch,
		path:      fmt.Sprintf("/api/pedidos/%d/status", orderID),
		body:      map[string]string{"status": status},
	}, nil)
}
