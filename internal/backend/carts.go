package backend

import (
	"context"
	"fmt"
	"net/http"
)

const resourceCarts = "carts"

type createCartRequest struct {
	ProductID uint64  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UserID    *uint64 `json:"userId,omitempty"`
}

type mergeRequest struct {
	Items []CartItemInput `json:"items"`
}

// CreateCart 以首个商品行创建购物车，userID 为 0 时创建匿名购物车
func (c *Client) CreateCart(ctx context.Context, userID uint64, item CartItemInput) (*Cart, error) {
	if err := validateInput(item); err != nil {
		return nil, err
	}
	req := createCartRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	if userID > 0 {
		req.UserID = &userID
	}
	var cart Cart
	if err := c.do(ctx, call{
		resource:  resourceCarts,
		operation: "create",
		method:    http.MethodPost,
		path:      "/api/carrinho/criar",
		body:      req,
	}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCartByUserID 查询用户购物车，不存在时返回 ErrNotFound
func (c *Client) GetCartByUserID(ctx context.Context, userID uint64) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, call{
		resource:  resourceCarts,
		operation: "get_by_user",
		method:    http.MethodGet,
		path:      fmt.Sprintf("/api/carrinho/user/%d", userID),
	}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem 增加商品数量
func (c *Client) AddItem(ctx context.Context, cartID uint64, item CartItemInput) error {
	if err := validateInput(item); err != nil {
		return err
	}
	return c.do(ctx, call{
		resource:  resourceCarts,
		operation: "add_item",
		method:    http.MethodPost,
		path:      fmt.Sprintf("/api/carrinho/%d/adicionar", cartID),
		body:      item,
	}, nil)
}

// RemoveItem 移除商品行
func (c *Client) RemoveItem(ctx context.Context, cartID, productID uint64) error {
	return c.do(ctx, call{
		resource:  resourceCarts,
		operation: "remove_item",
		method:    http.MethodDelete,
		path:      fmt.Sprintf("/api/carrinho/%d/remover/%d", cartID, productID),
	}, nil)
}

// IncrementItem 商品数量加一
func (c *Client) IncrementItem(ctx context.Context, cartID, productID uint64) error {
	return c.do(ctx, call{
		resource:  resourceCarts,
		operation: "increment_item",
		method:    http.MethodPatch,
		path:      fmt.Sprintf("/api/carrinho/%d/incrementar/%d", cartID, productID),
	}, nil)
}

// DecrementItem 商品数量减一
func (c *Client) DecrementItem(ctx context.Context, cartID, productID uint64) error {
	return c.do(ctx, call{
		resource:  resourceCarts,
		operation: "decrement_item",
		method:    http.MethodPatch,
		path:      fmt.Sprintf("/api/carrinho/%d/decrementar/%d", cartID, productID),
	}, nil)
}

// ClearCart 清空购物车
func (c *Client) ClearCart(ctx context.Context, cartID uint64) error {
	return c.do(ctx, call{
		resource:  resourceCarts,
		operation: "clear",
		method:    http.MethodDelete,
		path:      fmt.Sprintf("/api/carrinho/%d/limpar", cartID),
	}, nil)
}

// MergeItems 将多行商品合并进购物车
func (c *Client) MergeItems(ctx context.Context, cartID uint64, items []CartItemInput) (*Cart, error) {
	for _, item := range items {
		if err := validateInput(item); err != nil {
			return nil, err
		}
	}
	var cart Cart
	if err := c.do(ctx, call{
		resource:  resourceCarts,
		operation: "merge",
		method:    http.MethodPost,
		path:      fmt.Sprintf("/api/carrinho/%d/merge", cartID),
		body:      mergeRequest{Items: items},
	}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func validateInput(item CartItemInput) error {
	if item.ProductID == 0 {
		return fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return nil
}
