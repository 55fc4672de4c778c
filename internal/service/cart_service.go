package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/catalog"
	"github.com/musicfy-storefront/internal/session"
)

// CartItemInput 购物车写入输入；名称、价格与图片只取自商品目录
type CartItemInput struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ProductCatalog 商品目录
type ProductCatalog interface {
	Get(ctx context.Context, productID uint64) (*catalog.Product, error)
}

// CartService 购物车服务，所有写操作经过会话的同步器
type CartService struct {
	catalog ProductCatalog
}

// NewCartService 创建购物车服务
func NewCartService(products ProductCatalog) *CartService {
	return &CartService{catalog: products}
}

// Snapshot 获取购物车快照
func (s *CartService) Snapshot(sess *session.Session) cart.Snapshot {
	return sess.Store.Snapshot()
}

// Add 加入购物车，未指定数量时按 1 件处理
func (s *CartService) Add(ctx context.Context, sess *session.Session, input CartItemInput) (cart.Snapshot, error) {
	product, err := resolveProduct(ctx, s.catalog, input.ProductID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	if err := sess.Sync.Add(ctx, product, quantity); err != nil {
		return sess.Store.Snapshot(), err
	}
	return sess.Store.Snapshot(), nil
}

// SetQuantity 设置数量，数量不大于 0 时删除该行
func (s *CartService) SetQuantity(ctx context.Context, sess *session.Session, input CartItemInput) (cart.Snapshot, error) {
	if input.ProductID == 0 {
		return cart.Snapshot{}, ErrInvalidProduct
	}
	if input.Quantity <= 0 {
		return s.Remove(ctx, sess, input.ProductID)
	}
	var product cart.Product
	if existing, ok := sess.Store.Line(input.ProductID); ok {
		product = existing.Product()
	} else {
		resolved, err := resolveProduct(ctx, s.catalog, input.ProductID)
		if err != nil {
			return cart.Snapshot{}, err
		}
		product = resolved
	}
	if err := sess.Sync.SetQuantity(ctx, product, input.Quantity); err != nil {
		return sess.Store.Snapshot(), err
	}
	return sess.Store.Snapshot(), nil
}

// Remove 删除购物车行
func (s *CartService) Remove(ctx context.Context, sess *session.Session, productID uint64) (cart.Snapshot, error) {
	if productID == 0 {
		return cart.Snapshot{}, ErrInvalidProduct
	}
	if err := sess.Sync.Remove(ctx, productID); err != nil {
		return sess.Store.Snapshot(), err
	}
	return sess.Store.Snapshot(), nil
}

// Clear 清空购物车
func (s *CartService) Clear(ctx context.Context, sess *session.Session) (cart.Snapshot, error) {
	if err := sess.Sync.Clear(ctx); err != nil {
		return sess.Store.Snapshot(), err
	}
	return sess.Store.Snapshot(), nil
}

// resolveProduct 从目录取商品；目录中不存在视为非法商品
func resolveProduct(ctx context.Context, products ProductCatalog, productID uint64) (cart.Product, error) {
	if productID == 0 {
		return cart.Product{}, ErrInvalidProduct
	}
	if products == nil {
		return cart.Product{}, ErrCatalogUnavailable
	}
	item, err := products.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return cart.Product{}, ErrInvalidProduct
		}
		return cart.Product{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	name := strings.TrimSpace(item.Title)
	if name == "" || item.Price.IsNegative() {
		return cart.Product{}, ErrInvalidProduct
	}
	return cart.Product{
		ID:        item.ID,
		Name:      name,
		UnitPrice: item.Price,
		ImageRef:  strings.TrimSpace(item.Image),
	}, nil
}
