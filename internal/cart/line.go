package cart

import (
	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/models"
)

// Product 加入购物车时的商品快照
type Product struct {
	ID        uint64       `json:"product_id"`
	Name      string       `json:"name"`
	UnitPrice models.Money `json:"unit_price"`
	ImageRef  string       `json:"image_ref"`
}

// Line 购物车行，同一商品最多一行且数量恒为正
type Line struct {
	ProductID uint64       `json:"product_id"`
	Name      string       `json:"name"`
	UnitPrice models.Money `json:"unit_price"`
	ImageRef  string       `json:"image_ref"`
	Quantity  int          `json:"quantity"`
}

// Subtotal 行小计
func (l Line) Subtotal() models.Money {
	return l.UnitPrice.Times(l.Quantity)
}

// Product 行对应的商品信息
func (l Line) Product() Product {
	return Product{ID: l.ProductID, Name: l.Name, UnitPrice: l.UnitPrice, ImageRef: l.ImageRef}
}

func newLine(p Product, quantity int) Line {
	return Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		ImageRef:  p.ImageRef,
		Quantity:  quantity,
	}
}

// Snapshot 购物车快照
type Snapshot struct {
	CartID     uint64       `json:"cart_id,omitempty"`
	Lines      []Line       `json:"lines"`
	Count      int          `json:"count"`
	TotalPrice models.Money `json:"total_price"`
}

func fromRemote(items []backend.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			ImageRef:  item.Img,
			Quantity:  item.Quantity,
		})
	}
	return normalizeLines(lines)
}

func toInputs(lines []Line) []backend.CartItemInput {
	inputs := make([]backend.CartItemInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, backend.CartItemInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return inputs
}

// normalizeLines 合并重复商品并丢弃非正数量的行，保持首次出现顺序
func normalizeLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	index := make(map[uint64]int, len(lines))
	for _, line := range lines {
		if line.ProductID == 0 || line.Quantity <= 0 {
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}
