package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/musicfy-storefront/internal/models"
)

// User 后端用户
type User struct {
	ID          uint64 `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	FirebaseUID string `json:"firebaseUid"`
}

func (u *User) validate() error {
	if u.ID == 0 {
		return errors.New("user id is missing")
	}
	return nil
}

// CartItem 后端购物车行
type CartItem struct {
	ProductID uint64       `json:"productId"`
	Name      string       `json:"name"`
	Price     models.Money `json:"price"`
	Img       string       `json:"img"`
	Quantity  int          `json:"quantity"`
}

// CartItemInput 购物车写入项
type CartItemInput struct {
	ProductID uint64 `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Cart 后端购物车
type Cart struct {
	ID         uint64       `json:"id"`
	UserID     uint64       `json:"userId"`
	Items      []CartItem   `json:"items"`
	TotalPrice models.Money `json:"totalPrice"`
}

func (c *Cart) validate() error {
	if c.ID == 0 {
		return errors.New("cart id is missing")
	}
	for i, item := range c.Items {
		if item.ProductID == 0 {
			return fmt.Errorf("cart item %d has no product id", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("cart item %d has non-positive quantity %d", i, item.Quantity)
		}
	}
	return nil
}

// AddressInput 收货地址写入项
type AddressInput struct {
	UserID       uint64 `json:"userId"`
	PostalCode   string `json:"cep"`
	Street       string `json:"rua"`
	Number       string `json:"numero"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro"`
	City         string `json:"cidade"`
	State        string `json:"estado"`
	Kind         string `json:"tipo"`
}

// Address 已保存的收货地址
type Address struct {
	ID uint64 `json:"id"`
}

func (a *Address) validate() error {
	if a.ID == 0 {
		return errors.New("address id is missing")
	}
	return nil
}

// OrderItem 订单行
type OrderItem struct {
	ProductID uint64       `json:"productId,omitempty"`
	Name      string       `json:"nomeProduto"`
	Quantity  int          `json:"quantidade"`
	UnitPrice models.Money `json:"precoUnitario"`
}

// Shipping 订单配送信息
type Shipping struct {
	Method        string       `json:"metodo"`
	Name          string       `json:"nome"`
	Price         models.Money `json:"preco"`
	EstimatedTime string       `json:"prazoEstimado"`
}

// CreateOrderInput 创建待支付订单
type CreateOrderInput struct {
	UserID     uint64       `json:"userId"`
	CartID     uint64       `json:"cartId"`
	AddressID  uint64       `json:"enderecoId"`
	Items      []OrderItem  `json:"itens"`
	Shipping   Shipping     `json:"frete"`
	TotalPrice models.Money `json:"valorTotal"`
}

// Order 后端订单
type Order struct {
	ID         uint64       `json:"id"`
	UserID     uint64       `json:"userId"`
	Date       time.Time    `json:"data"`
	Status     string       `json:"status"`
	Items      []OrderItem  `json:"itens"`
	Shipping   Shipping     `json:"frete"`
	TotalPrice models.Money `json:"valorTotal"`
}

func (o *Order) validate() error {
	if o.ID == 0 {
		return errors.New("order id is missing")
	}
	return nil
}

type orderList []Order

func (l *orderList) validate() error {
	for i := range *l {
		if err := (*l)[i].validate(); err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
	}
	return nil
}
