package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/catalog"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/models"
	"github.com/musicfy-storefront/internal/queue"
	"github.com/musicfy-storefront/internal/session"

	"github.com/hibiken/asynq"
)

type statusUpdate struct {
	OrderID uint64
	Status  string
}

// fakeBackend 内存版远端后端
type fakeBackend struct {
	mu sync.Mutex

	carts      map[uint64]*backend.Cart // userID -> cart
	users      map[string]*backend.User
	nextCartID uint64
	nextUserID uint64
	nextOrder  uint64

	addresses []backend.AddressInput
	orders    []backend.CreateOrderInput
	history   map[uint64][]backend.Order
	updates   []statusUpdate
	cleared   []uint64

	failUsers  error
	failGet    error
	failStatus error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		carts:      make(map[uint64]*backend.Cart),
		users:      make(map[string]*backend.User),
		history:    make(map[uint64][]backend.Order),
		nextCartID: 900,
		nextUserID: 10,
		nextOrder:  7000,
	}
}

func (f *fakeBackend) EnsureUser(_ context.Context, subjectID, fullName, email string) (*backend.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers != nil {
		return nil, f.failUsers
	}
	if user, ok := f.users[subjectID]; ok {
		return user, nil
	}
	user := &backend.User{ID: f.nextUserID, FullName: fullName, Email: email, FirebaseUID: subjectID}
	f.nextUserID++
	f.users[subjectID] = user
	return user, nil
}

func (f *fakeBackend) CreateCart(_ context.Context, userID uint64, item backend.CartItemInput) (*backend.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCartID++
	c := &backend.Cart{ID: f.nextCartID, UserID: userID, Items: []backend.CartItem{{ProductID: item.ProductID, Quantity: item.Quantity}}}
	f.carts[userID] = c
	return c, nil
}

func (f *fakeBackend) GetCartByUserID(_ context.Context, userID uint64) (*backend.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	c, ok := f.carts[userID]
	if !ok {
		return nil, &backend.RemoteError{Resource: "carts", Operation: "get_by_user", Status: 404}
	}
	out := *c
	out.Items = append([]backend.CartItem(nil), c.Items...)
	return &out, nil
}

func (f *fakeBackend) AddItem(context.Context, uint64, backend.CartItemInput) error { return nil }
func (f *fakeBackend) RemoveItem(context.Context, uint64, uint64) error { return nil }
func (f *fakeBackend) IncrementItem(context.Context, uint64, uint64) error { return nil }
func (f *fakeBackend) DecrementItem(context.Context, uint64, uint64) error { return nil }

func (f *fakeBackend) ClearCart(_ context.Context, cartID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, cartID)
	return nil
}

func (f *fakeBackend) MergeItems(_ context.Context, cartID uint64, _ []backend.CartItemInput) (*backend.Cart, error) {
	return &backend.Cart{ID: cartID}, nil
}

func (f *fakeBackend) CreateAddress(_ context.Context, input backend.AddressInput) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = append(f.addresses, input)
	return uint64(300 + len(f.addresses)), nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, input backend.CreateOrderInput) (*backend.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextOrder++
	f.orders = append(f.orders, input)
	return &backend.Order{ID: f.nextOrder, UserID: input.UserID, Status: constants.OrderStatusAwaitingPayment}, nil
}

func (f *fakeBackend) ListOrdersByUser(_ context.Context, userID uint64) ([]backend.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Order(nil), f.history[userID]...), nil
}

func (f *fakeBackend) UpdateOrderStatus(_ context.Context, orderID uint64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatus != nil {
		return f.failStatus
	}
	f.updates = append(f.updates, statusUpdate{OrderID: orderID, Status: status})
	return nil
}

func (f *fakeBackend) statusUpdates() []statusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statusUpdate(nil), f.updates...)
}

// fakeProvider 按邮箱返回固定主体
type fakeProvider struct {
	mu       sync.Mutex
	err      error
	signOuts int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, _ string) (identity.Subject, error) {
	if p.err != nil {
		return identity.Subject{}, p.err
	}
	return subjectFor(email, constants.SignInMethodPassword), nil
}

func (p *fakeProvider) SignInWithFederated(_ context.Context, idToken string) (identity.Subject, error) {
	if p.err != nil {
		return identity.Subject{}, p.err
	}
	return subjectFor(idToken+"@federated.test", constants.SignInMethodFederated), nil
}

func (p *fakeProvider) SignUpWithPassword(_ context.Context, input identity.SignUpInput) (identity.Subject, error) {
	if p.err != nil {
		return identity.Subject{}, p.err
	}
	return subjectFor(input.Email, constants.SignInMethodPassword), nil
}

func (p *fakeProvider) SignOut(context.Context, identity.Subject) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	return nil
}

func subjectFor(email, method string) identity.Subject {
	return identity.Subject{
		Kind:      constants.SubjectKindAuthenticated,
		SubjectID: "uid-" + email,
		Email:     email,
		Provider:  method,
	}
}

// fakeQueue 记录入队任务
type fakeQueue struct {
	mu       sync.Mutex
	enabled  bool
	confirms []queue.PaymentConfirmPayload
	retries  []queue.OrderStatusUpdatePayload
	err      error
}

func (q *fakeQueue) Enabled() bool { return q.enabled }

func (q *fakeQueue) EnqueuePaymentConfirm(payload queue.PaymentConfirmPayload, _ ...asynq.Option) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.confirms = append(q.confirms, payload)
	return nil
}

func (q *fakeQueue) EnqueueOrderStatusUpdate(payload queue.OrderStatusUpdatePayload, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retries = append(q.retries, payload)
	return nil
}

func newTestRegistry(t *testing.T, remote cart.Remote) *session.Registry {
	t.Helper()
	registry, err := session.NewRegistry(cart.NewMemoryKV(), remote, session.Options{Secret: "service-test-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}
	return registry
}

func newTestSession(t *testing.T, registry *session.Registry) *session.Session {
	t.Helper()
	sess, _, _, err := registry.Create(context.Background())
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	return sess
}

// signIn 直接切换为已登录主体
func signIn(t *testing.T, registry *session.Registry, sess *session.Session, userID uint64) {
	t.Helper()
	subject := identity.Subject{
		Kind:      constants.SubjectKindAuthenticated,
		SubjectID: fmt.Sprintf("uid-%d", userID),
		UserID:    userID,
		Email:     fmt.Sprintf("user%d@musicfy.test", userID),
	}
	if err := registry.SetSubject(context.Background(), sess, subject); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
}

// fakeCatalog 内存商品目录
type fakeCatalog struct {
	mu       sync.Mutex
	products map[uint64]catalog.Product
	err      error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[uint64]catalog.Product{
		1: {ID: 1, Title: "Guitarra", Price: models.MustMoney("100.00"), Image: "https://img.test/1.jpg"},
		2: {ID: 2, Title: "Bateria", Price: models.MustMoney("250.50"), Image: "https://img.test/2.jpg"},
		3: {ID: 3, Title: "Amplificador", Price: models.MustMoney("185.00"), Image: "https://img.test/3.jpg"},
	}}
}

func (c *fakeCatalog) Get(_ context.Context, productID uint64) (*catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	product, ok := c.products[productID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &product, nil
}

func (c *fakeCatalog) setPrice(productID uint64, price string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	product := c.products[productID]
	product.Price = models.MustMoney(price)
	c.products[productID] = product
}

func (c *fakeCatalog) remove(productID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, productID)
}

var (
	guitar = CartItemInput{ProductID: 1}
	drums  = CartItemInput{ProductID: 2}
)

func withQuantity(input CartItemInput, quantity int) CartItemInput {
	input.Quantity = quantity
	return input
}
