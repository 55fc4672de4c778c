package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/musicfy-storefront/internal/backend"
)

type remoteCall struct {
	Op        string
	CartID    uint64
	ProductID uint64
	Quantity  int
	Items     []backend.CartItemInput
}

// fakeRemote 记录调用并按操作名注入失败
type fakeRemote struct {
	mu      sync.Mutex
	calls   []remoteCall
	carts   map[uint64]*backend.Cart // userID -> cart
	nextID  uint64
	failOn  map[string]error
	delay   time.Duration
	active  map[uint64]int
	overlap atomic.Bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		carts:  make(map[uint64]*backend.Cart),
		nextID: 100,
		failOn: make(map[string]error),
		active: make(map[uint64]int),
	}
}

var errRemoteDown = errors.New("remote down")

func (f *fakeRemote) record(call remoteCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.failOn[call.Op]
	f.active[call.ProductID]++
	if call.ProductID != 0 && f.active[call.ProductID] > 1 {
		f.overlap.Store(true)
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.active[call.ProductID]--
	f.mu.Unlock()
	return err
}

func (f *fakeRemote) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Op)
	}
	return out
}

func (f *fakeRemote) last() remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeRemote) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeRemote) CreateCart(_ context.Context, userID uint64, item backend.CartItemInput) (*backend.Cart, error) {
	if err := f.record(remoteCall{Op: "create", ProductID: item.ProductID, Quantity: item.Quantity}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cart := &backend.Cart{ID: f.nextID, UserID: userID, Items: []backend.CartItem{{ProductID: item.ProductID, Quantity: item.Quantity}}}
	f.carts[userID] = cart
	return cart, nil
}

func (f *fakeRemote) GetCartByUserID(_ context.Context, userID uint64) (*backend.Cart, error) {
	if err := f.record(remoteCall{Op: "get"}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[userID]
	if !ok {
		return nil, &backend.RemoteError{Resource: "carts", Operation: "get_by_user", Status: 404, Message: "not found"}
	}
	copied := *cart
	copied.Items = append([]backend.CartItem(nil), cart.Items...)
	return &copied, nil
}

func (f *fakeRemote) AddItem(_ context.Context, cartID uint64, item backend.CartItemInput) error {
	return f.record(remoteCall{Op: "add", CartID: cartID, ProductID: item.ProductID, Quantity: item.Quantity})
}

func (f *fakeRemote) RemoveItem(_ context.Context, cartID, productID uint64) error {
	return f.record(remoteCall{Op: "remove", CartID: cartID, ProductID: productID})
}

func (f *fakeRemote) IncrementItem(_ context.Context, cartID, productID uint64) error {
	return f.record(remoteCall{Op: "increment", CartID: cartID, ProductID: productID})
}

func (f *fakeRemote) DecrementItem(_ context.Context, cartID, productID uint64) error {
	return f.record(remoteCall{Op: "decrement", CartID: cartID, ProductID: productID})
}

func (f *fakeRemote) ClearCart(_ context.Context, cartID uint64) error {
	return f.record(remoteCall{Op: "clear", CartID: cartID})
}

func (f *fakeRemote) MergeItems(_ context.Context, cartID uint64, items []backend.CartItemInput) (*backend.Cart, error) {
	if err := f.record(remoteCall{Op: "merge", CartID: cartID, Items: append([]backend.CartItemInput(nil), items...)}); err != nil {
		return nil, err
	}
	return &backend.Cart{ID: cartID}, nil
}

func (f *fakeRemote) String() string {
	return fmt.Sprintf("%v", f.ops())
}

// failingKV 可按需让写入或删除失败的键值槽
type failingKV struct {
	*MemoryKV
	failSet    atomic.Bool
	failDelete atomic.Bool
}

func (k *failingKV) Delete(ctx context.Context, keys ...string) error {
	if k.failDelete.Load() {
		return errors.New("storage offline")
	}
	return k.MemoryKV.Delete(ctx, keys...)
}

func (k *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if k.failSet.Load() {
		return errors.New("disk full")
	}
	return k.MemoryKV.Set(ctx, key, value)
}
