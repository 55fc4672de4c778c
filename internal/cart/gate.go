package cart

import (
	"context"
	"sync"
)

// gate 串行化同一商品行上的变更；整车操作独占
type gate struct {
	cart  sync.RWMutex
	mu    sync.Mutex
	slots map[uint64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newGate() *gate {
	return &gate{slots: make(map[uint64]*slot)}
}

// line 获取商品行锁，期间持有整车共享锁
func (g *gate) line(ctx context.Context, productID uint64) (func(), error) {
	g.cart.RLock()

	g.mu.Lock()
	s, ok := g.slots[productID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		g.slots[productID] = s
	}
	s.refs++
	g.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		g.drop(productID, s)
		g.cart.RUnlock()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			g.drop(productID, s)
			g.cart.RUnlock()
		})
	}, nil
}

// all 获取整车独占锁
func (g *gate) all() func() {
	g.cart.Lock()
	var once sync.Once
	return func() {
		once.Do(g.cart.Unlock)
	}
}

func (g *gate) drop(productID uint64, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(g.slots, productID)
	}
}
