package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/models"
)

// 购物车错误
var (
	ErrInvalidProduct  = errors.New("cart: invalid product")
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	ErrPersist         = errors.New("cart: persist failed")
)

// Store 会话购物车状态，每次变更都会完整写回键值槽
type Store struct {
	mu        sync.RWMutex
	kv        KV
	namespace string
	lines     []Line
	cartID    uint64
	carried   map[uint64]int

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
}

// NewStore 创建购物车状态，namespace 通常为会话 ID
func NewStore(kv KV, namespace string) *Store {
	return &Store{
		kv:        kv,
		namespace: namespace,
		watchers:  make(map[int]chan struct{}),
	}
}

// Load 从键值槽恢复购物车；损坏的数据按空购物车处理
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines(ctx, constants.StorageKeyCartItems)
	if err != nil {
		return err
	}
	s.lines = lines

	raw, found, err := s.kv.Get(ctx, s.key(constants.StorageKeyCartID))
	if err != nil {
		return fmt.Errorf("%w: read cart id: %v", ErrPersist, err)
	}
	s.cartID = 0
	if found {
		id, parseErr := strconv.ParseUint(string(raw), 10, 64)
		if parseErr != nil {
			logger.Warnw("cart_store_cart_id_corrupted", "namespace", s.namespace, "error", parseErr)
		} else {
			s.cartID = id
		}
	}

	s.carried = nil
	raw, found, err = s.kv.Get(ctx, s.key(constants.StorageKeyCartCarried))
	if err != nil {
		return fmt.Errorf("%w: read carried lines: %v", ErrPersist, err)
	}
	if found {
		if err := json.Unmarshal(raw, &s.carried); err != nil {
			logger.Warnw("cart_store_carried_corrupted", "namespace", s.namespace, "error", err)
			s.carried = nil
		}
	}
	return nil
}

// Lines 返回购物车行副本
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Line(nil), s.lines...)
}

// Line 返回指定商品行
func (s *Store) Line(productID uint64) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(productID); i >= 0 {
		return s.lines[i], true
	}
	return Line{}, false
}

// Contains 判断商品是否在购物车中
func (s *Store) Contains(productID uint64) bool {
	_, ok := s.Line(productID)
	return ok
}

// Count 返回商品总件数
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice 返回购物车总价
func (s *Store) TotalPrice() models.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalOf(s.lines)
}

// CartID 返回服务端购物车 ID，0 表示未关联
func (s *Store) CartID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartID
}

// Snapshot 返回购物车快照
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, line := range s.lines {
		count += line.Quantity
	}
	return Snapshot{
		CartID:     s.cartID,
		Lines:      append([]Line{}, s.lines...),
		Count:      count,
		TotalPrice: totalOf(s.lines),
	}
}

// AddLine 加入商品；已存在时数量累加
func (s *Store) AddLine(ctx context.Context, p Product, quantity int) (Line, error) {
	if p.ID == 0 {
		return Line{}, ErrInvalidProduct
	}
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]Line(nil), s.lines...)
	i := s.indexOf(p.ID)
	if i >= 0 {
		// 再次加入时以最新商品信息为准
		next[i] = newLine(p, next[i].Quantity+quantity)
	} else {
		i = len(next)
		next = append(next, newLine(p, quantity))
	}
	if err := s.commitLines(ctx, next); err != nil {
		return Line{}, err
	}
	return next[i], nil
}

// RemoveLine 移除商品行，不存在时不做任何事
func (s *Store) RemoveLine(ctx context.Context, productID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return false, nil
	}
	next := make([]Line, 0, len(s.lines)-1)
	next = append(next, s.lines[:i]...)
	next = append(next, s.lines[i+1:]...)
	if err := s.commitLines(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// SetQuantity 设置商品数量，数量非正时移除该行，不存在时插入
func (s *Store) SetQuantity(ctx context.Context, p Product, quantity int) error {
	if p.ID == 0 {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		_, err := s.RemoveLine(ctx, p.ID)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]Line(nil), s.lines...)
	if i := s.indexOf(p.ID); i >= 0 {
		next[i].Quantity = quantity
	} else {
		next = append(next, newLine(p, quantity))
	}
	return s.commitLines(ctx, next)
}

// Clear 清空购物车并解除服务端购物车关联
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx,
		s.key(constants.StorageKeyCartItems),
		s.key(constants.StorageKeyCartID),
		s.key(constants.StorageKeyCartCarried),
	); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrPersist, err)
	}
	s.lines = nil
	s.cartID = 0
	s.carried = nil
	s.notify()
	return nil
}

// AttachCartID 关联服务端购物车 ID
func (s *Store) AttachCartID(ctx context.Context, cartID uint64) error {
	if cartID == 0 {
		return s.DetachCartID(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, s.key(constants.StorageKeyCartID), []byte(strconv.FormatUint(cartID, 10))); err != nil {
		return fmt.Errorf("%w: write cart id: %v", ErrPersist, err)
	}
	s.cartID = cartID
	s.notify()
	return nil
}

// DetachCartID 解除服务端购物车关联；内存中的关联总是先解除，删除持久化键失败时返回错误
func (s *Store) DetachCartID(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartID = 0
	s.notify()
	if err := s.kv.Delete(ctx, s.key(constants.StorageKeyCartID)); err != nil {
		return fmt.Errorf("%w: delete cart id: %v", ErrPersist, err)
	}
	return nil
}

// reset 无条件清空内存状态后再删除持久化键
func (s *Store) reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.cartID = 0
	s.carried = nil
	s.notify()
	if err := s.kv.Delete(ctx,
		s.key(constants.StorageKeyCartItems),
		s.key(constants.StorageKeyCartID),
		s.key(constants.StorageKeyCartCarried),
	); err != nil {
		return fmt.Errorf("%w: reset: %v", ErrPersist, err)
	}
	return nil
}

// Replace 整体替换购物车行与服务端购物车 ID
func (s *Store) Replace(ctx context.Context, lines []Line, cartID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := normalizeLines(lines)
	if err := s.writeLines(ctx, constants.StorageKeyCartItems, next); err != nil {
		return err
	}
	if cartID > 0 {
		if err := s.kv.Set(ctx, s.key(constants.StorageKeyCartID), []byte(strconv.FormatUint(cartID, 10))); err != nil {
			return fmt.Errorf("%w: write cart id: %v", ErrPersist, err)
		}
	} else if err := s.kv.Delete(ctx, s.key(constants.StorageKeyCartID)); err != nil {
		return fmt.Errorf("%w: delete cart id: %v", ErrPersist, err)
	}
	if err := s.kv.Delete(ctx, s.key(constants.StorageKeyCartCarried)); err != nil {
		return fmt.Errorf("%w: delete carried lines: %v", ErrPersist, err)
	}
	s.lines = next
	s.cartID = cartID
	s.carried = nil
	s.notify()
	return nil
}

// MarkCarried 记录登出时保留下来的行，这些数量不会在下次登录时再次合并
func (s *Store) MarkCarried(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	carried := quantities(s.lines)
	if err := s.writeCarried(ctx, carried); err != nil {
		return err
	}
	s.carried = carried
	return nil
}

// GuestLines 返回可合并的访客行（扣除登出时保留的数量）
func (s *Store) GuestLines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, 0, len(s.lines))
	for _, line := range s.lines {
		line.Quantity -= s.carried[line.ProductID]
		if line.Quantity > 0 {
			out = append(out, line)
		}
	}
	return out
}

// Watch 订阅购物车变化通知
func (s *Store) Watch() (<-chan struct{}, func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	ch := make(chan struct{}, 1)
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.watchMu.Lock()
			defer s.watchMu.Unlock()
			delete(s.watchers, id)
			close(ch)
		})
	}
}

// restoreLine 回滚单个商品行到变更前的状态
func (s *Store) restoreLine(ctx context.Context, productID uint64, prev Line, existed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]Line(nil), s.lines...)
	i := s.indexOf(productID)
	switch {
	case existed && i >= 0:
		next[i] = prev
	case existed:
		next = append(next, prev)
	case i >= 0:
		next = append(next[:i], next[i+1:]...)
	default:
		return nil
	}
	return s.commitLines(ctx, next)
}

func (s *Store) commitLines(ctx context.Context, next []Line) error {
	if err := s.writeLines(ctx, constants.StorageKeyCartItems, next); err != nil {
		return err
	}
	s.lines = next
	if clamped, changed := clampCarried(s.carried, next); changed {
		if err := s.writeCarried(ctx, clamped); err != nil {
			logger.Warnw("cart_store_carried_write_failed", "namespace", s.namespace, "error", err)
		} else {
			s.carried = clamped
		}
	}
	s.notify()
	return nil
}

func (s *Store) writeCarried(ctx context.Context, carried map[uint64]int) error {
	if len(carried) == 0 {
		if err := s.kv.Delete(ctx, s.key(constants.StorageKeyCartCarried)); err != nil {
			return fmt.Errorf("%w: delete carried lines: %v", ErrPersist, err)
		}
		return nil
	}
	payload, err := json.Marshal(carried)
	if err != nil {
		return fmt.Errorf("%w: encode carried lines: %v", ErrPersist, err)
	}
	if err := s.kv.Set(ctx, s.key(constants.StorageKeyCartCarried), payload); err != nil {
		return fmt.Errorf("%w: write carried lines: %v", ErrPersist, err)
	}
	return nil
}

func (s *Store) writeLines(ctx context.Context, name string, lines []Line) error {
	if lines == nil {
		lines = []Line{}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersist, name, err)
	}
	if err := s.kv.Set(ctx, s.key(name), payload); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersist, name, err)
	}
	return nil
}

func (s *Store) readLines(ctx context.Context, name string) ([]Line, error) {
	raw, found, err := s.kv.Get(ctx, s.key(name))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersist, name, err)
	}
	if !found || len(raw) == 0 {
		return nil, nil
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		logger.Warnw("cart_store_lines_corrupted", "namespace", s.namespace, "key", name, "error", err)
		return nil, nil
	}
	return normalizeLines(lines), nil
}

func (s *Store) indexOf(productID uint64) int {
	for i, line := range s.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) key(name string) string {
	return s.namespace + ":" + name
}

func (s *Store) notify() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func totalOf(lines []Line) models.Money {
	total := models.Money{}
	for _, line := range lines {
		total = total.Plus(line.Subtotal())
	}
	return total
}

// clampCarried 保留数量不超过当前行数量，行被删除时对应记录一并移除
func clampCarried(carried map[uint64]int, lines []Line) (map[uint64]int, bool) {
	if len(carried) == 0 {
		return carried, false
	}
	current := quantities(lines)
	out := make(map[uint64]int, len(carried))
	changed := false
	for productID, qty := range carried {
		have := current[productID]
		if have < qty {
			qty = have
			changed = true
		}
		if qty > 0 {
			out[productID] = qty
		}
	}
	return out, changed
}

func quantities(lines []Line) map[uint64]int {
	if len(lines) == 0 {
		return nil
	}
	out := make(map[uint64]int, len(lines))
	for _, line := range lines {
		out[line.ProductID] += line.Quantity
	}
	return out
}
