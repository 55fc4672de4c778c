package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/metrics"

	"go.uber.org/zap"
)

// 同步错误
var (
	ErrSyncFailed   = errors.New("cart: sign-in synchronization failed")
	ErrRemoteFailed = errors.New("cart: remote update failed")
)

// Remote 服务端购物车接口
type Remote interface {
	CreateCart(ctx context.Context, userID uint64, item backend.CartItemInput) (*backend.Cart, error)
	GetCartByUserID(ctx context.Context, userID uint64) (*backend.Cart, error)
	AddItem(ctx context.Context, cartID uint64, item backend.CartItemInput) error
	RemoveItem(ctx context.Context, cartID, productID uint64) error
	IncrementItem(ctx context.Context, cartID, productID uint64) error
	DecrementItem(ctx context.Context, cartID, productID uint64) error
	ClearCart(ctx context.Context, cartID uint64) error
	MergeItems(ctx context.Context, cartID uint64, items []backend.CartItemInput) (*backend.Cart, error)
}

// Options 同步策略
type Options struct {
	LogoutPolicy string // clear / keep_guest
	BulkSeed     bool   // 登录时用一次 merge 代替逐行 add 写入访客行
}

// Synchronizer 维护本地购物车与服务端购物车的一致性
// 主体切换独占 gate，期间没有行操作在途，行操作的回滚也不会跨越主体
type Synchronizer struct {
	store  *Store
	remote Remote
	opts   Options
	gate   *gate
	log    *zap.SugaredLogger

	mu      sync.RWMutex
	subject identity.Subject

	attachMu sync.Mutex
}

// NewSynchronizer 创建同步器，subject 为恢复出的当前主体
func NewSynchronizer(store *Store, remote Remote, subject identity.Subject, opts Options) *Synchronizer {
	if opts.LogoutPolicy == "" {
		opts.LogoutPolicy = constants.LogoutPolicyClear
	}
	return &Synchronizer{
		store:   store,
		remote:  remote,
		opts:    opts,
		gate:    newGate(),
		log:     logger.Session(store.namespace),
		subject: subject.Normalize(),
	}
}

// Store 返回本地购物车
func (s *Synchronizer) Store() *Store {
	return s.store
}

// Subject 返回当前主体
func (s *Synchronizer) Subject() identity.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

// Transition 切换会话主体并执行登录合并或登出清理
func (s *Synchronizer) Transition(ctx context.Context, next identity.Subject) error {
	next = next.Normalize()
	release := s.gate.all()
	defer release()

	prev := s.Subject()
	s.setSubject(next)
	if prev.Same(next) {
		return nil
	}

	if prev.Authenticated() {
		if err := s.leave(ctx); err != nil {
			err = s.fail(ctx, "leave", err)
			metrics.ObserveTransition("logout", err)
			return err
		}
		s.log.Infow("cart_sync_signed_out", "subject_id", prev.SubjectID, "policy", s.opts.LogoutPolicy)
	}
	if !next.Authenticated() {
		metrics.ObserveTransition("logout", nil)
		return nil
	}

	path, err := s.enter(ctx, next)
	metrics.ObserveTransition(path, err)
	if err == nil {
		s.log.Infow("cart_sync_signed_in",
			"subject_id", next.SubjectID,
			"user_id", next.UserID,
			"path", path,
			"cart_id", s.store.CartID(),
			"lines", len(s.store.Lines()),
		)
	}
	return err
}

func (s *Synchronizer) setSubject(next identity.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = next
}

// leave 登出：先解除服务端购物车关联，再按策略清空或保留本地行
// 失败时由调用方重置整个购物车，避免新主体继承旧主体的行或购物车 ID
func (s *Synchronizer) leave(ctx context.Context) error {
	if err := s.store.DetachCartID(ctx); err != nil {
		return err
	}
	if s.opts.LogoutPolicy == constants.LogoutPolicyKeepGuest {
		return s.store.MarkCarried(ctx)
	}
	return s.store.Clear(ctx)
}

// enter 登录：拉取服务端购物车并与访客购物车对账
func (s *Synchronizer) enter(ctx context.Context, next identity.Subject) (string, error) {
	guest := s.store.GuestLines()

	serverCart, err := s.remote.GetCartByUserID(ctx, next.UserID)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			return "fetch", s.fail(ctx, "fetch", err)
		}
		serverCart = nil
	}

	switch {
	case serverCart != nil && len(guest) > 0:
		merged := MergeLines(fromRemote(serverCart.Items), guest)
		if _, err := s.remote.MergeItems(ctx, serverCart.ID, toInputs(guest)); err != nil {
			return "merge", s.fail(ctx, "merge", err)
		}
		return "merge", s.adopt(ctx, merged, serverCart.ID)
	case serverCart != nil:
		return "adopt", s.adopt(ctx, fromRemote(serverCart.Items), serverCart.ID)
	case len(guest) > 0:
		cartID, err := s.seed(ctx, next.UserID, guest)
		if err != nil {
			return "seed", s.fail(ctx, "seed", err)
		}
		return "seed", s.adopt(ctx, guest, cartID)
	default:
		if err := s.store.Clear(ctx); err != nil {
			return "empty", fmt.Errorf("%w: %w", ErrSyncFailed, err)
		}
		return "empty", nil
	}
}

// seed 以访客行创建服务端购物车
func (s *Synchronizer) seed(ctx context.Context, userID uint64, guest []Line) (uint64, error) {
	first := guest[0]
	created, err := s.remote.CreateCart(ctx, userID, backend.CartItemInput{ProductID: first.ProductID, Quantity: first.Quantity})
	if err != nil {
		return 0, err
	}
	rest := guest[1:]
	if len(rest) == 0 {
		return created.ID, nil
	}
	if s.opts.BulkSeed {
		if _, err := s.remote.MergeItems(ctx, created.ID, toInputs(rest)); err != nil {
			return 0, err
		}
		return created.ID, nil
	}
	for _, line := range rest {
		if err := s.remote.AddItem(ctx, created.ID, backend.CartItemInput{ProductID: line.ProductID, Quantity: line.Quantity}); err != nil {
			return 0, err
		}
	}
	return created.ID, nil
}

func (s *Synchronizer) adopt(ctx context.Context, lines []Line, cartID uint64) error {
	if err := s.store.Replace(ctx, lines, cartID); err != nil {
		return s.fail(ctx, "adopt", err)
	}
	return nil
}

// fail 主体切换失败：本地重置为空并尽量移除持久化键
func (s *Synchronizer) fail(ctx context.Context, stage string, cause error) error {
	s.log.Warnw("cart_sync_transition_failed", "stage", stage, "error", cause)
	if err := s.store.reset(context.WithoutCancel(ctx)); err != nil {
		s.log.Errorw("cart_sync_reset_failed", "stage", stage, "error", err)
	}
	return fmt.Errorf("%w: %s: %w", ErrSyncFailed, stage, cause)
}

// Add 加入商品并同步到服务端
func (s *Synchronizer) Add(ctx context.Context, p Product, quantity int) error {
	if p.ID == 0 {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	release, err := s.gate.line(ctx, p.ID)
	if err != nil {
		return err
	}
	defer release()

	prev, existed := s.store.Line(p.ID)
	line, err := s.store.AddLine(ctx, p, quantity)
	if err != nil {
		return err
	}
	if err := s.pushIncrease(ctx, p.ID, quantity, line.Quantity); err != nil {
		s.revert(ctx, "add", p.ID, prev, existed)
		return fmt.Errorf("%w: %w", ErrRemoteFailed, err)
	}
	return nil
}

// Remove 移除商品行并同步到服务端
func (s *Synchronizer) Remove(ctx context.Context, productID uint64) error {
	release, err := s.gate.line(ctx, productID)
	if err != nil {
		return err
	}
	defer release()

	prev, existed := s.store.Line(productID)
	if !existed {
		return nil
	}
	if _, err := s.store.RemoveLine(ctx, productID); err != nil {
		return err
	}
	if cartID, ok := s.attached(); ok {
		if err := s.remote.RemoveItem(ctx, cartID, productID); err != nil {
			s.revert(ctx, "remove", productID, prev, existed)
			return fmt.Errorf("%w: %w", ErrRemoteFailed, err)
		}
	}
	return nil
}

// SetQuantity 设置商品数量并同步到服务端
func (s *Synchronizer) SetQuantity(ctx context.Context, p Product, quantity int) error {
	if p.ID == 0 {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return s.Remove(ctx, p.ID)
	}
	release, err := s.gate.line(ctx, p.ID)
	if err != nil {
		return err
	}
	defer release()

	prev, existed := s.store.Line(p.ID)
	if existed && prev.Quantity == quantity {
		return nil
	}
	if err := s.store.SetQuantity(ctx, p, quantity); err != nil {
		return err
	}

	delta := quantity - prev.Quantity
	if err := s.pushDelta(ctx, p.ID, prev.Quantity, quantity, delta); err != nil {
		s.revert(ctx, "set_quantity", p.ID, prev, existed)
		return fmt.Errorf("%w: %w", ErrRemoteFailed, err)
	}
	return nil
}

// Clear 清空购物车；已关联服务端购物车时同步清空
func (s *Synchronizer) Clear(ctx context.Context) error {
	release := s.gate.all()
	defer release()

	lines := s.store.Lines()
	cartID, attached := s.attached()
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	if !attached {
		return nil
	}
	if err := s.remote.ClearCart(ctx, cartID); err != nil {
		metrics.ObserveRevert("clear")
		if restoreErr := s.store.Replace(context.WithoutCancel(ctx), lines, cartID); restoreErr != nil {
			s.log.Errorw("cart_clear_restore_failed", "cart_id", cartID, "error", restoreErr)
		}
		return fmt.Errorf("%w: %w", ErrRemoteFailed, err)
	}
	return nil
}

// attached 返回已登录主体关联的服务端购物车
func (s *Synchronizer) attached() (uint64, bool) {
	if !s.Subject().Authenticated() {
		return 0, false
	}
	cartID := s.store.CartID()
	return cartID, cartID > 0
}

// pushIncrease 同步数量增加；已登录但未关联服务端购物车时先创建
func (s *Synchronizer) pushIncrease(ctx context.Context, productID uint64, delta, lineQty int) error {
	subject := s.Subject()
	if !subject.Authenticated() {
		return nil
	}
	if cartID := s.store.CartID(); cartID > 0 {
		return s.remote.AddItem(ctx, cartID, backend.CartItemInput{ProductID: productID, Quantity: delta})
	}
	return s.attach(ctx, subject, productID, delta, lineQty)
}

// pushDelta 按数量变化选择远端操作
func (s *Synchronizer) pushDelta(ctx context.Context, productID uint64, prevQty, nextQty, delta int) error {
	if delta > 0 {
		if delta == 1 && prevQty > 0 {
			if cartID, ok := s.attached(); ok {
				return s.remote.IncrementItem(ctx, cartID, productID)
			}
		}
		return s.pushIncrease(ctx, productID, delta, nextQty)
	}

	cartID, ok := s.attached()
	if !ok {
		return nil
	}
	if delta == -1 {
		return s.remote.DecrementItem(ctx, cartID, productID)
	}
	// 一次下降多于 1：先移除再按新数量加入，两步在同一行锁内完成
	if err := s.remote.RemoveItem(ctx, cartID, productID); err != nil {
		return err
	}
	if err := s.remote.AddItem(ctx, cartID, backend.CartItemInput{ProductID: productID, Quantity: nextQty}); err != nil {
		restoreErr := s.remote.AddItem(context.WithoutCancel(ctx), cartID, backend.CartItemInput{ProductID: productID, Quantity: prevQty})
		if restoreErr != nil {
			s.log.Errorw("cart_remote_restore_failed", "cart_id", cartID, "product_id", productID, "error", restoreErr)
		}
		return err
	}
	return nil
}

// attach 为已登录但未关联的会话创建服务端购物车
func (s *Synchronizer) attach(ctx context.Context, subject identity.Subject, productID uint64, delta, lineQty int) error {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	if cartID := s.store.CartID(); cartID > 0 {
		return s.remote.AddItem(ctx, cartID, backend.CartItemInput{ProductID: productID, Quantity: delta})
	}
	created, err := s.remote.CreateCart(ctx, subject.UserID, backend.CartItemInput{ProductID: productID, Quantity: lineQty})
	if err != nil {
		return err
	}
	if err := s.store.AttachCartID(ctx, created.ID); err != nil {
		return err
	}
	s.log.Infow("cart_remote_created", "cart_id", created.ID, "user_id", subject.UserID)
	return nil
}

// revert 远端失败后回滚该商品行，调用方仍持有该行的锁
func (s *Synchronizer) revert(ctx context.Context, op string, productID uint64, prev Line, existed bool) {
	metrics.ObserveRevert(op)
	if err := s.store.restoreLine(context.WithoutCancel(ctx), productID, prev, existed); err != nil {
		s.log.Errorw("cart_revert_failed", "operation", op, "product_id", productID, "error", err)
		return
	}
	s.log.Warnw("cart_mutation_reverted", "operation", op, "product_id", productID)
}
