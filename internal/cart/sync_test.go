package cart

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
)

func userSubject(uid string, userID uint64) identity.Subject {
	return identity.Subject{Kind: constants.SubjectKindAuthenticated, SubjectID: uid, UserID: userID, Email: uid + "@example.com"}
}

func newTestSynchronizer(t *testing.T, opts Options) (*Synchronizer, *fakeRemote, *MemoryKV) {
	t.Helper()
	kv := NewMemoryKV()
	remote := newFakeRemote()
	syncer := NewSynchronizer(NewStore(kv, "sess"), remote, identity.Anonymous(), opts)
	return syncer, remote, kv
}

func assertQuantities(t *testing.T, store *Store, want map[uint64]int) {
	t.Helper()
	got := quantities(store.Lines())
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected quantities: want %v got %v", want, got)
	}
}

func assertOps(t *testing.T, remote *fakeRemote, want ...string) {
	t.Helper()
	got := remote.ops()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected remote calls: want %v got %v", want, got)
	}
}

func TestAnonymousMutationsStayLocal(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})

	if err := syncer.Add(ctx, guitar, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := syncer.SetQuantity(ctx, guitar, 5); err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if err := syncer.Remove(ctx, guitar.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := syncer.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	assertOps(t, remote)
}

func TestSignInMergesGuestCartIntoServerCart(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{
		{ProductID: guitar.ID, Name: guitar.Name, Price: guitar.UnitPrice, Quantity: 1},
		{ProductID: piano.ID, Name: piano.Name, Price: piano.UnitPrice, Quantity: 3},
	}}

	_ = syncer.Add(ctx, guitar, 2)
	_ = syncer.Add(ctx, drums, 1)
	if err := syncer.Transition(ctx, userSubject("uid-a", 10)); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	assertOps(t, remote, "get", "merge")
	merge := remote.last()
	if merge.CartID != 55 || len(merge.Items) != 2 || merge.Items[0].Quantity != 2 || merge.Items[1].ProductID != drums.ID {
		t.Fatalf("unexpected merge payload: %+v", merge)
	}
	assertQuantities(t, syncer.Store(), map[uint64]int{guitar.ID: 3, piano.ID: 3, drums.ID: 1})
	if syncer.Store().CartID() != 55 {
		t.Fatalf("expected cart id 55, got %d", syncer.Store().CartID())
	}
	if syncer.Store().TotalPrice().String() != "3550.47" {
		t.Fatalf("unexpected total: %s", syncer.Store().TotalPrice())
	}
}

func TestSignInAdoptsServerCartWhenGuestIsEmpty(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{{ProductID: piano.ID, Quantity: 2}}}

	if err := syncer.Transition(ctx, userSubject("uid-a", 10)); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	assertOps(t, remote, "get")
	assertQuantities(t, syncer.Store(), map[uint64]int{piano.ID: 2})
	if syncer.Store().CartID() != 55 {
		t.Fatalf("expected adopted cart id")
	}
}

func TestSignInSeedsServerCartFromGuest(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	_ = syncer.Add(ctx, guitar, 2)
	_ = syncer.Add(ctx, drums, 1)

	if err := syncer.Transition(ctx, userSubject("uid-a", 10)); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	assertOps(t, remote, "get", "create", "add")
	if syncer.Store().CartID() != 101 {
		t.Fatalf("expected created cart id 101, got %d", syncer.Store().CartID())
	}
	assertQuantities(t, syncer.Store(), map[uint64]int{guitar.ID: 2, drums.ID: 1})
}

func TestSignInBulkSeedUsesSingleMerge(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{BulkSeed: true})
	_ = syncer.Add(ctx, guitar, 2)
	_ = syncer.Add(ctx, drums, 1)
	_ = syncer.Add(ctx, piano, 1)

	if err := syncer.Transition(ctx, userSubject("uid-a", 10)); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	assertOps(t, remote, "get", "create", "merge")
	if items := remote.last().Items; len(items) != 2 {
		t.Fatalf("bulk seed should send remaining lines, got %+v", items)
	}
}

func TestSignInWithNothingLeavesCartEmptyAndDetached(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})

	if err := syncer.Transition(ctx, userSubject("uid-a", 10)); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	assertOps(t, remote, "get")
	if syncer.Store().CartID() != 0 || syncer.Store().Count() != 0 {
		t.Fatalf("expected empty detached cart")
	}
}

func TestSignInFailureResetsCart(t *testing.T) {
	ctx := context.Background()
	syncer, remote, kv := newTestSynchronizer(t, Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10}
	remote.failOn["merge"] = errRemoteDown
	_ = syncer.Add(ctx, guitar, 2)

	err := syncer.Transition(ctx, userSubject("uid-a", 10))
	if !errors.Is(err, ErrSyncFailed) || !errors.Is(err, errRemoteDown) {
		t.Fatalf("expected sync failure wrapping cause, got %v", err)
	}
	if syncer.Store().Count() != 0 || syncer.Store().CartID() != 0 {
		t.Fatalf("failed sign-in must reset the cart")
	}
	for _, key := range []string{"sess:cartItems", "sess:cartId"} {
		if _, found, _ := kv.Get(ctx, key); found {
			t.Fatalf("key %s should be removed after failed sign-in", key)
		}
	}
}

func TestSignInFetchFailureResetsCart(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	remote.failOn["get"] = errRemoteDown
	_ = syncer.Add(ctx, guitar, 1)

	if err := syncer.Transition(ctx, userSubject("uid-a", 10)); !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
	if syncer.Store().Count() != 0 {
		t.Fatalf("failed fetch must reset the cart")
	}
}

func TestSignOutClearsCartAndNextUserStartsFresh(t *testing.T) {
	ctx := context.Background()
	syncer, remote, kv := newTestSynchronizer(t, Options{LogoutPolicy: constants.LogoutPolicyClear})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{{ProductID: guitar.ID, Quantity: 4}}}

	_ = syncer.Transition(ctx, userSubject("uid-a", 10))
	remote.reset()
	if err := syncer.Transition(ctx, identity.Anonymous()); err != nil {
		t.Fatalf("sign out failed: %v", err)
	}
	assertOps(t, remote)
	if syncer.Store().Count() != 0 || syncer.Store().CartID() != 0 {
		t.Fatalf("sign out under clear policy must empty the cart")
	}
	if _, found, _ := kv.Get(ctx, "sess:cartId"); found {
		t.Fatalf("cart id must be removed after sign out")
	}

	if err := syncer.Transition(ctx, userSubject("uid-b", 20)); err != nil {
		t.Fatalf("sign in as second user failed: %v", err)
	}
	if syncer.Store().Contains(guitar.ID) {
		t.Fatalf("second user must not see the first user's lines")
	}
}

func TestSignOutKeepGuestDoesNotLeakIntoNextUser(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{LogoutPolicy: constants.LogoutPolicyKeepGuest})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{{ProductID: guitar.ID, Quantity: 4}}}

	_ = syncer.Transition(ctx, userSubject("uid-a", 10))
	if err := syncer.Transition(ctx, identity.Anonymous()); err != nil {
		t.Fatalf("sign out failed: %v", err)
	}
	assertQuantities(t, syncer.Store(), map[uint64]int{guitar.ID: 4})
	if syncer.Store().CartID() != 0 {
		t.Fatalf("cart id must be detached on sign out")
	}

	_ = syncer.Add(ctx, drums, 1)
	remote.reset()
	if err := syncer.Transition(ctx, userSubject("uid-b", 20)); err != nil {
		t.Fatalf("sign in as second user failed: %v", err)
	}
	assertOps(t, remote, "get", "create")
	if first := remote.calls[1]; first.ProductID != drums.ID {
		t.Fatalf("only lines added while signed out should be seeded, got %+v", first)
	}
	assertQuantities(t, syncer.Store(), map[uint64]int{drums.ID: 1})
}

func TestAccountSwitchWithFailedDetachResetsCart(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{MemoryKV: NewMemoryKV()}
	remote := newFakeRemote()
	syncer := NewSynchronizer(NewStore(kv, "sess"), remote, identity.Anonymous(), Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{{ProductID: guitar.ID, Quantity: 4}}}

	if err := syncer.Transition(ctx, userSubject("uid-a", 10)); err != nil {
		t.Fatalf("sign in as first user failed: %v", err)
	}
	if syncer.Store().CartID() != 55 {
		t.Fatalf("first user should be attached to cart 55")
	}

	kv.failDelete.Store(true)
	err := syncer.Transition(ctx, userSubject("uid-b", 20))
	if !errors.Is(err, ErrSyncFailed) || !errors.Is(err, ErrPersist) {
		t.Fatalf("expected sync failure wrapping persist error, got %v", err)
	}
	if syncer.Subject().SubjectID != "uid-b" {
		t.Fatalf("subject should be the second user, got %+v", syncer.Subject())
	}
	if syncer.Store().CartID() != 0 || syncer.Store().Count() != 0 {
		t.Fatalf("second user must not inherit the first user's cart: id=%d lines=%v", syncer.Store().CartID(), syncer.Store().Lines())
	}

	kv.failDelete.Store(false)
	remote.reset()
	if err := syncer.Add(ctx, drums, 1); err != nil {
		t.Fatalf("add after failed switch failed: %v", err)
	}
	for _, call := range remote.calls {
		if call.CartID == 55 {
			t.Fatalf("second user's mutation reached the first user's cart: %+v", call)
		}
	}
	assertOps(t, remote, "create")
	if remote.carts[20] == nil || syncer.Store().CartID() != remote.carts[20].ID {
		t.Fatalf("second user should get a cart of their own")
	}
}

func TestTransitionWaitsForInFlightMutation(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10}
	if err := syncer.Transition(ctx, userSubject("uid-a", 10)); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	remote.reset()
	remote.delay = 30 * time.Millisecond
	remote.failOn["add"] = errRemoteDown

	addDone := make(chan error, 1)
	go func() { addDone <- syncer.Add(ctx, drums, 1) }()
	deadline := time.Now().Add(time.Second)
	for len(remote.ops()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("add never reached the remote")
		}
		time.Sleep(time.Millisecond)
	}

	if err := syncer.Transition(ctx, userSubject("uid-b", 20)); err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if err := <-addDone; !errors.Is(err, ErrRemoteFailed) {
		t.Fatalf("expected add to fail remotely, got %v", err)
	}
	// 回滚在切换前完成，切换后的购物车不含旧主体的行
	if first := remote.calls[0]; first.Op != "add" || first.CartID != 55 {
		t.Fatalf("add should hit the first user's cart before the switch, got %+v", first)
	}
	assertOps(t, remote, "add", "get")
	if syncer.Store().Contains(drums.ID) || syncer.Store().CartID() != 0 {
		t.Fatalf("second user must start from an empty cart, got %v", syncer.Store().Lines())
	}
}

func TestSameSubjectTransitionIsNoop(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	_ = syncer.Transition(ctx, userSubject("uid-a", 10))
	cartID := syncer.Store().CartID()
	remote.reset()

	updated := userSubject("uid-a", 10)
	updated.DisplayName = "Ana"
	if err := syncer.Transition(ctx, updated); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	assertOps(t, remote)
	if syncer.Store().CartID() != cartID || syncer.Subject().DisplayName != "Ana" {
		t.Fatalf("same subject should only refresh fields")
	}
}

func TestAttachedMutationsMapToRemoteCalls(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{{ProductID: guitar.ID, Quantity: 3}}}
	_ = syncer.Transition(ctx, userSubject("uid-a", 10))

	cases := []struct {
		name string
		run  func() error
		ops  []string
		qty  int
	}{
		{"add", func() error { return syncer.Add(ctx, guitar, 2) }, []string{"add"}, 5},
		{"increment", func() error { return syncer.SetQuantity(ctx, guitar, 6) }, []string{"increment"}, 6},
		{"decrement", func() error { return syncer.SetQuantity(ctx, guitar, 5) }, []string{"decrement"}, 5},
		{"raise", func() error { return syncer.SetQuantity(ctx, guitar, 8) }, []string{"add"}, 8},
		{"lower", func() error { return syncer.SetQuantity(ctx, guitar, 2) }, []string{"remove", "add"}, 2},
		{"unchanged", func() error { return syncer.SetQuantity(ctx, guitar, 2) }, nil, 2},
		{"zero", func() error { return syncer.SetQuantity(ctx, guitar, 0) }, []string{"remove"}, 0},
		{"remove_absent", func() error { return syncer.Remove(ctx, guitar.ID) }, nil, 0},
	}
	for _, tc := range cases {
		remote.reset()
		if err := tc.run(); err != nil {
			t.Fatalf("%s failed: %v", tc.name, err)
		}
		assertOps(t, remote, tc.ops...)
		line, _ := syncer.Store().Line(guitar.ID)
		if line.Quantity != tc.qty {
			t.Fatalf("%s: expected quantity %d, got %d", tc.name, tc.qty, line.Quantity)
		}
	}

	remote.reset()
	_ = syncer.SetQuantity(ctx, drums, 1)
	assertOps(t, remote, "add")
	if call := remote.last(); call.ProductID != drums.ID || call.Quantity != 1 {
		t.Fatalf("new line via set quantity should add, got %+v", call)
	}
}

func TestRemoteFailureRevertsLine(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{{ProductID: guitar.ID, Quantity: 3}}}
	_ = syncer.Transition(ctx, userSubject("uid-a", 10))

	remote.failOn["add"] = errRemoteDown
	if err := syncer.Add(ctx, drums, 1); !errors.Is(err, ErrRemoteFailed) {
		t.Fatalf("expected ErrRemoteFailed, got %v", err)
	}
	if syncer.Store().Contains(drums.ID) {
		t.Fatalf("failed add must remove the new line")
	}
	if err := syncer.Add(ctx, guitar, 2); !errors.Is(err, errRemoteDown) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
	assertQuantities(t, syncer.Store(), map[uint64]int{guitar.ID: 3})

	remote.failOn["remove"] = errRemoteDown
	if err := syncer.Remove(ctx, guitar.ID); !errors.Is(err, ErrRemoteFailed) {
		t.Fatalf("expected ErrRemoteFailed, got %v", err)
	}
	assertQuantities(t, syncer.Store(), map[uint64]int{guitar.ID: 3})

	remote.failOn["increment"] = errRemoteDown
	_ = syncer.SetQuantity(ctx, guitar, 4)
	assertQuantities(t, syncer.Store(), map[uint64]int{guitar.ID: 3})
}

func TestSignedInWithoutCartCreatesOnFirstAdd(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	_ = syncer.Transition(ctx, userSubject("uid-a", 10))
	remote.reset()

	if err := syncer.Add(ctx, guitar, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := syncer.Add(ctx, drums, 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	assertOps(t, remote, "create", "add")
	if remote.calls[0].Quantity != 2 || syncer.Store().CartID() != 101 || remote.calls[1].CartID != 101 {
		t.Fatalf("unexpected calls: %+v", remote.calls)
	}
}

func TestClearSyncsOnceAndRestoresOnFailure(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{{ProductID: guitar.ID, Quantity: 3}}}
	_ = syncer.Transition(ctx, userSubject("uid-a", 10))
	remote.reset()

	remote.failOn["clear"] = errRemoteDown
	if err := syncer.Clear(ctx); !errors.Is(err, ErrRemoteFailed) {
		t.Fatalf("expected ErrRemoteFailed, got %v", err)
	}
	assertQuantities(t, syncer.Store(), map[uint64]int{guitar.ID: 3})
	if syncer.Store().CartID() != 55 {
		t.Fatalf("failed clear must restore the cart id")
	}

	delete(remote.failOn, "clear")
	remote.reset()
	if err := syncer.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := syncer.Clear(ctx); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}
	assertOps(t, remote, "clear")
	if syncer.Store().Count() != 0 || syncer.Store().CartID() != 0 {
		t.Fatalf("clear must empty and detach the cart")
	}
}

func TestConcurrentAddsOnSameLineAreSerialized(t *testing.T) {
	ctx := context.Background()
	syncer, remote, _ := newTestSynchronizer(t, Options{})
	remote.carts[10] = &backend.Cart{ID: 55, UserID: 10, Items: []backend.CartItem{{ProductID: guitar.ID, Quantity: 1}}}
	_ = syncer.Transition(ctx, userSubject("uid-a", 10))
	remote.reset()
	remote.delay = 2 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := syncer.Add(ctx, guitar, 1); err != nil {
				t.Errorf("add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if remote.overlap.Load() {
		t.Fatalf("remote calls for the same line must not overlap")
	}
	if len(remote.ops()) != 10 {
		t.Fatalf("expected 10 remote calls, got %d", len(remote.ops()))
	}
	assertQuantities(t, syncer.Store(), map[uint64]int{guitar.ID: 11})
}

func TestLineGateHonorsContext(t *testing.T) {
	g := newGate()
	release, err := g.line(context.Background(), 1)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.line(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	other, err := g.line(context.Background(), 2)
	if err != nil {
		t.Fatalf("different line should not block: %v", err)
	}
	other()
	release()
	if len(g.slots) != 0 {
		t.Fatalf("slots should be released")
	}
}
