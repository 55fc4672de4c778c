package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/musicfy-storefront/internal/models"
)

var (
	guitar = Product{ID: 1, Name: "Guitarra", UnitPrice: models.MustMoney("100.00"), ImageRef: "guitar.png"}
	drums  = Product{ID: 2, Name: "Bateria", UnitPrice: models.MustMoney("250.50"), ImageRef: "drums.png"}
	piano  = Product{ID: 3, Name: "Piano", UnitPrice: models.MustMoney("999.99"), ImageRef: "piano.png"}
)

func TestStoreAddLineKeepsOneLinePerProduct(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryKV(), "s1")

	if _, err := store.AddLine(ctx, guitar, 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	line, err := store.AddLine(ctx, guitar, 2)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if line.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", line.Quantity)
	}
	if len(store.Lines()) != 1 {
		t.Fatalf("expected a single line, got %d", len(store.Lines()))
	}
}

func TestStoreRejectsNonPositiveQuantities(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryKV(), "s1")

	if _, err := store.AddLine(ctx, guitar, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := store.AddLine(ctx, Product{}, 1); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}
	if _, err := store.AddLine(ctx, guitar, 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := store.SetQuantity(ctx, guitar, 0); err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if store.Contains(guitar.ID) {
		t.Fatalf("setting quantity to zero must remove the line")
	}
	if err := store.SetQuantity(ctx, drums, -4); err != nil {
		t.Fatalf("set negative on missing line should be a no-op: %v", err)
	}
	if len(store.Lines()) != 0 {
		t.Fatalf("no line should be created for non-positive quantity")
	}
}

func TestStoreTotalsAndCount(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryKV(), "s1")
	_, _ = store.AddLine(ctx, guitar, 2)
	_, _ = store.AddLine(ctx, drums, 1)

	if store.Count() != 3 {
		t.Fatalf("expected count 3, got %d", store.Count())
	}
	if got := store.TotalPrice().String(); got != "450.50" {
		t.Fatalf("unexpected total: %s", got)
	}
	snap := store.Snapshot()
	if snap.Count != 3 || snap.TotalPrice.String() != "450.50" || len(snap.Lines) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestStorePersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewStore(kv, "s1")
	_, _ = store.AddLine(ctx, guitar, 2)
	_, _ = store.AddLine(ctx, drums, 1)
	if err := store.AttachCartID(ctx, 77); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	reloaded := NewStore(kv, "s1")
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if reloaded.CartID() != 77 {
		t.Fatalf("expected cart id 77, got %d", reloaded.CartID())
	}
	lines := reloaded.Lines()
	if len(lines) != 2 || lines[0].ProductID != guitar.ID || lines[0].Quantity != 2 || lines[1].UnitPrice.String() != "250.50" {
		t.Fatalf("unexpected reloaded lines: %+v", lines)
	}

	other := NewStore(kv, "s2")
	if err := other.Load(ctx); err != nil {
		t.Fatalf("load other namespace failed: %v", err)
	}
	if len(other.Lines()) != 0 || other.CartID() != 0 {
		t.Fatalf("namespaces must not share state")
	}
}

func TestStoreClearRemovesBothKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewStore(kv, "s1")
	_, _ = store.AddLine(ctx, guitar, 1)
	_ = store.AttachCartID(ctx, 9)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	for _, key := range []string{"s1:cartItems", "s1:cartId"} {
		if _, found, _ := kv.Get(ctx, key); found {
			t.Fatalf("key %s should be removed after clear", key)
		}
	}
	if store.CartID() != 0 || store.Count() != 0 {
		t.Fatalf("store should be empty and detached")
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear should succeed: %v", err)
	}
}

func TestStoreLoadToleratesCorruptedMirror(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	_ = kv.Set(ctx, "s1:cartItems", []byte("{not json"))
	_ = kv.Set(ctx, "s1:cartId", []byte("abc"))

	store := NewStore(kv, "s1")
	if err := store.Load(ctx); err != nil {
		t.Fatalf("load should tolerate corrupted data: %v", err)
	}
	if len(store.Lines()) != 0 || store.CartID() != 0 {
		t.Fatalf("corrupted mirror should load as empty cart")
	}
}

func TestStoreKeepsMemoryConsistentWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{MemoryKV: NewMemoryKV()}
	store := NewStore(kv, "s1")
	_, _ = store.AddLine(ctx, guitar, 1)

	kv.failSet.Store(true)
	if _, err := store.AddLine(ctx, drums, 1); !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if store.Contains(drums.ID) {
		t.Fatalf("failed write must not change in-memory lines")
	}
}

func TestStoreGuestLinesExcludeCarried(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryKV(), "s1")
	_, _ = store.AddLine(ctx, guitar, 2)
	if err := store.MarkCarried(ctx); err != nil {
		t.Fatalf("mark carried failed: %v", err)
	}
	_, _ = store.AddLine(ctx, guitar, 1)
	_, _ = store.AddLine(ctx, drums, 1)

	guest := store.GuestLines()
	if len(guest) != 2 || guest[0].ProductID != guitar.ID || guest[0].Quantity != 1 || guest[1].ProductID != drums.ID {
		t.Fatalf("unexpected guest lines: %+v", guest)
	}

	_, _ = store.RemoveLine(ctx, guitar.ID)
	_, _ = store.AddLine(ctx, guitar, 1)
	guest = store.GuestLines()
	if len(guest) != 2 || guest[1].ProductID != guitar.ID || guest[1].Quantity != 1 {
		t.Fatalf("removed carried line should not shadow a new guest line: %+v", guest)
	}
}

func TestStoreWatchNotifiesOnChange(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryKV(), "s1")
	ch, cancel := store.Watch()
	defer cancel()

	_, _ = store.AddLine(ctx, guitar, 1)
	select {
	case <-ch:
	default:
		t.Fatalf("expected change notification")
	}
}
