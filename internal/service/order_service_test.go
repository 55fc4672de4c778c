package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
)

func TestListForSubjectNewestFirstWithEstimate(t *testing.T) {
	fb := newFakeBackend()
	first := time.Date(2025, time.July, 1, 10, 0, 0, 0, time.UTC)
	fb.history[10] = []backend.Order{
		{ID: 1, UserID: 10, Date: first, Status: constants.OrderStatusDelivered, Shipping: backend.Shipping{EstimatedTime: "5-7 dias úteis"}},
		{ID: 3, UserID: 10, Date: first.AddDate(0, 0, 3), Status: constants.OrderStatusReceived, Shipping: backend.Shipping{EstimatedTime: "1-3 dias úteis"}},
		{ID: 2, UserID: 10, Date: first, Status: constants.OrderStatusInTransit},
	}
	svc := NewOrderService(fb)

	views, err := svc.ListForSubject(context.Background(), identity.Subject{Kind: constants.SubjectKindAuthenticated, SubjectID: "uid-10", UserID: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 3 || views[0].ID != 3 || views[1].ID != 2 || views[2].ID != 1 {
		t.Fatalf("unexpected order: %+v", views)
	}
	if views[0].EstimatedDelivery != "Estimado entre 07/07 e 09/07" {
		t.Fatalf("unexpected estimate: %q", views[0].EstimatedDelivery)
	}
	if views[1].EstimatedDelivery != "Não especificado" {
		t.Fatalf("missing shipping text should be unspecified, got %q", views[1].EstimatedDelivery)
	}

	if _, err := svc.ListForSubject(context.Background(), identity.Anonymous()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestUpdateStatusValidatesStatusAndMapsMissingOrder(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend()
	svc := NewOrderService(fb)
	operator := identity.Subject{Kind: constants.SubjectKindAuthenticated, SubjectID: "uid-op"}

	if err := svc.UpdateStatus(ctx, operator, 5, "shipped"); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("expected ErrOrderStatusInvalid, got %v", err)
	}
	if err := svc.UpdateStatus(ctx, operator, 5, constants.OrderStatusOutForDelivery); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updates := fb.statusUpdates(); len(updates) != 1 || updates[0].Status != constants.OrderStatusOutForDelivery {
		t.Fatalf("unexpected updates: %+v", updates)
	}
	fb.failStatus = &backend.RemoteError{Status: http.StatusNotFound}
	if err := svc.UpdateStatus(ctx, operator, 6, constants.OrderStatusDelivered); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if len(OrderStatuses()) != 7 || !IsKnownOrderStatus(constants.OrderStatusPaymentFailed) {
		t.Fatalf("unexpected status catalog")
	}
}
