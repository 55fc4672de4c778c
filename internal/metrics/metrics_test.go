package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRemoteCalls(t *testing.T) {
	ObserveRemote("carts", "add_item", nil, 15*time.Millisecond)
	ObserveRemote("carts", "add_item", errors.New("boom"), 20*time.Millisecond)
	ObserveTransition("merge", nil)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	if !strings.Contains(body, `storefront_remote_calls_total{operation="add_item",outcome="error",resource="carts"} 1`) {
		t.Fatalf("expected remote error counter in output")
	}
	if !strings.Contains(body, `storefront_cart_transitions_total{outcome="ok",path="merge"} 1`) {
		t.Fatalf("expected transition counter in output")
	}
}
