package public

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/catalog"
	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/provider"
	"github.com/musicfy-storefront/internal/service"
	"github.com/musicfy-storefront/internal/session"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

var testProducts = map[string]string{
	"1": `{"id":1,"title":"Fone","price":10,"image":"https://img.test/1.jpg"}`,
	"2": `{"id":2,"title":"Cabo","price":5,"image":"https://img.test/2.jpg"}`,
	"3": `{"id":3,"title":"Vinil Azul","price":49.9,"image":"https://img.test/3.jpg"}`,
	"4": `{"id":4,"title":"Pedal","price":120,"image":"https://img.test/4.jpg"}`,
}

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products/category/electronics" {
			_, _ = w.Write([]byte("[" + testProducts["3"] + "," + testProducts["4"] + "]"))
			return
		}
		body, ok := testProducts[strings.TrimPrefix(r.URL.Path, "/products/")]
		if !ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

// newTestHandler 后端对所有请求返回 404，商品目录由本地服务提供
func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	products, err := catalog.New(catalog.Options{
		BaseURL:  newCatalogServer(t).URL,
		ListPath: "/products/category/electronics",
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("new catalog failed: %v", err)
	}

	remote, err := backend.New(backend.Options{BaseURL: server.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new backend failed: %v", err)
	}
	registry, err := session.NewRegistry(cart.NewMemoryKV(), remote, session.Options{Secret: "public-test-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}
	return New(&provider.Container{
		Config:          &config.Config{},
		Backend:         remote,
		Sessions:        registry,
		Catalog:         products,
		CartService:     service.NewCartService(products),
		CheckoutService: service.NewCheckoutService(remote, products, nil, nil),
	})
}

func newSession(t *testing.T, h *Handler) *session.Session {
	t.Helper()
	sess, _, _, err := h.Sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	return sess
}

func newCartRouter(h *Handler, sess *session.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if sess != nil {
			c.Set(constants.SessionContextKey, sess)
		}
		c.Next()
	})
	r.GET("/cart", h.GetCart)
	r.POST("/cart/items", h.AddCartItem)
	r.PUT("/cart/items/:product_id", h.UpdateCartItem)
	r.DELETE("/cart/items/:product_id", h.DeleteCartItem)
	r.DELETE("/cart", h.ClearCart)
	r.POST("/payments/webhook/stripe", h.StripeWebhook)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, resp envelope) cart.Snapshot {
	t.Helper()
	var snapshot cart.Snapshot
	if err := json.Unmarshal(resp.Data, &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot failed: %v data=%s", err, string(resp.Data))
	}
	return snapshot
}

func TestGuestCartLifecycle(t *testing.T) {
	h := newTestHandler(t)
	r := newCartRouter(h, newSession(t, h))

	resp := decodeEnvelope(t, serve(r, http.MethodPost, "/cart/items", `{"product_id":3,"quantity":2}`))
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("add status want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	snapshot := decodeSnapshot(t, resp)
	if snapshot.Count != 2 || snapshot.TotalPrice.String() != "99.80" {
		t.Fatalf("unexpected snapshot after add: %+v", snapshot)
	}

	resp = decodeEnvelope(t, serve(r, http.MethodPut, "/cart/items/3", `{"quantity":5}`))
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("update status want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	snapshot = decodeSnapshot(t, resp)
	if snapshot.Count != 5 || len(snapshot.Lines) != 1 || snapshot.Lines[0].Name != "Vinil Azul" {
		t.Fatalf("unexpected snapshot after update: %+v", snapshot)
	}

	resp = decodeEnvelope(t, serve(r, http.MethodDelete, "/cart/items/3", ""))
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("delete status want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	if snapshot = decodeSnapshot(t, resp); snapshot.Count != 0 || len(snapshot.Lines) != 0 {
		t.Fatalf("cart should be empty after delete: %+v", snapshot)
	}
}

func TestAddCartItemIgnoresClientPrice(t *testing.T) {
	h := newTestHandler(t)
	r := newCartRouter(h, newSession(t, h))

	resp := decodeEnvelope(t, serve(r, http.MethodPost, "/cart/items", `{"product_id":4,"name":"Brinde","unit_price":"0.01","quantity":1}`))
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("add status want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	snapshot := decodeSnapshot(t, resp)
	line := snapshot.Lines[0]
	if line.Name != "Pedal" || line.UnitPrice.String() != "120.00" || snapshot.TotalPrice.String() != "120.00" {
		t.Fatalf("client supplied name or price must be ignored: %+v", snapshot)
	}
}

func TestClearCartEmptiesLines(t *testing.T) {
	h := newTestHandler(t)
	r := newCartRouter(h, newSession(t, h))

	serve(r, http.MethodPost, "/cart/items", `{"product_id":1}`)
	serve(r, http.MethodPost, "/cart/items", `{"product_id":2}`)

	resp := decodeEnvelope(t, serve(r, http.MethodDelete, "/cart", ""))
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("clear status want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	if snapshot := decodeSnapshot(t, resp); snapshot.Count != 0 {
		t.Fatalf("cart should be empty after clear: %+v", snapshot)
	}
}

func TestAddCartItemValidation(t *testing.T) {
	h := newTestHandler(t)
	r := newCartRouter(h, newSession(t, h))

	cases := []struct {
		name string
		body string
	}{
		{name: "negative quantity", body: `{"product_id":1,"quantity":-1}`},
		{name: "missing product", body: `{"quantity":1}`},
		{name: "unknown product", body: `{"product_id":99}`},
		{name: "malformed json", body: `{"product_id":`},
	}
	for _, tc := range cases {
		resp := decodeEnvelope(t, serve(r, http.MethodPost, "/cart/items", tc.body))
		if resp.StatusCode != response.CodeBadRequest {
			t.Fatalf("%s: status want 400 got %d msg=%s", tc.name, resp.StatusCode, resp.Msg)
		}
	}

	resp := decodeEnvelope(t, serve(r, http.MethodPut, "/cart/items/abc", `{"quantity":1}`))
	if resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("invalid product id: status want 400 got %d", resp.StatusCode)
	}
}

func TestCartRequiresSession(t *testing.T) {
	h := newTestHandler(t)
	r := newCartRouter(h, nil)

	resp := decodeEnvelope(t, serve(r, http.MethodGet, "/cart", ""))
	if resp.StatusCode != response.CodeUnauthorized {
		t.Fatalf("status want 401 got %d", resp.StatusCode)
	}
}

func TestAuthenticatedAddRevertsOnRemoteFailure(t *testing.T) {
	h := newTestHandler(t)
	sess := newSession(t, h)
	subject := identity.Subject{Kind: constants.SubjectKindAuthenticated, SubjectID: "uid-9", UserID: 9}
	if err := h.Sessions.SetSubject(context.Background(), sess, subject); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	r := newCartRouter(h, sess)

	resp := decodeEnvelope(t, serve(r, http.MethodPost, "/cart/items", `{"product_id":4}`))
	if resp.StatusCode != response.CodeBadGateway {
		t.Fatalf("status want 502 got %d msg=%s", resp.StatusCode, resp.Msg)
	}

	resp = decodeEnvelope(t, serve(r, http.MethodGet, "/cart", ""))
	if snapshot := decodeSnapshot(t, resp); snapshot.Count != 0 {
		t.Fatalf("failed add should be reverted: %+v", snapshot)
	}
}

func TestStripeWebhookWithoutConfiguration(t *testing.T) {
	h := newTestHandler(t)
	r := newCartRouter(h, nil)

	resp := decodeEnvelope(t, serve(r, http.MethodPost, "/payments/webhook/stripe", `{"id":"evt_1"}`))
	if resp.StatusCode != response.CodeUnavailable {
		t.Fatalf("status want 503 got %d", resp.StatusCode)
	}
}
