package public

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/musicfy-storefront/internal/config"

	"github.com/gorilla/websocket"
)

func TestAllowStreamOrigin(t *testing.T) {
	h := newTestHandler(t)
	h.Config = &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"https://shop.test"}}}

	cases := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin", "", true},
		{"allowed origin", "https://shop.test", true},
		{"allowed origin case", "HTTPS://Shop.Test", true},
		{"same host", "http://api.shop.test", true},
		{"foreign origin", "https://evil.test", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "http://api.shop.test/api/v1/cart/stream", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		if got := h.allowStreamOrigin(req); got != tc.want {
			t.Fatalf("%s: want %v got %v", tc.name, tc.want, got)
		}
	}

	h.Config.CORS.AllowedOrigins = []string{"*"}
	req := httptest.NewRequest(http.MethodGet, "http://api.shop.test/api/v1/cart/stream", nil)
	req.Header.Set("Origin", "https://evil.test")
	if !h.allowStreamOrigin(req) {
		t.Fatalf("wildcard should allow any origin")
	}
}

func TestStreamCartOriginHandshake(t *testing.T) {
	h := newTestHandler(t)
	h.Config = &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"https://shop.test"}}}
	r := newCartRouter(h, newSession(t, h))
	r.GET("/cart/stream", h.StreamCart)
	server := httptest.NewServer(r)
	defer server.Close()
	endpoint := "ws" + strings.TrimPrefix(server.URL, "http") + "/cart/stream"

	header := http.Header{}
	header.Set("Origin", "https://evil.test")
	_, resp, err := websocket.DefaultDialer.Dial(endpoint, header)
	if err == nil {
		t.Fatalf("foreign origin handshake should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin should get 403, got %+v", resp)
	}

	header.Set("Origin", "https://shop.test")
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, header)
	if err != nil {
		t.Fatalf("allowed origin handshake failed: %v", err)
	}
	defer conn.Close()
	var event CartStreamEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read first event failed: %v", err)
	}
	if event.Type != "cart" || event.Cart == nil {
		t.Fatalf("first event should be the cart snapshot: %+v", event)
	}
}
