package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTFallsBackToDefaultLocaleAndKey(t *testing.T) {
	if got := T("fr-FR", "postal.not_found"); got != messagesPT["postal.not_found"] {
		t.Fatalf("unexpected fallback message: %s", got)
	}
	if got := T(LocaleEN, "unknown.key"); got != "unknown.key" {
		t.Fatalf("missing key should echo key, got %s", got)
	}
	if got := Sprintf(LocalePT, "auth.weak_password", 6); got != "A senha deve ter pelo menos 6 caracteres." {
		t.Fatalf("unexpected formatted message: %s", got)
	}
}

func TestResolveLocalePrefersQueryOverHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/cart?lang=en", nil)
	c.Request.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	if got := ResolveLocale(c); got != LocaleEN {
		t.Fatalf("expected query locale, got %s", got)
	}

	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	c.Request.Header.Set("Accept-Language", "en-GB;q=0.8")
	if got := ResolveLocale(c); got != LocaleEN {
		t.Fatalf("expected header locale, got %s", got)
	}
}

func TestCatalogsShareKeys(t *testing.T) {
	for key := range messagesPT {
		if _, ok := messagesEN[key]; !ok {
			t.Fatalf("english catalog missing key %s", key)
		}
	}
}
