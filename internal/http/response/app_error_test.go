package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

var errUpstream = errors.New("viacep timeout")

func TestAppErrorWrapsCause(t *testing.T) {
	appErr := WrapError(CodeBadGateway, "postal.unavailable", "CEP indisponível", errUpstream)
	if appErr.Error() != "CEP indisponível: viacep timeout" {
		t.Fatalf("unexpected message: %s", appErr.Error())
	}
	if !errors.Is(appErr, errUpstream) || !appErr.ServerSide() {
		t.Fatalf("bad gateway should unwrap to the cause and count as server side")
	}

	wrapped := fmt.Errorf("lookup: %w", appErr)
	got, ok := AsAppError(wrapped)
	if !ok || got.Key != "postal.unavailable" {
		t.Fatalf("AsAppError should find the wrapped error, got %+v", got)
	}
	if _, ok := AsAppError(errUpstream); ok {
		t.Fatalf("plain errors are not AppError")
	}

	bare := WrapError(CodeBadRequest, "cart.invalid_item", "", nil)
	if bare.Error() != "cart.invalid_item" || bare.ServerSide() {
		t.Fatalf("unexpected bare error: %s", bare.Error())
	}
}

func TestAppErrorWriteHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	WrapError(CodeConflict, "auth.email_in_use", "E-mail já cadastrado.", errUpstream).Write(c)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if w.Code != 200 || resp.StatusCode != CodeConflict || resp.Msg != "E-mail já cadastrado." {
		t.Fatalf("unexpected envelope: %d %+v", w.Code, resp)
	}
}
