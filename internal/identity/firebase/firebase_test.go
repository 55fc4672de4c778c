package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/identity"

	"firebase.google.com/go/v4/auth"
)

type fakeAdmin struct {
	tokens  map[string]*auth.Token
	revoked []string
}

func (f *fakeAdmin) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	token, ok := f.tokens[idToken]
	if !ok {
		return nil, errors.New("token invalid")
	}
	return token, nil
}

func (f *fakeAdmin) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.revoked = append(f.revoked, uid)
	return nil
}

func newToolkitServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "api-key" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"API_KEY_INVALID"}}`))
			return
		}
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "accounts:signInWithPassword"):
			switch payload["email"] {
			case "ana@example.com":
				if payload["password"] != "secret1" {
					w.WriteHeader(http.StatusBadRequest)
					_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_PASSWORD"}}`))
					return
				}
				_, _ = w.Write([]byte(`{"localId":"uid-ana","email":"Ana@example.com","displayName":"Ana","idToken":"tok"}`))
			default:
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"EMAIL_NOT_FOUND"}}`))
			}
		case strings.HasSuffix(r.URL.Path, "accounts:signUp"):
			if len(payload["password"].(string)) < 6 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"WEAK_PASSWORD : Password should be at least 6 characters"}}`))
				return
			}
			if payload["email"] == "ana@example.com" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"EMAIL_EXISTS"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"localId":"uid-new","email":"bia@example.com","idToken":"new-token"}`))
		case strings.HasSuffix(r.URL.Path, "accounts:update"):
			if payload["idToken"] != "new-token" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"message":"INVALID_ID_TOKEN"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"localId":"uid-new","displayName":"Bia"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
}

func newTestProvider(t *testing.T, admin AdminClient) *Provider {
	t.Helper()
	server := newToolkitServer(t)
	t.Cleanup(server.Close)
	return NewWithClient(admin, config.FirebaseIdentityConfig{APIKey: "api-key", IdentityToolkit: server.URL}, server.Client())
}

func TestPasswordSignIn(t *testing.T) {
	provider := newTestProvider(t, nil)
	subject, err := provider.SignInWithPassword(context.Background(), "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if subject.SubjectID != "uid-ana" || subject.Email != "ana@example.com" || !subject.Authenticated() {
		t.Fatalf("unexpected subject: %+v", subject)
	}

	if _, err := provider.SignInWithPassword(context.Background(), "ana@example.com", "nope"); !errors.Is(err, identity.ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if _, err := provider.SignInWithPassword(context.Background(), "zoe@example.com", "secret1"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPasswordSignUp(t *testing.T) {
	provider := newTestProvider(t, nil)
	subject, err := provider.SignUpWithPassword(context.Background(), identity.SignUpInput{Email: "bia@example.com", Password: "secret1", DisplayName: "Bia"})
	if err != nil {
		t.Fatalf("sign up failed: %v", err)
	}
	if subject.SubjectID != "uid-new" || subject.DisplayName != "Bia" {
		t.Fatalf("unexpected subject: %+v", subject)
	}

	if _, err := provider.SignUpWithPassword(context.Background(), identity.SignUpInput{Email: "bia@example.com", Password: "123"}); !errors.Is(err, identity.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := provider.SignUpWithPassword(context.Background(), identity.SignUpInput{Email: "ana@example.com", Password: "secret1"}); !errors.Is(err, identity.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestFederatedSignInAndSignOut(t *testing.T) {
	admin := &fakeAdmin{tokens: map[string]*auth.Token{
		"good": {UID: "google-1", Claims: map[string]interface{}{"email": "Caio@Example.com", "name": "Caio"}},
	}}
	provider := newTestProvider(t, admin)

	subject, err := provider.SignInWithFederated(context.Background(), "good")
	if err != nil {
		t.Fatalf("federated sign in failed: %v", err)
	}
	if subject.SubjectID != "google-1" || subject.Email != "caio@example.com" || subject.DisplayName != "Caio" {
		t.Fatalf("unexpected subject: %+v", subject)
	}
	if _, err := provider.SignInWithFederated(context.Background(), "bad"); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	if err := provider.SignOut(context.Background(), subject); err != nil {
		t.Fatalf("sign out failed: %v", err)
	}
	if len(admin.revoked) != 1 || admin.revoked[0] != "google-1" {
		t.Fatalf("expected refresh tokens to be revoked, got %v", admin.revoked)
	}
}

func TestMissingAPIKeyIsUnavailable(t *testing.T) {
	provider := NewWithClient(nil, config.FirebaseIdentityConfig{}, nil)
	if _, err := provider.SignInWithPassword(context.Background(), "a@b.com", "x"); !errors.Is(err, identity.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if _, err := provider.SignInWithFederated(context.Background(), "tok"); !errors.Is(err, identity.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	if errorCode([]byte(`{"error":{"message":"WEAK_PASSWORD : short"}}`)) != "WEAK_PASSWORD" {
		t.Fatalf("unexpected error code extraction")
	}
	if !errors.Is(mapErrorCode("INVALID_LOGIN_CREDENTIALS", 400), identity.ErrBadCredentials) {
		t.Fatalf("unexpected mapping for invalid credentials")
	}
	if !errors.Is(mapErrorCode("", 503), identity.ErrProviderUnavailable) {
		t.Fatalf("server errors should map to provider unavailable")
	}
}
