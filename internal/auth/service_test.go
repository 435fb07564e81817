package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store, err := NewMemoryStore([]Seed{
		{OrgID: "org-1", Email: "dispatcher@example.com", Password: "s3cret", Roles: []string{"dispatcher"}, Permissions: []string{"loads:write"}},
		{OrgID: "org-2", Email: "other@example.com", Password: "s3cret"},
	})
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	svc, err := NewService(context.Background(), Config{Secret: "test-secret", Issuer: "machtms", AccessTTL: time.Minute}, store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestAuthenticateAndVerify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Authenticate(ctx, TokenRequest{Email: "dispatcher@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if pair.TokenType != "Bearer" || pair.AccessToken == "" {
		t.Fatalf("pair = %+v", pair)
	}

	subject, err := svc.AuthenticateRequest(ctx, "Bearer "+pair.AccessToken)
	if err != nil {
		t.Fatalf("AuthenticateRequest: %v", err)
	}
	if subject.OrgID != "org-1" || subject.Email != "dispatcher@example.com" {
		t.Fatalf("subject = %+v", subject)
	}
	if !subject.HasPermission("loads:write") {
		t.Fatal("expected loads:write permission")
	}
}

func TestAuthenticateRejectsBadPassword(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Authenticate(context.Background(), TokenRequest{Email: "dispatcher@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want invalid credentials", err)
	}
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Authenticate(ctx, TokenRequest{Email: "dispatcher@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := svc.AuthenticateRequest(ctx, "Bearer "+pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
}

func TestAPIKeyResolvesOrganization(t *testing.T) {
	svc, store := newTestService(t)
	store.AddAPIKey(APIKey{Key: "mtk_integration", OrgID: "org-2", Label: "tms-integration"})

	subject, err := svc.AuthenticateRequest(context.Background(), "ApiKey mtk_integration")
	if err != nil {
		t.Fatalf("AuthenticateRequest: %v", err)
	}
	if subject.OrgID != "org-2" {
		t.Fatalf("org = %q, want org-2", subject.OrgID)
	}
}

func TestMiddlewareScopesRequestToOrganization(t *testing.T) {
	svc, _ := newTestService(t)
	pair, err := svc.Authenticate(context.Background(), TokenRequest{Email: "dispatcher@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	var gotOrg string
	handler := svc.Middleware(MiddlewareConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg = OrgFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/loads", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotOrg != "org-1" {
		t.Fatalf("org from context = %q, want org-1", gotOrg)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loads", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}
}
