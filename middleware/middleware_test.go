package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jayampathiw/task-escrow/utils"
)

func TestJWTAuthMiddlewarePassesCaller(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	var gotCaller string
	handler := JWTAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, _ = CallerFromContext(r.Context())
	}))

	token, err := utils.GenerateToken("0xclient")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/all", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if gotCaller != "0xclient" {
		t.Errorf("expected caller 0xclient, got %q", gotCaller)
	}
}

func TestJWTAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	handler := JWTAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/all", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestCallerFromContext(t *testing.T) {
	if _, ok := CallerFromContext(context.Background()); ok {
		t.Error("expected no caller in empty context")
	}

	ctx := WithCaller(context.Background(), "0xclient")
	caller, ok := CallerFromContext(ctx)
	if !ok || caller != "0xclient" {
		t.Errorf("expected caller 0xclient, got %q (ok=%v)", caller, ok)
	}
}
