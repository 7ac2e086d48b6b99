package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/security"
)

type stubStore struct {
	identities map[string]*domain.Identity
}

func (s *stubStore) FindByEmail(context.Context, string, ...ports.FindOption) (*domain.Identity, error) {
	return nil, domain.ErrIdentityNotFound
}

func (s *stubStore) FindByID(_ context.Context, id string, _ ...ports.FindOption) (*domain.Identity, error) {
	if u, ok := s.identities[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (s *stubStore) Create(context.Context, *domain.Identity) (*domain.Identity, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStore) UpdateCredentials(context.Context, string, ports.CredentialUpdate) (*domain.Identity, error) {
	return nil, errors.New("not implemented")
}

func newTestGate(t *testing.T) (*service.Gate, *security.JWTIssuer) {
	t.Helper()
	iss, err := security.NewJWTIssuer(security.JWTConfig{Secret: []byte("secret"), DefaultTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTIssuer: %v", err)
	}
	store := &stubStore{identities: map[string]*domain.Identity{
		"id-alice": {ID: "id-alice", Username: "alice", Email: "alice@x.com", Role: domain.RoleAdmin},
	}}
	return service.NewGate(iss, store, nil, zerolog.Nop()), iss
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	gate, iss := newTestGate(t)
	tok, _ := iss.Issue("id-alice", domain.RoleAdmin)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := Auth(gate)(func(c echo.Context) error {
		called = true
		ac := AuthContext(c)
		if ac == nil || ac.IdentityID != "id-alice" || ac.Username != "alice" || ac.Role != domain.RoleAdmin {
			t.Fatalf("unexpected auth context: %+v", ac)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	gate, iss := newTestGate(t)
	expired, _ := iss.IssueWithTTL("id-alice", domain.RoleAdmin, 0)
	ghost, _ := iss.Issue("id-ghost", domain.RoleUser)

	cases := map[string]string{
		"missing header":   "",
		"invalid format":   "Token abc",
		"invalid token":    "Bearer not-a-token",
		"expired token":    "Bearer " + expired.Value,
		"unknown identity": "Bearer " + ghost.Value,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			err := Auth(gate)(func(c echo.Context) error {
				t.Fatalf("should not reach next")
				return nil
			})(c)

			if !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
			if AuthContext(c) != nil {
				t.Fatal("auth context must not be set on failure")
			}
		})
	}
}
