package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quickclean/internal/models"
	"quickclean/internal/modules/auth"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type staticRoles map[string]models.Role

func (s staticRoles) RoleOf(ctx context.Context, id string) (models.Role, error) {
	role, ok := s[id]
	if !ok {
		return "", models.ErrInvalidToken
	}
	return role, nil
}

func newServer(roles staticRoles) *echo.Echo {
	e := echo.New()
	g := e.Group("/api", JWT("secret"), Session(roles))
	g.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("userID").(string)+":"+string(c.Get("userRole").(models.Role)))
	})
	g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole(models.RoleAdmin))
	return e
}

func token(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	svc := auth.NewService(nil, "secret", time.Hour, zap.NewNop())
	tok, err := svc.IssueToken(userID, role)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	return tok
}

func do(e *echo.Echo, path, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSessionUsesStoredRole(t *testing.T) {
	// Token still says worker, the profile has since been demoted.
	e := newServer(staticRoles{"u1": models.RoleUser})
	rec := do(e, "/api/whoami", token(t, "u1", models.RoleWorker))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if rec.Body.String() != "u1:user" {
		t.Errorf("body = %q; want u1:user", rec.Body.String())
	}
}

func TestMissingOrUnknownTokenIsUnauthorized(t *testing.T) {
	e := newServer(staticRoles{})
	if rec := do(e, "/api/whoami", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d; want 401", rec.Code)
	}
	if rec := do(e, "/api/whoami", token(t, "ghost", models.RoleAdmin)); rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted profile: status = %d; want 401", rec.Code)
	}
}

func TestTokenFromQuery(t *testing.T) {
	e := newServer(staticRoles{"u1": models.RoleWorker})
	rec := do(e, "/api/whoami?token="+token(t, "u1", models.RoleWorker), "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d; want 200", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := newServer(staticRoles{"a": models.RoleAdmin, "w": models.RoleWorker})
	if rec := do(e, "/api/admin", token(t, "a", models.RoleAdmin)); rec.Code != http.StatusNoContent {
		t.Errorf("admin: status = %d; want 204", rec.Code)
	}
	if rec := do(e, "/api/admin", token(t, "w", models.RoleWorker)); rec.Code != http.StatusForbidden {
		t.Errorf("worker: status = %d; want 403", rec.Code)
	}
}
