package middleware

import (
	"context"
	"errors"
	"net/http"

	"quickclean/internal/models"
	"quickclean/internal/modules/auth"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// RoleLookup returns the role currently stored for a profile.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (models.Role, error)
}

// JWT verifies the bearer token. The change feed cannot send headers from a
// browser EventSource, so a token query parameter is accepted as well.
func JWT(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		TokenLookup:   "header:Authorization:Bearer ,query:token",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: models.ErrInvalidToken.Error()})
		},
	})
}

// Session runs after JWT. It re-reads the role from the store so a demoted
// worker loses access without waiting for the token to expire, then exposes
// userID and userRole to handlers.
func Session(roles RoleLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: models.ErrInvalidToken.Error()})
			}
			claims, ok := token.Claims.(*auth.Claims)
			if !ok || claims.Subject == "" {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: models.ErrInvalidToken.Error()})
			}

			role, err := roles.RoleOf(c.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, models.ErrInvalidToken) {
					return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: err.Error()})
				}
				c.Logger().Error("middleware.Session: ", err)
				return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load session"})
			}

			c.Set("userID", claims.Subject)
			c.Set("userRole", role)
			return next(c)
		}
	}
}

// RequireRole rejects sessions whose role is not in roles.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("userRole").(models.Role)
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Access denied"})
		}
	}
}
