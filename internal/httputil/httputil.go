// Package httputil holds the echo helpers shared by every module handler.
package httputil

import (
	"errors"
	"net/http"
	"strconv"

	"quickclean/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// NewValidator returns a validator that knows the request form's enums.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("quantity", func(fl validator.FieldLevel) bool {
		_, ok := models.Quantity(fl.Field().String()).NominalWeightKg()
		return ok
	})
	return v
}

// BindAndValidate decodes the body into dst and runs struct validation. On
// failure the 400 response has already been written and the returned error is
// what the handler should return.
func BindAndValidate(c echo.Context, v *validator.Validate, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := v.Struct(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}
	return true, nil
}

// WriteError maps domain errors to HTTP statuses. Anything unrecognised is
// logged and reported as a 500 with fallback as the message.
func WriteError(c echo.Context, op string, err error, fallback string) error {
	switch {
	case errors.Is(err, models.ErrValidation):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, models.ErrForbidden):
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Access denied"})
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Not found"})
	case errors.Is(err, models.ErrConflict):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: models.ErrConflict.Error()})
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrWorkerBusy):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
	}
	c.Logger().Error(op+": ", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: fallback})
}

// Session reads the caller identity set by the auth middleware.
func Session(c echo.Context) models.Session {
	userID, _ := c.Get("userID").(string)
	role, _ := c.Get("userRole").(models.Role)
	return models.Session{UserID: userID, Role: role}
}

// Pagination reads page/limit query params with the given default and cap.
func Pagination(c echo.Context, defaultLimit, maxLimit int) (int, int) {
	page := 1
	limit := defaultLimit
	if pageStr := c.QueryParam("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxLimit {
			limit = l
		}
	}
	return page, limit
}

// Routes are the route groups a module mounts onto. Worker and Admin are
// already restricted to their role.
type Routes struct {
	Public *echo.Group
	Authed *echo.Group
	Worker *echo.Group
	Admin  *echo.Group
}
