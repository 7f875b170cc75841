package pricing

import (
	"net/http"

	"quickclean/internal/httputil"
	"quickclean/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the price list.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: httputil.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(r httputil.Routes) {
	r.Authed.GET("/pricing", h.GetPricing)
	r.Authed.POST("/pricing/quote", h.Quote)
	r.Admin.PUT("/pricing", h.UpdatePricing)
}

func (h *Handler) GetPricing(c echo.Context) error {
	cfg, err := h.svc.GetConfig(c.Request().Context())
	if err != nil {
		return httputil.WriteError(c, "Handler.GetPricing", err, "Failed to load pricing")
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) Quote(c echo.Context) error {
	var req models.QuoteRequest
	if ok, err := httputil.BindAndValidate(c, h.validate, &req); !ok {
		return err
	}

	quote, err := h.svc.Quote(c.Request().Context(), req)
	if err != nil {
		return httputil.WriteError(c, "Handler.Quote", err, "Failed to compute quote")
	}
	return c.JSON(http.StatusOK, quote)
}

// UpdatePricing replaces the whole price list (admin only).
func (h *Handler) UpdatePricing(c echo.Context) error {
	var req models.PricingConfig
	if ok, err := httputil.BindAndValidate(c, h.validate, &req); !ok {
		return err
	}

	saved, err := h.svc.UpdateConfig(c.Request().Context(), req)
	if err != nil {
		return httputil.WriteError(c, "Handler.UpdatePricing", err, "Failed to update pricing")
	}
	return c.JSON(http.StatusOK, saved)
}
