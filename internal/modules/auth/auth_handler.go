package auth

import (
	"net/http"

	"quickclean/internal/httputil"
	"quickclean/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc, validate: httputil.NewValidator()}
}

func (h *Handler) RegisterRoutes(r httputil.Routes) {
	r.Public.POST("/auth/register", h.Register)
	r.Public.POST("/auth/login", h.Login)
	r.Authed.GET("/me", h.Me)
}

func (h *Handler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if ok, err := httputil.BindAndValidate(c, h.validate, &req); !ok {
		return err
	}

	resp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return httputil.WriteError(c, "Handler.Register", err, "Failed to register")
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var req models.LoginRequest
	if ok, err := httputil.BindAndValidate(c, h.validate, &req); !ok {
		return err
	}

	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return httputil.WriteError(c, "Handler.Login", err, "Failed to log in")
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	p, err := h.svc.Me(c.Request().Context(), httputil.Session(c).UserID)
	if err != nil {
		return httputil.WriteError(c, "Handler.Me", err, "Failed to load profile")
	}
	return c.JSON(http.StatusOK, p)
}
