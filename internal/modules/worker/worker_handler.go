package worker

import (
	"net/http"

	"quickclean/internal/httputil"
	"quickclean/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler 聚合 worker 档案与管理员车队管理接口。
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler 构造函数，注入 Service。
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc, validate: httputil.NewValidator()}
}

// RegisterRoutes 挂载 worker 自助接口与管理员接口。
func (h *Handler) RegisterRoutes(r httputil.Routes) {
	// 1) worker 自助
	r.Worker.GET("/profile", h.GetProfile)
	r.Worker.PUT("/availability", h.SetOwnAvailability)

	// 2) 管理员车队管理
	r.Admin.GET("/workers", h.ListWorkers)
	r.Admin.PUT("/workers/:id/availability", h.SetWorkerAvailability)
	r.Admin.POST("/workers/:id/demote", h.Demote)
}

func (h *Handler) GetProfile(c echo.Context) error {
	wp, err := h.svc.Profile(c.Request().Context(), httputil.Session(c))
	if err != nil {
		return httputil.WriteError(c, "Handler.GetProfile", err, "Failed to load profile")
	}
	return c.JSON(http.StatusOK, wp)
}

func (h *Handler) SetOwnAvailability(c echo.Context) error {
	sess := httputil.Session(c)
	return h.setAvailability(c, sess, sess.UserID)
}

func (h *Handler) SetWorkerAvailability(c echo.Context) error {
	return h.setAvailability(c, httputil.Session(c), c.Param("id"))
}

func (h *Handler) setAvailability(c echo.Context, sess models.Session, workerID string) error {
	var req models.AvailabilityUpdateRequest
	if ok, err := httputil.BindAndValidate(c, h.validate, &req); !ok {
		return err
	}
	if err := h.svc.SetAvailability(c.Request().Context(), sess, workerID, req.Availability); err != nil {
		return httputil.WriteError(c, "Handler.SetAvailability", err, "Failed to update availability")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListWorkers(c echo.Context) error {
	workers, err := h.svc.ListWorkers(c.Request().Context(), httputil.Session(c), c.QueryParam("q"))
	if err != nil {
		return httputil.WriteError(c, "Handler.ListWorkers", err, "Failed to list workers")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"workers": workers})
}

func (h *Handler) Demote(c echo.Context) error {
	if err := h.svc.Demote(c.Request().Context(), httputil.Session(c), c.Param("id")); err != nil {
		return httputil.WriteError(c, "Handler.Demote", err, "Failed to demote worker")
	}
	return c.NoContent(http.StatusNoContent)
}
