package request

import (
	"net/http"

	"quickclean/internal/httputil"
	"quickclean/internal/middleware"
	"quickclean/internal/models"
	"quickclean/pkg/invoice"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for pickup requests.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

// NewHandler creates a new request handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: httputil.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(r httputil.Routes) {
	customer := middleware.RequireRole(models.RoleUser)
	r.Authed.POST("/requests", h.CreateRequest, customer)
	r.Authed.GET("/requests", h.ListMyRequests, customer)
	r.Authed.GET("/requests/:id", h.GetRequest)
	r.Authed.GET("/requests/:id/invoice", h.DownloadInvoice)

	r.Worker.GET("/queue", h.Queue)
	r.Worker.GET("/jobs", h.Jobs)
	r.Worker.POST("/jobs/:id/accept", h.Accept)
	r.Worker.POST("/jobs/:id/start", h.Start)
	r.Worker.POST("/jobs/:id/complete", h.Complete)

	r.Admin.GET("/requests", h.AdminList)
	r.Admin.POST("/requests/:id/assign", h.Assign)
	r.Admin.POST("/requests/:id/cancel", h.Cancel)
	r.Admin.GET("/stats", h.Stats)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var req models.CreateRequestRequest
	if ok, err := httputil.BindAndValidate(c, h.validate, &req); !ok {
		return err
	}

	created, err := h.svc.Create(c.Request().Context(), httputil.Session(c), req)
	if err != nil {
		return httputil.WriteError(c, "Handler.CreateRequest", err, "Failed to create request")
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListMyRequests(c echo.Context) error {
	reqs, err := h.svc.ListMine(c.Request().Context(), httputil.Session(c))
	if err != nil {
		return httputil.WriteError(c, "Handler.ListMyRequests", err, "Failed to retrieve requests")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": nonNil(reqs)})
}

func (h *Handler) GetRequest(c echo.Context) error {
	req, err := h.svc.Get(c.Request().Context(), httputil.Session(c), c.Param("id"))
	if err != nil {
		return httputil.WriteError(c, "Handler.GetRequest", err, "Failed to retrieve request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) DownloadInvoice(c echo.Context) error {
	id := c.Param("id")
	pdf, err := h.svc.Invoice(c.Request().Context(), httputil.Session(c), id)
	if err != nil {
		return httputil.WriteError(c, "Handler.DownloadInvoice", err, "Failed to generate invoice")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+invoice.FileName(id)+`"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) Queue(c echo.Context) error {
	reqs, err := h.svc.Queue(c.Request().Context(), httputil.Session(c))
	if err != nil {
		return httputil.WriteError(c, "Handler.Queue", err, "Failed to retrieve queue")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": nonNil(reqs)})
}

func (h *Handler) Jobs(c echo.Context) error {
	jobs, err := h.svc.Jobs(c.Request().Context(), httputil.Session(c))
	if err != nil {
		return httputil.WriteError(c, "Handler.Jobs", err, "Failed to retrieve jobs")
	}
	return c.JSON(http.StatusOK, jobs)
}

func (h *Handler) Accept(c echo.Context) error {
	req, err := h.svc.Accept(c.Request().Context(), httputil.Session(c), c.Param("id"))
	if err != nil {
		return httputil.WriteError(c, "Handler.Accept", err, "Failed to accept request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Start(c echo.Context) error {
	req, err := h.svc.Start(c.Request().Context(), httputil.Session(c), c.Param("id"))
	if err != nil {
		return httputil.WriteError(c, "Handler.Start", err, "Failed to start job")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Complete(c echo.Context) error {
	var body models.CompleteRequestRequest
	if ok, err := httputil.BindAndValidate(c, h.validate, &body); !ok {
		return err
	}

	req, err := h.svc.Complete(c.Request().Context(), httputil.Session(c), c.Param("id"), body)
	if err != nil {
		return httputil.WriteError(c, "Handler.Complete", err, "Failed to complete job")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) AdminList(c echo.Context) error {
	page, limit := httputil.Pagination(c, 50, 100)
	filter := models.AdminRequestFilter{
		Status: models.RequestStatus(c.QueryParam("status")),
		Query:  c.QueryParam("q"),
		Page:   page,
		Limit:  limit,
	}

	views, total, err := h.svc.AdminList(c.Request().Context(), httputil.Session(c), filter)
	if err != nil {
		return httputil.WriteError(c, "Handler.AdminList", err, "Failed to retrieve requests")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": views, "total": total})
}

func (h *Handler) Assign(c echo.Context) error {
	var body models.AssignRequest
	if ok, err := httputil.BindAndValidate(c, h.validate, &body); !ok {
		return err
	}

	req, err := h.svc.Assign(c.Request().Context(), httputil.Session(c), c.Param("id"), body.WorkerID)
	if err != nil {
		return httputil.WriteError(c, "Handler.Assign", err, "Failed to assign request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Cancel(c echo.Context) error {
	req, err := h.svc.Cancel(c.Request().Context(), httputil.Session(c), c.Param("id"))
	if err != nil {
		return httputil.WriteError(c, "Handler.Cancel", err, "Failed to cancel request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context(), httputil.Session(c))
	if err != nil {
		return httputil.WriteError(c, "Handler.Stats", err, "Failed to compute stats")
	}
	return c.JSON(http.StatusOK, stats)
}

func nonNil(reqs []*models.Request) []*models.Request {
	if reqs == nil {
		return []*models.Request{}
	}
	return reqs
}
