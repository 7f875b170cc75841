package upload

import (
	"context"
	"io"
	"net/http"
	"strings"

	"quickclean/internal/httputil"
	"quickclean/internal/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MaxImageBytes caps a single request photo.
const MaxImageBytes = 10 << 20

// Store is the object storage the handler writes photos to.
type Store interface {
	Upload(ctx context.Context, contentType string, r io.Reader, size int64) (string, error)
}

type Handler struct {
	store Store
	log   *zap.Logger
}

func NewHandler(store Store, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

func (h *Handler) RegisterRoutes(r httputil.Routes) {
	r.Authed.POST("/uploads", h.UploadImage)
}

// UploadImage stores the multipart "image" field and returns its URL for use
// as image_url or after_image_url.
func (h *Handler) UploadImage(c echo.Context) error {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, MaxImageBytes+(1<<20))

	file, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "image file is required"})
	}
	if file.Size > MaxImageBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Message: "image must be 10MB or smaller"})
	}
	contentType := file.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "only image uploads are accepted"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "unreadable upload"})
	}
	defer src.Close()

	url, err := h.store.Upload(c.Request().Context(), contentType, src, file.Size)
	if err != nil {
		h.log.Error("image upload failed", zap.String("user_id", httputil.Session(c).UserID), zap.Error(err))
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{Message: "Failed to store image"})
	}
	return c.JSON(http.StatusCreated, map[string]string{"url": url})
}
