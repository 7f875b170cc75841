package notification

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quickclean/internal/changefeed"
	"quickclean/internal/httputil"

	"github.com/labstack/echo/v4"
)

const heartbeatInterval = 25 * time.Second

// Handler serves the notification log and the live change feed.
type Handler struct {
	repo   RepositoryInterface
	broker *changefeed.Broker
}

func NewHandler(repo RepositoryInterface, broker *changefeed.Broker) *Handler {
	return &Handler{repo: repo, broker: broker}
}

func (h *Handler) RegisterRoutes(r httputil.Routes) {
	r.Authed.GET("/notifications", h.ListNotifications)
	r.Authed.GET("/feed", h.Feed)
}

func (h *Handler) ListNotifications(c echo.Context) error {
	_, limit := httputil.Pagination(c, 50, 100)
	list, err := h.repo.ListByUser(c.Request().Context(), httputil.Session(c).UserID, limit)
	if err != nil {
		return httputil.WriteError(c, "Handler.ListNotifications", err, "Failed to retrieve notifications")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notifications": list})
}

// Feed streams request changes visible to the caller as server-sent events.
// The subscription is dropped as soon as the client goes away.
func (h *Handler) Feed(c echo.Context) error {
	changes, unsubscribe := h.broker.Subscribe(changefeed.ForSession(httputil.Session(c)))
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	fmt.Fprint(res, ": connected\n\n")
	res.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			fmt.Fprint(res, ": ping\n\n")
			res.Flush()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			data, err := json.Marshal(change)
			if err != nil {
				continue
			}
			event := "updated"
			if change.Op == "INSERT" {
				event = "created"
			}
			fmt.Fprintf(res, "id: %s\nevent: %s\ndata: %s\n\n", change.ID, event, data)
			res.Flush()
		}
	}
}
