package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// GetNotification handles GET /api/notifications/:id
func (h *Handlers) GetNotification(c *gin.Context) {
	n, err := h.bridge.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get notification", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: n})
}

// PendingNotifications handles GET /api/notifications/pending
func (h *Handlers) PendingNotifications(c *gin.Context) {
	list, err := h.bridge.ListPending(c.Request.Context())
	if err != nil {
		h.respondError(c, "pending notifications", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: newListData(list)})
}

// NotificationsByCase handles GET /api/notifications/case/:caseId
func (h *Handlers) NotificationsByCase(c *gin.Context) {
	list, err := h.bridge.ListByCase(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		h.respondError(c, "notifications by case", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: newListData(list)})
}

// NotificationsByStatus handles GET /api/notifications/status/:status
func (h *Handlers) NotificationsByStatus(c *gin.Context) {
	status := entity.NotificationStatus(strings.ToUpper(c.Param("status")))
	if !status.IsValid() {
		h.respondError(c, "notifications by status",
			fmt.Errorf("%w: unknown notification status %q", domainwf.ErrValidation, c.Param("status")))
		return
	}

	list, err := h.bridge.ListByStatus(c.Request.Context(), status)
	if err != nil {
		h.respondError(c, "notifications by status", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: newListData(list)})
}

// MarkNotificationSent handles PUT /api/notifications/:id/mark-sent
func (h *Handlers) MarkNotificationSent(c *gin.Context) {
	n, err := h.bridge.MarkSent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "mark notification sent", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: n})
}

// MarkNotificationFailed handles PUT /api/notifications/:id/mark-failed
func (h *Handlers) MarkNotificationFailed(c *gin.Context) {
	var req MarkFailedRequest
	if !h.bindJSON(c, &req) {
		return
	}

	n, err := h.bridge.MarkFailed(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.respondError(c, "mark notification failed", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: n})
}
