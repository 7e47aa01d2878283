package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListNotifications returns the caller's notifications, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	notes, err := h.store.ListNotifications(c.Request.Context(), h.identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// MarkNotificationRead stamps one of the caller's notifications as read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	err := h.store.MarkNotificationRead(c.Request.Context(), c.Param("id"), h.identity(c).UserID, h.now().UTC())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
