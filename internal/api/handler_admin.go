package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laundrylink-backend/internal/analytics"
)

// Analytics computes the admin dashboard report.
func (h *Handler) Analytics(c *gin.Context) {
	report, err := analytics.Compute(c.Request.Context(), h.store, h.now().In(h.loc))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListUsers returns every profile, newest first.
func (h *Handler) ListUsers(c *gin.Context) {
	profiles, err := h.store.ListProfiles(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}
