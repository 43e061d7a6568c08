package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler answers liveness probes. When ready is set, a failing probe
// turns the answer into 503 so a missing data directory is visible.
type HealthHandler struct {
	ready func() error
}

func NewHealthHandler(ready func() error) *HealthHandler { return &HealthHandler{ready: ready} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			c.String(http.StatusServiceUnavailable, "unavailable: %v", err)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
