package obs

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandlers serves liveness and readiness probes. Livez answers
// as long as the process runs; Readyz consults the Ready hook.
type HealthHandlers struct {
	Ready func() error
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	if h.Ready != nil {
		if err := h.Ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.Status(http.StatusOK)
}
