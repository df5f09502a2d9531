package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	storageBackend string
}

func NewHealthHandler(storageBackend string) *HealthHandler {
	return &HealthHandler{storageBackend: storageBackend}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Ready reports the storage backend in use; "unconfigured" means persistence
// calls will fail with a configuration error.
func (h *HealthHandler) Ready(c *gin.Context) {
	backend := h.storageBackend
	if backend == "" {
		backend = "unconfigured"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": backend})
}
