package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/markbook-backend/internal/http/response"
	"github.com/yungbote/markbook-backend/internal/observability"
	"github.com/yungbote/markbook-backend/internal/platform/blob"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
	"github.com/yungbote/markbook-backend/internal/services"
)

const (
	msgNotConfigured     = "Blob storage not configured"
	detailsNotConfigured = "No snapshot storage backend is configured. Set MARKBOOK_STORAGE_MODE and its connection settings first."
)

// SnapshotHandler serves /save, /load, /delete and /blob/*pathname.
type SnapshotHandler struct {
	log     *logger.Logger
	gateway services.SnapshotGateway
	metrics *observability.Metrics
}

func NewSnapshotHandler(log *logger.Logger, gateway services.SnapshotGateway, metrics *observability.Metrics) *SnapshotHandler {
	return &SnapshotHandler{log: log.With("handler", "SnapshotHandler"), gateway: gateway, metrics: metrics}
}

type saveRequest struct {
	Data     json.RawMessage `json:"data"`
	Filename string          `json:"filename"`
}

type saveResponse struct {
	Success     bool   `json:"success"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	Pathname    string `json:"pathname"`
}

type listResponse struct {
	Success bool                    `json:"success"`
	Files   []services.SnapshotFile `json:"files"`
	HasMore bool                    `json:"hasMore"`
	Cursor  string                  `json:"cursor,omitempty"`
}

type loadResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type deleteRequest struct {
	URL string `json:"url"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *SnapshotHandler) ready(c *gin.Context, op string) bool {
	if h.gateway != nil && h.gateway.Configured() {
		return true
	}
	h.metrics.ObserveSnapshotOp(op, "unconfigured")
	response.RespondErrorDetails(c, http.StatusInternalServerError, msgNotConfigured, detailsNotConfigured)
	return false
}

// POST /save
func (h *SnapshotHandler) Save(c *gin.Context) {
	if !h.ready(c, "save") {
		return
	}
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.ObserveSnapshotOp("save", "invalid")
		response.RespondError(c, http.StatusBadRequest, "Missing data or filename", nil)
		return
	}
	saved, err := h.gateway.Save(c.Request.Context(), req.Data, req.Filename)
	switch {
	case errors.Is(err, services.ErrMissingSaveInput):
		h.metrics.ObserveSnapshotOp("save", "invalid")
		response.RespondError(c, http.StatusBadRequest, "Missing data or filename", nil)
		return
	case err != nil:
		h.metrics.ObserveSnapshotOp("save", "error")
		h.log.Error("Error saving snapshot", "filename", req.Filename, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "Failed to save data", err)
		return
	}
	h.metrics.ObserveSnapshotOp("save", "ok")
	h.metrics.ObserveSnapshotSize("save", int64(len(req.Data)))
	response.RespondOK(c, saveResponse{
		Success:     true,
		URL:         saved.URL,
		DownloadURL: saved.DownloadURL,
		Pathname:    saved.Pathname,
	})
}

// GET /load lists snapshots; GET /load?url=<locator> fetches one.
func (h *SnapshotHandler) Load(c *gin.Context) {
	if !h.ready(c, "load") {
		return
	}
	if locator := c.Query("url"); locator != "" {
		h.loadOne(c, locator)
		return
	}

	listing, err := h.gateway.List(c.Request.Context())
	if err != nil {
		h.metrics.ObserveSnapshotOp("list", "error")
		h.log.Error("Error listing snapshots", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "Failed to load data", err)
		return
	}
	h.metrics.ObserveSnapshotOp("list", "ok")
	response.RespondOK(c, listResponse{
		Success: true,
		Files:   listing.Files,
		HasMore: listing.HasMore,
		Cursor:  listing.Cursor,
	})
}

func (h *SnapshotHandler) loadOne(c *gin.Context, locator string) {
	data, err := h.gateway.Load(c.Request.Context(), locator)
	switch {
	case errors.Is(err, blob.ErrNotFound):
		h.metrics.ObserveSnapshotOp("load", "not_found")
		response.RespondError(c, http.StatusNotFound, "File not found", nil)
		return
	case err != nil:
		h.metrics.ObserveSnapshotOp("load", "error")
		h.log.Warn("Error loading snapshot", "locator", locator, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "Failed to load file", err)
		return
	}
	h.metrics.ObserveSnapshotOp("load", "ok")
	h.metrics.ObserveSnapshotSize("load", int64(len(data)))
	response.RespondOK(c, loadResponse{Success: true, Data: data})
}

// DELETE /delete. Deleting a snapshot that is already gone succeeds.
func (h *SnapshotHandler) Delete(c *gin.Context) {
	if !h.ready(c, "delete") {
		return
	}
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		h.metrics.ObserveSnapshotOp("delete", "invalid")
		response.RespondError(c, http.StatusBadRequest, "Missing or invalid URL", nil)
		return
	}
	err := h.gateway.Delete(c.Request.Context(), req.URL)
	switch {
	case errors.Is(err, blob.ErrNotFound):
		h.metrics.ObserveSnapshotOp("delete", "not_found")
	case err != nil:
		h.metrics.ObserveSnapshotOp("delete", "error")
		h.log.Error("Error deleting snapshot", "locator", req.URL, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "Failed to delete file", err)
		return
	default:
		h.metrics.ObserveSnapshotOp("delete", "ok")
	}
	response.RespondOK(c, deleteResponse{Success: true, Message: "File deleted successfully"})
}

// GET /blob/*pathname serves a stored snapshot for backends without public
// URLs of their own. ?download=1 adds an attachment disposition.
func (h *SnapshotHandler) Blob(c *gin.Context) {
	if !h.ready(c, "blob") {
		return
	}
	pathname := strings.TrimPrefix(c.Param("pathname"), "/")
	if pathname == "" {
		response.RespondError(c, http.StatusBadRequest, "Missing or invalid URL", nil)
		return
	}
	data, err := h.gateway.Load(c.Request.Context(), pathname)
	switch {
	case errors.Is(err, blob.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "File not found", nil)
		return
	case err != nil:
		response.RespondError(c, http.StatusInternalServerError, "Failed to load file", err)
		return
	}
	if c.Query("download") != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(pathname)))
	}
	c.Data(http.StatusOK, "application/json", data)
}
