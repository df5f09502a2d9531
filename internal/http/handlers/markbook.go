package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/markbook-backend/internal/http/response"
	"github.com/yungbote/markbook-backend/internal/markbook"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
	"github.com/yungbote/markbook-backend/internal/services"
	"github.com/yungbote/markbook-backend/internal/snapshot"
)

const maxRosterUploadBytes = 8 << 20

// MarkbookHandler exposes the derived views of a posted snapshot: settings,
// per-student overview, the xlsx workbook and progress charts.
type MarkbookHandler struct {
	log      *logger.Logger
	settings markbook.Settings
	workbook services.WorkbookService
	charts   services.ChartService
	now      func() time.Time
}

func NewMarkbookHandler(log *logger.Logger, settings markbook.Settings, workbook services.WorkbookService, charts services.ChartService) *MarkbookHandler {
	return &MarkbookHandler{
		log:      log.With("handler", "MarkbookHandler"),
		settings: settings,
		workbook: workbook,
		charts:   charts,
		now:      time.Now,
	}
}

type settingsResponse struct {
	markbook.Settings
	SuggestedWeek string `json:"suggestedWeek"`
}

// GET /settings
func (h *MarkbookHandler) Settings(c *gin.Context) {
	response.RespondOK(c, settingsResponse{
		Settings:      h.settings,
		SuggestedWeek: markbook.SuggestWeekName(h.now()),
	})
}

// decodeState reads a snapshot body. Missing visibility flags fall back
// to the defaults.
func (h *MarkbookHandler) decodeState(c *gin.Context) (markbook.State, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "Invalid markbook data", err)
		return markbook.State{}, false
	}
	decoded, err := snapshot.Deserialize(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "Invalid markbook data", err)
		return markbook.State{}, false
	}
	return decoded.State(markbook.DefaultVisibleMetrics()), true
}

// POST /overview
func (h *MarkbookHandler) Overview(c *gin.Context) {
	st, ok := h.decodeState(c)
	if !ok {
		return
	}
	response.RespondOK(c, gin.H{"success": true, "students": markbook.Overview(st)})
}

// POST /export/xlsx
func (h *MarkbookHandler) ExportWorkbook(c *gin.Context) {
	st, ok := h.decodeState(c)
	if !ok {
		return
	}
	raw, err := h.workbook.Export(st)
	if err != nil {
		h.log.Error("Workbook export failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "Failed to export workbook", err)
		return
	}
	name := fmt.Sprintf("markbook-%s.xlsx", h.now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", raw)
}

// POST /import/xlsx (multipart field "file")
func (h *MarkbookHandler) ImportRoster(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRosterUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "Missing roster file", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "Missing roster file", err)
		return
	}
	defer f.Close()

	students, err := h.workbook.ImportRoster(f)
	if err != nil {
		h.log.Warn("Roster import failed", "filename", fh.Filename, "error", err)
		response.RespondAPIError(c, err, http.StatusBadRequest, "Failed to read roster")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "students": students})
}

// POST /chart?studentId=<id>
func (h *MarkbookHandler) StudentChart(c *gin.Context) {
	id, err := strconv.Atoi(c.Query("studentId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "Missing or invalid studentId", err)
		return
	}
	st, ok := h.decodeState(c)
	if !ok {
		return
	}
	var student *markbook.Student
	for i := range st.Students {
		if st.Students[i].ID == id {
			student = &st.Students[i]
			break
		}
	}
	if student == nil {
		response.RespondError(c, http.StatusNotFound, "Student not found", nil)
		return
	}
	png, err := h.charts.RenderStudent(*student, st.Weeks, st.VisibleMetrics)
	if err != nil {
		h.log.Error("Chart render failed", "student_id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "Failed to render chart", err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
