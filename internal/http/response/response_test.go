package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/markbook-backend/internal/platform/apierr"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondError(c, http.StatusInternalServerError, "Failed to save data", errors.New("disk full"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=%d got=%d", http.StatusInternalServerError, w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Failed to save data" || body["details"] != "disk full" {
		t.Fatalf("body: got=%v", body)
	}
}

func TestMethodNotAllowedOmitsDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	MethodNotAllowed(c)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: want=%d got=%d", http.StatusMethodNotAllowed, w.Code)
	}
	if got := w.Body.String(); got != `{"error":"Method not allowed"}` {
		t.Fatalf("body: got=%s", got)
	}
}

func TestRespondAPIErrorUsesCarriedStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	err := fmt.Errorf("import: %w", apierr.New(http.StatusBadRequest, "Roster is empty", errors.New("no rows")))
	RespondAPIError(c, err, http.StatusInternalServerError, "Failed to read roster")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: want=%d got=%d", http.StatusBadRequest, w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "Roster is empty" || body["details"] != "no rows" {
		t.Fatalf("body: got=%v", body)
	}
}

func TestRespondAPIErrorFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondAPIError(c, errors.New("boom"), http.StatusInternalServerError, "Failed to export workbook")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=%d got=%d", http.StatusInternalServerError, w.Code)
	}
}
