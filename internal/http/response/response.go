package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/markbook-backend/internal/platform/apierr"
)

// ErrorBody is the error shape every markbook endpoint answers with.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RespondError writes message with err's text as details. A nil err omits
// details.
func RespondError(c *gin.Context, status int, message string, err error) {
	body := ErrorBody{Error: message}
	if err != nil {
		body.Details = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func RespondErrorDetails(c *gin.Context, status int, message, details string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: message, Details: details})
}

// RespondAPIError uses the status and message of an *apierr.Error in err's
// chain, falling back to status and message otherwise.
func RespondAPIError(c *gin.Context, err error, status int, message string) {
	if ae, ok := apierr.As(err); ok {
		if ae.Status != 0 {
			status = ae.Status
		}
		if ae.Message != "" {
			message = ae.Message
		}
		RespondError(c, status, message, ae.Err)
		return
	}
	RespondError(c, status, message, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func MethodNotAllowed(c *gin.Context) {
	RespondError(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
}
