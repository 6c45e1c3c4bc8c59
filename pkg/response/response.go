package response

import (
	"errors"
	"net/http"
	"time"

	"order-pay-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// SuccessResponse wraps every 2xx body.
type SuccessResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse carries the AppError code so clients can branch on the kind
// (PAY_002 bad signature, PAY_004 transfer failure, ...).
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

func OK(c *gin.Context, data any) {
	success(c, http.StatusOK, data)
}

func Created(c *gin.Context, data any) {
	success(c, http.StatusCreated, data)
}

// Error writes err as an ErrorResponse. Anything that is not an AppError is
// reported as SYS_000 without leaking its text. err is always attached to the
// gin context for the request logger.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	status, code, msg := http.StatusInternalServerError, "SYS_000", "Internal server error"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code, msg = appErr.HTTPStatus, appErr.Code, appErr.Message
	}

	id := requestID(c)
	c.Header(requestIDHeader, id)
	c.JSON(status, ErrorResponse{
		ErrorCode: code,
		Message:   msg,
		RequestID: id,
		Timestamp: stamp(),
	})
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: requestID(c),
		Timestamp: stamp(),
	})
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// requestID prefers the id set by the RequestID middleware, then the inbound
// header, and only then mints a new one.
func requestID(c *gin.Context) string {
	if s := c.GetString(requestIDKey); s != "" {
		return s
	}
	if c.Request != nil {
		if s := c.Request.Header.Get(requestIDHeader); s != "" {
			return s
		}
	}
	return uuid.NewString()
}
