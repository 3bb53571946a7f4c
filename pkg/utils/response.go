package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	RequestID    string `json:"request_id,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
	NodesVisited int    `json:"nodes_visited,omitempty"`
	Suboptimal   bool   `json:"suboptimal,omitempty"`
}

func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func SendSuccessWithMeta(c *gin.Context, data interface{}, message string, meta *Meta) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Message: message,
		Meta:    meta,
	})
}

// SendEmptyResult reports a search that ran cleanly but found nothing. It is
// not an error, so Success stays true and Error stays nil.
func SendEmptyResult(c *gin.Context, data interface{}, message string, meta *Meta) {
	c.JSON(http.StatusNotFound, Response{
		Success: true,
		Data:    data,
		Message: message,
		Meta:    meta,
	})
}

func SendError(c *gin.Context, statusCode int, err *AppError) {
	c.JSON(statusCode, Response{
		Success: false,
		Error:   err,
	})
}

func SendValidationError(c *gin.Context, message string, details string) {
	SendError(c, http.StatusBadRequest, NewAppError(ErrCodeValidation, message, details))
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, NewAppError(ErrCodeNotFound, message))
}

func SendInternalError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, NewAppError(ErrCodeInternal, message))
}

func SendServiceUnavailable(c *gin.Context, message string, details string) {
	SendError(c, http.StatusServiceUnavailable, NewAppError(ErrCodeCatalogUnavailable, message, details))
}
