package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func JSON200(c *gin.Context, body gin.H) {
	c.JSON(http.StatusOK, body)
}

func JSON202(c *gin.Context, body gin.H) {
	c.JSON(http.StatusAccepted, body)
}

func JSON400(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func JSON401(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": message})
}

func JSON404(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"error": message})
}

func JSON429(c *gin.Context, message string) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": message})
}

// JSONError writes the stable error envelope used by the job endpoints.
// Nothing is allowed to propagate past the handler boundary; raw internal
// errors are logged server-side only.
func JSONError(c *gin.Context, httpStatus int, code, message string, canRetry bool) {
	c.JSON(httpStatus, gin.H{
		"success":    false,
		"status":     "error",
		"error":      message,
		"error_code": code,
		"can_retry":  canRetry,
	})
}
