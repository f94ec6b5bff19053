package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"requisition-sync/internal/apperror"
	applog "requisition-sync/pkg/logger"
)

// ErrorHandler turns the last error recorded with c.Error into a JSON
// answer. Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		log := applog.FromContext(c.Request.Context())

		if appErr, ok := apperror.As(err); ok {
			if appErr.Err != nil {
				log.Warnw("request error", "code", appErr.Code, "cause", appErr.Err)
			}
			c.JSON(apperror.HTTPStatusOf(appErr), gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
			return
		}

		log.Errorw("unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "internal server error",
		})
	}
}
