package middlewares

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireForm rejects POST bodies that are not form encoded. Requests without
// a body (action only in the query string) pass.
func RequireForm() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || (mt != "application/x-www-form-urlencoded" && mt != "multipart/form-data") {
			abortWithError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be a form encoding")
			return
		}
		c.Next()
	}
}
