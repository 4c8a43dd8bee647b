package middlewares

import "github.com/gin-gonic/gin"

// abortWithError writes the same {success:false, data:{...}} envelope the
// handlers use, for rejections that happen before a handler runs.
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"data": gin.H{
			"code":      code,
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}
