package middlewares

import (
	"net/http"

	"github.com/a-szyszlo/event-manager/internal/auth"
	"github.com/gin-gonic/gin"
)

type NonceVerifier interface {
	Verify(raw string, purpose auth.Purpose) error
}

const msgInvalidNonce = "Your session has expired. Please refresh the page and try again."

// NonceFrom reads the anti-forgery token from the form (or query) fields
// "nonce" or "token".
func NonceFrom(c *gin.Context) string {
	for _, field := range []string{"nonce", "token"} {
		if v := c.PostForm(field); v != "" {
			return v
		}
		if v := c.Query(field); v != "" {
			return v
		}
	}
	return ""
}

// RequireNonce rejects the request with 403 invalid_nonce unless it carries a
// valid token for purpose. The code lets clients refresh the token and retry.
func RequireNonce(v NonceVerifier, purpose auth.Purpose) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.Verify(NonceFrom(c), purpose); err != nil {
			abortWithError(c, http.StatusForbidden, "invalid_nonce", msgInvalidNonce)
		}
	}
}
