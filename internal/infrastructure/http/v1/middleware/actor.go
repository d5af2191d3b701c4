package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "stockkeeper/internal/core/context"
)

// Identity headers set by the gateway in front of the API.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

const KeyUserID = "user_id"

// Actor copies the caller identity from the request headers into the
// request context, where audit hooks and movement records read it.
// Requests without identity run as "system".
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		name := strings.TrimSpace(c.GetHeader(HeaderUserName))
		if userID != "" || name != "" {
			ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{UserID: userID, Name: name})
			c.Request = c.Request.WithContext(ctx)
			c.Set(KeyUserID, userID)
		}
		c.Next()
	}
}
