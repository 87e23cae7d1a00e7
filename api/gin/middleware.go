package cleogin

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jcodog/Cleo-Dashboard-sub001/api"
	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
)

const (
	// DefaultUserIDHeader is set by the upstream session layer.
	DefaultUserIDHeader = "X-Cleo-User-ID"

	AuthUserIDKey = "auth-user-id"
)

// UserIDMiddleware resolves the authenticated user id from header, falling back
// to an id already placed in the request context. Requests without one are
// rejected with 401.
func UserIDMiddleware(header string) gin.HandlerFunc {
	if header == "" {
		header = DefaultUserIDHeader
	}

	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(header))
		if userID == "" {
			userID, _ = domain.UserIDFromContext(c.Request.Context())
		}
		if userID == "" {
			abortWithError(c, api.ErrUnauthenticated)
			return
		}

		c.Set(AuthUserIDKey, userID)
		c.Request = c.Request.WithContext(domain.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	status, body := api.NewErrorResponse(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
