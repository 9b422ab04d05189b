package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/pkg/response"
)

// Session resolves the panel session named by the X-Session-ID header and
// stores its *session.Context in the gin context. Requests without a stored
// credential are rejected with 401.
func Session(guard *session.Guard, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		id := c.GetHeader(session.HeaderSessionID)
		sc, err := guard.Current(c.Request.Context(), id)
		if err != nil {
			logger.Error("resolve session", zap.Error(err))
			response.ServiceUnavailable(c, "session store unavailable")
			c.Abort()
			return
		}
		if !sc.Authenticated {
			response.Unauthorized(c, apperr.MsgLoginRequired)
			c.Abort()
			return
		}
		c.Set(session.ContextKey, &sc)
		c.Next()
	}
}

// SessionFrom returns the session context set by Session.
func SessionFrom(c *gin.Context) *session.Context {
	v, ok := c.Get(session.ContextKey)
	if !ok {
		return &session.Context{}
	}
	sc, _ := v.(*session.Context)
	if sc == nil {
		return &session.Context{}
	}
	return sc
}
