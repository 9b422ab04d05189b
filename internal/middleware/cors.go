package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/domstore/admin-backend/internal/session"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsMaxAge  = "600"
)

// corsHeaders are the request headers the panel sends: JSON bodies and the
// session id. The store token never leaves the server, so Authorization is
// not accepted from the browser.
var corsHeaders = "Content-Type, " + session.HeaderSessionID

// CORS applies the admin panel origin policy. allowedOrigins is a
// comma-separated list of panel origins, or "*" (or empty) during local
// development. With a list, only those origins are echoed back, responses vary
// on Origin, and preflights from any other origin are refused with 403.
// Requests without an Origin header are not browser cross-origin calls and
// pass through untouched.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := parseOrigins(allowedOrigins)
	anyOrigin := len(origins) == 0 || origins["*"]
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""
		if origin == "" {
			c.Next()
			return
		}

		switch {
		case anyOrigin:
			c.Header("Access-Control-Allow-Origin", "*")
		case origins[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		default:
			c.Header("Vary", "Origin")
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			// the browser blocks the response without an allow header
			c.Next()
			return
		}

		if preflight {
			c.Header("Access-Control-Allow-Methods", corsMethods)
			c.Header("Access-Control-Allow-Headers", corsHeaders)
			c.Header("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func parseOrigins(s string) map[string]bool {
	m := make(map[string]bool)
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			m[o] = true
		}
	}
	return m
}
