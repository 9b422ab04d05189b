// Package health reports whether the server's backing services respond.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/domstore/admin-backend/pkg/response"
)

const checkTimeout = 2 * time.Second

// Checker probes one dependency.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function (e.g. pgxpool.Pool.Ping) to Checker.
type CheckFunc func(ctx context.Context) error

// Check implements Checker.
func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Handler serves GET /health.
type Handler struct {
	checks map[string]Checker
}

// NewHandler creates a health handler over the named checks.
func NewHandler(checks map[string]Checker) *Handler {
	return &Handler{checks: checks}
}

// Get runs every check and answers 200 when all pass, 503 otherwise.
func (h *Handler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	results := make(gin.H, len(names))
	for _, name := range names {
		if err := h.checks[name].Check(ctx); err != nil {
			results[name] = err.Error()
			status = "degraded"
			continue
		}
		results[name] = "ok"
	}

	body := response.Body{Status: "success", Data: gin.H{"status": status, "checks": results}}
	code := http.StatusOK
	if status != "ok" {
		body.Status = "error"
		body.Message = "dependency unavailable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}
