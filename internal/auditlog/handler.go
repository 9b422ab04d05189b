package auditlog

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/domstore/admin-backend/pkg/response"
)

const maxListLimit = 500

// Handler handles audit log HTTP endpoints.
type Handler struct {
	list Lister
}

// NewHandler creates an audit log handler.
func NewHandler(list Lister) *Handler {
	return &Handler{list: list}
}

// List handles GET /audit?action=&limit=.
func (h *Handler) List(c *gin.Context) {
	limit := DefaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxListLimit {
			response.BadRequest(c, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	entries, err := h.list.List(c.Request.Context(), c.Query("action"), limit)
	if err != nil {
		response.Internal(c, "failed to load audit log")
		return
	}
	response.OK(c, gin.H{"entries": entries})
}
