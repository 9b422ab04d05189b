package promotions

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/middleware"
	"github.com/domstore/admin-backend/pkg/response"
)

const msgAdded = "Promotion added successfully"

// AddRequest is the body for POST /promotions. Dates are YYYY-MM-DD or RFC 3339.
type AddRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	DiscountPercent string `json:"discountPercent"`
	Product         string `json:"product"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
}

// Handler handles promotion HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a promotions handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Add handles POST /promotions. The body is applied to a fresh draft through
// the same guarded edits the panel form uses, then submitted.
func (h *Handler) Add(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := draftFrom(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	sc := middleware.SessionFrom(c)
	if err := d.Submit(c.Request.Context(), h.svc.For(sc)); err != nil {
		response.Error(c, err)
		return
	}
	response.OKMessage(c, msgAdded, d.Promotion())
}

func draftFrom(req AddRequest) (*Draft, error) {
	d := NewDraft()
	d.SetName(req.Name)
	d.SetDescription(req.Description)
	d.SetProduct(req.Product)
	if !d.SetDiscountPercent(req.DiscountPercent) {
		msg := "discount percent must be a number between 0 and 100"
		return nil, apperr.InvalidFields(msg, map[string]string{"discountPercent": msg})
	}
	if req.StartDate != "" {
		t, err := parseDate(req.StartDate)
		if err != nil {
			return nil, apperr.InvalidFields(MsgInvalidStartDate, map[string]string{"startDate": MsgInvalidStartDate})
		}
		d.SetStartDate(t)
	}
	if req.EndDate != "" {
		t, err := parseDate(req.EndDate)
		if err != nil || !d.SetEndDate(t) {
			return nil, apperr.InvalidFields(MsgInvalidEndDate, map[string]string{"endDate": MsgInvalidEndDate})
		}
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
