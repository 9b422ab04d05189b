// Package upstreamtest runs an in-memory store API for tests of the
// order, voucher, promotion, report and account components.
package upstreamtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/domstore/admin-backend/internal/models"
)

// Call is one request the fake received.
type Call struct {
	Method   string
	Path     string
	RawQuery string
}

type failure struct {
	code int
	msg  string
}

// Server is a fake store API. All exported methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	token      string
	now        time.Time
	orders     []models.Order
	vouchers   []models.Voucher
	promotions []models.Promotion
	password   string
	nextID     int
	calls      []Call
	failures   map[string]failure
	reportTot  bool
	// Gate, when set, runs before each request is handled (outside the lock).
	Gate func(r *http.Request)
}

// New starts a fake that accepts "Bearer <token>".
func New(token string) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		token:    token,
		now:      time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		password: "secret-1",
		failures: map[string]failure{},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// Now is the fake's clock, used to decide voucher expiry.
func (s *Server) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// ExpireToken makes every further request answer 401.
func (s *Server) ExpireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = "\x00expired"
}

// ReportTotals makes GET /orders include the total count.
func (s *Server) ReportTotals(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportTot = on
}

// FailNext makes the next request matching method and path fail with code/msg.
func (s *Server) FailNext(method, path string, code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{code: code, msg: msg}
}

// AddOrder seeds an order.
func (s *Server) AddOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

// AddVoucher seeds a voucher and returns it with its id.
func (s *Server) AddVoucher(v models.Voucher) models.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		s.nextID++
		v.ID = fmt.Sprintf("v-%d", s.nextID)
	}
	s.vouchers = append(s.vouchers, v)
	return v
}

// Order returns the stored order by id.
func (s *Server) Order(id string) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

// Vouchers returns the stored vouchers.
func (s *Server) Vouchers() []models.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Voucher(nil), s.vouchers...)
}

// Promotions returns the posted promotions.
func (s *Server) Promotions() []models.Promotion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Promotion(nil), s.promotions...)
}

// Password returns the current account password.
func (s *Server) Password() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.password
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount counts received requests with the given method and path.
func (s *Server) CallCount(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"status": "error", "message": msg})
}

func (s *Server) router() http.Handler {
	r := gin.New()
	r.Use(s.middleware)

	r.GET("/orders", s.listOrders)
	r.PUT("/orders/:id", s.updateOrder)

	r.GET("/vouchers", s.listVouchers)
	r.POST("/vouchers", s.createVoucher)
	r.POST("/vouchers/deactivate_expired", s.deactivateExpired)
	r.GET("/vouchers/:id", s.getVoucher)
	r.PUT("/vouchers/:id", s.updateVoucher)
	r.DELETE("/vouchers/:id", s.deleteVoucher)
	r.GET("/vouchers/:id/stats", s.voucherStats)

	r.POST("/promotions", s.addPromotion)

	r.GET("/reports/business-overview/:date", s.report("businessOverview"))
	r.GET("/reports/orders/summary", s.report("ordersSumary"))
	r.GET("/reports/revenue-by-category/:date", s.report("revenueByCategory"))
	r.GET("/reports/revenue/:date", s.report("revenue"))
	r.GET("/reports/promotion-effectiveness/:date", s.report("promotionEffectiveness"))

	r.PUT("/users/change-password", s.changePassword)
	return r
}

func (s *Server) middleware(c *gin.Context) {
	if s.Gate != nil {
		s.Gate(c.Request)
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: c.Request.Method, Path: c.Request.URL.Path, RawQuery: c.Request.URL.RawQuery})
	token := s.token
	key := c.Request.Method + " " + c.Request.URL.Path
	f, injected := s.failures[key]
	delete(s.failures, key)
	s.mu.Unlock()

	if c.GetHeader("Authorization") != "Bearer "+token {
		fail(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if injected {
		fail(c, f.code, f.msg)
		return
	}
	c.Next()
}

func (s *Server) listOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	if page < 1 || limit < 1 {
		fail(c, http.StatusBadRequest, "page and limit are required")
		return
	}
	status := c.Query("status")
	search := strings.ToLower(c.Query("search"))
	minTotal, hasMin := decimalParam(c.Query("minTotal"))
	maxTotal, hasMax := decimalParam(c.Query("maxTotal"))

	s.mu.Lock()
	var matched []models.Order
	for _, o := range s.orders {
		if status != "" && string(o.Status) != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(o.Name), search) && !strings.Contains(strings.ToLower(o.ID), search) {
			continue
		}
		if hasMin && o.TotalPrice.LessThan(minTotal) {
			continue
		}
		if hasMax && o.TotalPrice.GreaterThan(maxTotal) {
			continue
		}
		matched = append(matched, o)
	}
	reportTot := s.reportTot
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	from := (page - 1) * limit
	if from > total {
		from = total
	}
	to := from + limit
	if to > total {
		to = total
	}
	data := gin.H{"orders": matched[from:to]}
	if reportTot {
		data["total"] = total
	}
	ok(c, data)
}

func decimalParam(v string) (decimal.Decimal, bool) {
	if v == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	return d, err == nil
}

func (s *Server) updateOrder(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Status == "" {
		fail(c, http.StatusBadRequest, "status is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == c.Param("id") {
			s.orders[i].Status = models.OrderStatus(body.Status)
			c.JSON(http.StatusOK, gin.H{})
			return
		}
	}
	fail(c, http.StatusNotFound, "Order not found")
}

func (s *Server) listVouchers(c *gin.Context) {
	ok(c, gin.H{"vouchers": s.Vouchers()})
}

type voucherBody struct {
	Code               string `json:"code"`
	DiscountPercentage string `json:"discountPercentage"`
	ExpirationDate     string `json:"expirationDate"`
	Quantity           string `json:"quantity"`
}

func (b voucherBody) toVoucher() (models.Voucher, error) {
	pct, err := strconv.ParseFloat(b.DiscountPercentage, 64)
	if err != nil || pct < 0 || pct > 100 {
		return models.Voucher{}, fmt.Errorf("Discount percentage must be between 0 and 100")
	}
	exp, err := time.Parse(time.RFC3339, b.ExpirationDate)
	if err != nil {
		exp, err = time.Parse("2006-01-02", b.ExpirationDate)
	}
	if err != nil {
		return models.Voucher{}, fmt.Errorf("Invalid expiration date")
	}
	qty, err := strconv.Atoi(b.Quantity)
	if err != nil || qty < 0 {
		return models.Voucher{}, fmt.Errorf("Quantity must be a non-negative integer")
	}
	return models.Voucher{Code: b.Code, DiscountPercent: pct, ExpirationDate: exp, Quantity: qty}, nil
}

func (s *Server) createVoucher(c *gin.Context) {
	var body voucherBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	v, err := body.toVoucher()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.vouchers {
		if existing.Code == v.Code {
			fail(c, http.StatusBadRequest, "Voucher code already exists")
			return
		}
	}
	s.nextID++
	v.ID = fmt.Sprintf("v-%d", s.nextID)
	s.vouchers = append(s.vouchers, v)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": gin.H{"voucher": v}})
}

func (s *Server) updateVoucher(c *gin.Context) {
	var body voucherBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	v, err := body.toVoucher()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.vouchers {
		if s.vouchers[i].ID == c.Param("id") {
			v.ID = s.vouchers[i].ID
			v.IsActive = s.vouchers[i].IsActive
			s.vouchers[i] = v
			ok(c, gin.H{"voucher": v})
			return
		}
	}
	fail(c, http.StatusNotFound, "Voucher not found")
}

func (s *Server) deleteVoucher(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.vouchers {
		if s.vouchers[i].ID == c.Param("id") {
			s.vouchers = append(s.vouchers[:i], s.vouchers[i+1:]...)
			ok(c, nil)
			return
		}
	}
	fail(c, http.StatusNotFound, "Voucher not found")
}

func (s *Server) getVoucher(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vouchers {
		if v.ID == c.Param("id") {
			ok(c, gin.H{"voucher": v})
			return
		}
	}
	fail(c, http.StatusNotFound, "Voucher not found")
}

func (s *Server) voucherStats(c *gin.Context) {
	ok(c, gin.H{"voucherId": c.Param("id"), "usedCount": 3})
}

func (s *Server) deactivateExpired(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	inactive := false
	for i := range s.vouchers {
		if s.vouchers[i].Expired(s.now) {
			s.vouchers[i].IsActive = &inactive
			n++
		}
	}
	ok(c, gin.H{"deactivated": n})
}

func (s *Server) addPromotion(c *gin.Context) {
	var p models.Promotion
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	s.promotions = append(s.promotions, p)
	s.mu.Unlock()
	ok(c, gin.H{"promotion": p})
}

func (s *Server) report(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, gin.H{name: gin.H{"date": c.Param("date"), "totalOrders": 42}})
	}
}

func (s *Server) changePassword(c *gin.Context) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if body.CurrentPassword != s.password {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Current password is incorrect"})
		return
	}
	s.password = body.NewPassword
	ok(c, nil)
}
