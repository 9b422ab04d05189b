// Package query turns the order filter form state into the canonical
// query sent to the order listing endpoint.
package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/domstore/admin-backend/internal/apperr"
)

// DateLayout is the layout of date filter values (HTML date input format).
const DateLayout = "2006-01-02"

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// OrderFilter is the filter/pagination state of the order list.
// Optional fields hold raw form values; an empty string means unset.
type OrderFilter struct {
	Page      int    `json:"page" form:"page"`
	Limit     int    `json:"limit" form:"limit"`
	Status    string `json:"status" form:"status"`
	Search    string `json:"search" form:"search"`
	StartDate string `json:"startDate" form:"startDate"`
	EndDate   string `json:"endDate" form:"endDate"`
	MinTotal  string `json:"minTotal" form:"minTotal"`
	MaxTotal  string `json:"maxTotal" form:"maxTotal"`
}

// DefaultOrderFilter is the state the order list starts in.
func DefaultOrderFilter() OrderFilter {
	return OrderFilter{Page: DefaultPage, Limit: DefaultLimit}
}

// Normalize fills in page and limit when they are not positive.
func (f OrderFilter) Normalize() OrderFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	return f
}

type param struct {
	key   string
	value string
}

// params is the ordered parameter list; page and limit always lead.
func (f OrderFilter) params() []param {
	out := []param{
		{"page", strconv.Itoa(f.Page)},
		{"limit", strconv.Itoa(f.Limit)},
	}
	optional := []param{
		{"status", f.Status},
		{"search", f.Search},
		{"startDate", f.StartDate},
		{"endDate", f.EndDate},
		{"minTotal", f.MinTotal},
		{"maxTotal", f.MaxTotal},
	}
	for _, p := range optional {
		if p.value != "" {
			out = append(out, p)
		}
	}
	return out
}

// Values returns the query as url.Values. Unset fields are absent, not empty.
func (f OrderFilter) Values() url.Values {
	v := url.Values{}
	for _, p := range f.params() {
		v.Set(p.key, p.value)
	}
	return v
}

// Encode returns the canonical query string with parameters in fixed order.
func (f OrderFilter) Encode() string {
	var b strings.Builder
	for i, p := range f.params() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// Validate checks the filter before any request is issued.
// Page and limit must be positive, dates must be YYYY-MM-DD with start <= end,
// totals must be non-negative decimals with min <= max.
func (f OrderFilter) Validate() error {
	fields := map[string]string{}
	reason := ""
	fail := func(field, msg string) {
		if reason == "" {
			reason = msg
		}
		fields[field] = msg
	}

	if f.Page < 1 {
		fail("page", "page must be at least 1")
	}
	if f.Limit < 1 {
		fail("limit", "limit must be positive")
	}

	start, startOK := parseDate(f.StartDate)
	if f.StartDate != "" && !startOK {
		fail("startDate", "start date must be YYYY-MM-DD")
	}
	end, endOK := parseDate(f.EndDate)
	if f.EndDate != "" && !endOK {
		fail("endDate", "end date must be YYYY-MM-DD")
	}
	if startOK && endOK && start.After(end) {
		fail("startDate", "start date must not be after end date")
	}

	minTotal, minOK := parseTotal(f.MinTotal)
	if f.MinTotal != "" && !minOK {
		fail("minTotal", "minimum total must be a non-negative number")
	}
	maxTotal, maxOK := parseTotal(f.MaxTotal)
	if f.MaxTotal != "" && !maxOK {
		fail("maxTotal", "maximum total must be a non-negative number")
	}
	if minOK && maxOK && minTotal.GreaterThan(maxTotal) {
		fail("minTotal", "minimum total must not exceed maximum total")
	}

	if reason != "" {
		return apperr.InvalidFields(reason, fields)
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	return t, err == nil
}

func parseTotal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// ValidDate reports whether s is a YYYY-MM-DD date; used for report date path segments.
func ValidDate(s string) bool {
	_, ok := parseDate(s)
	return ok
}
