package models

import (
	"encoding/json"
	"time"
)

// Voucher is a discount code managed from the admin panel.
type Voucher struct {
	ID              string    `json:"_id"`
	Code            string    `json:"code"`
	DiscountPercent float64   `json:"discountPercent"`
	ExpirationDate  time.Time `json:"expirationDate"`
	Quantity        int       `json:"quantity"`
	IsActive        *bool     `json:"isActive,omitempty"` // explicit flag; nil when the upstream omits it
}

// Expired reports whether the expiration date has passed at now.
func (v Voucher) Expired(now time.Time) bool {
	return !now.Before(v.ExpirationDate)
}

// Active derives whether the voucher can still be redeemed.
// An explicit deactivation wins; otherwise it must be unexpired with quantity left.
func (v Voucher) Active(now time.Time) bool {
	if v.IsActive != nil && !*v.IsActive {
		return false
	}
	return !v.Expired(now) && v.Quantity > 0
}

// VoucherStats is GET /vouchers/{id}/stats; usage figures are opaque to this layer.
type VoucherStats json.RawMessage

// MarshalJSON keeps the upstream stats verbatim.
func (s VoucherStats) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

// UnmarshalJSON stores the upstream stats verbatim.
func (s *VoucherStats) UnmarshalJSON(b []byte) error {
	*s = append((*s)[:0], b...)
	return nil
}

// VoucherView is what the detail view opens with: both reads must succeed.
type VoucherView struct {
	Detail Voucher      `json:"detail"`
	Stats  VoucherStats `json:"stats"`
}
