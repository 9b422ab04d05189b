package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded after a successful upstream mutation.
const (
	AuditActionOrderStatus              = "order.status"
	AuditActionVoucherCreate            = "voucher.create"
	AuditActionVoucherUpdate            = "voucher.update"
	AuditActionVoucherDelete            = "voucher.delete"
	AuditActionVoucherDeactivateExpired = "voucher.deactivate_expired"
	AuditActionPromotionAdd             = "promotion.add"
)

// AuditEntry records one operator mutation.
type AuditEntry struct {
	ID         uuid.UUID `json:"id"`
	SessionID  string    `json:"session_id"`
	Action     string    `json:"action"`
	ResourceID string    `json:"resource_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
