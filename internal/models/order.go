package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the order lifecycle state as the store API spells it.
type OrderStatus string

const (
	OrderStatusWaitingForPayment OrderStatus = "Waiting for payment"
	OrderStatusOrderSuccessful   OrderStatus = "Order successful"
	OrderStatusPreparingGoods    OrderStatus = "Preparing goods"
	OrderStatusDelivering        OrderStatus = "Delivering"
	OrderStatusSuccess           OrderStatus = "Success"
	OrderStatusFailure           OrderStatus = "Failure"
)

// OrderStatuses lists every known status in display order.
var OrderStatuses = []OrderStatus{
	OrderStatusWaitingForPayment,
	OrderStatusOrderSuccessful,
	OrderStatusPreparingGoods,
	OrderStatusDelivering,
	OrderStatusSuccess,
	OrderStatusFailure,
}

// Known reports whether s is one of the statuses the store API defines.
func (s OrderStatus) Known() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is expected.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusSuccess || s == OrderStatusFailure
}

// Next returns the following status on the happy path, or "" when s is terminal or unknown.
// Operators may still override to any status; this is only the suggested step.
func (s OrderStatus) Next() OrderStatus {
	switch s {
	case OrderStatusWaitingForPayment, OrderStatusOrderSuccessful:
		return OrderStatusPreparingGoods
	case OrderStatusPreparingGoods:
		return OrderStatusDelivering
	case OrderStatusDelivering:
		return OrderStatusSuccess
	}
	return ""
}

// Order is the admin projection of a store order.
type Order struct {
	ID         string          `json:"_id"`
	CreatedAt  time.Time       `json:"createdAt"`
	Name       string          `json:"name"` // customer name
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     OrderStatus     `json:"status"`
}

// OrderPage is one page of the filtered order list.
type OrderPage struct {
	Orders  []Order `json:"orders"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
	Total   *int    `json:"total,omitempty"` // set only when the upstream reports it
	HasMore bool    `json:"has_more"`
}
