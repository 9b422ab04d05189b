package models

import "time"

// Promotion is the payload posted when an operator adds a product promotion.
type Promotion struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DiscountPercent string    `json:"discountPercent"`
	Product         string    `json:"product"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
}
