// Package promotions validates the promotion add form and posts it to the
// store API.
package promotions

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/models"
)

// Inline error texts.
const (
	MsgInvalidStartDate   = "Invalid start date"
	MsgInvalidEndDate     = "Invalid end date"
	MsgDescriptionTooWeak = "Description must be at least 10 characters and contain letters"
	MsgFillAllFields      = "Please fill in all fields"
	MsgStartBeforeEnd     = "Start date must be before end date"
)

const minDescriptionRunes = 10

// Adder posts a validated promotion.
type Adder interface {
	Add(ctx context.Context, p models.Promotion) error
}

// AdderFunc adapts a function to Adder.
type AdderFunc func(ctx context.Context, p models.Promotion) error

// Add implements Adder.
func (f AdderFunc) Add(ctx context.Context, p models.Promotion) error { return f(ctx, p) }

// Draft is the promotion add form. Start and end dates are guarded: an edit
// that would make start >= end is dropped, the previous value kept and an
// inline error set until the next edit attempt. Not safe for concurrent use.
type Draft struct {
	name            string
	description     string
	discountPercent string
	product         string
	startDate       *time.Time
	endDate         *time.Time
	errMsg          string
}

// DraftState is the visible state of a draft.
type DraftState struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	DiscountPercent string     `json:"discountPercent"`
	Product         string     `json:"product"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{}
}

// State returns the current form values and inline error.
func (d *Draft) State() DraftState {
	return DraftState{
		Name:            d.name,
		Description:     d.description,
		DiscountPercent: d.discountPercent,
		Product:         d.product,
		StartDate:       d.startDate,
		EndDate:         d.endDate,
		Error:           d.errMsg,
	}
}

// Error returns the inline error, "" when none is shown.
func (d *Draft) Error() string { return d.errMsg }

// Touch clears the inline error; the panel calls it when a date input is focused.
func (d *Draft) Touch() { d.errMsg = "" }

// SetName sets the promotion name.
func (d *Draft) SetName(s string) { d.name = s }

// SetDescription sets the description.
func (d *Draft) SetDescription(s string) { d.description = s }

// SetProduct sets the product reference.
func (d *Draft) SetProduct(s string) { d.product = s }

// SetDiscountPercent accepts s only when it is empty or a number in [0, 100].
// Anything else is ignored and the previous value stays.
func (d *Draft) SetDiscountPercent(s string) bool {
	s = strings.TrimSpace(s)
	if s != "" {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n < 0 || n > 100 {
			return false
		}
	}
	d.discountPercent = s
	return true
}

// SetStartDate sets the start date unless it is not before the end date.
func (d *Draft) SetStartDate(t time.Time) bool {
	d.Touch()
	if d.endDate != nil && !t.Before(*d.endDate) {
		d.errMsg = MsgInvalidStartDate
		return false
	}
	d.startDate = &t
	return true
}

// SetEndDate sets the end date unless it is not after the start date.
func (d *Draft) SetEndDate(t time.Time) bool {
	d.Touch()
	if d.startDate != nil && !t.After(*d.startDate) {
		d.errMsg = MsgInvalidEndDate
		return false
	}
	d.endDate = &t
	return true
}

// Check returns the first failing precondition in order: description format,
// required fields, start before end.
func (d *Draft) Check() error {
	if !ValidDescription(d.description) {
		return apperr.InvalidFields(MsgDescriptionTooWeak, map[string]string{"description": MsgDescriptionTooWeak})
	}
	missing := map[string]string{}
	for field, v := range map[string]string{
		"name":            d.name,
		"product":         d.product,
		"discountPercent": d.discountPercent,
	} {
		if strings.TrimSpace(v) == "" {
			missing[field] = MsgFillAllFields
		}
	}
	if d.startDate == nil {
		missing["startDate"] = MsgFillAllFields
	}
	if d.endDate == nil {
		missing["endDate"] = MsgFillAllFields
	}
	if len(missing) > 0 {
		return apperr.InvalidFields(MsgFillAllFields, missing)
	}
	if !d.startDate.Before(*d.endDate) {
		return apperr.InvalidFields(MsgStartBeforeEnd, map[string]string{"startDate": MsgStartBeforeEnd})
	}
	return nil
}

// Promotion returns the payload for a draft that passed Check.
func (d *Draft) Promotion() models.Promotion {
	p := models.Promotion{
		Name:            strings.TrimSpace(d.name),
		Description:     strings.TrimSpace(d.description),
		DiscountPercent: d.discountPercent,
		Product:         strings.TrimSpace(d.product),
	}
	if d.startDate != nil {
		p.StartDate = *d.startDate
	}
	if d.endDate != nil {
		p.EndDate = *d.endDate
	}
	return p
}

// Submit checks the draft and hands it to add. On a failed check the reason
// becomes the inline error and add is not called.
func (d *Draft) Submit(ctx context.Context, add Adder) error {
	if err := d.Check(); err != nil {
		d.errMsg = apperr.PublicMessage(err)
		return err
	}
	if err := add.Add(ctx, d.Promotion()); err != nil {
		d.errMsg = apperr.PublicMessage(err)
		return err
	}
	d.errMsg = ""
	return nil
}

// ValidDescription reports whether s is more than filler: at least ten
// characters once trimmed, including at least one letter.
func ValidDescription(s string) bool {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) < minDescriptionRunes {
		return false
	}
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
