package vouchers

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/models"
)

// Draft is the voucher form. Values are raw form strings; range and type
// checks are left to the store API.
type Draft struct {
	Code               string `json:"code" validate:"required"`
	DiscountPercentage string `json:"discountPercentage" validate:"required"`
	ExpirationDate     string `json:"expirationDate" validate:"required"`
	Quantity           string `json:"quantity" validate:"required"`
}

var requiredMessages = map[string]string{
	"code":               "Code is required",
	"discountPercentage": "Discount percentage is required",
	"expirationDate":     "Expiration date is required",
	"quantity":           "Quantity is required",
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func draftValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks that every field is present and reports each missing one
// by its JSON name. Whitespace-only values count as missing.
func (d Draft) Validate() error {
	d.Code = strings.TrimSpace(d.Code)
	d.DiscountPercentage = strings.TrimSpace(d.DiscountPercentage)
	d.ExpirationDate = strings.TrimSpace(d.ExpirationDate)
	d.Quantity = strings.TrimSpace(d.Quantity)

	err := draftValidator().Struct(d)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(verrs))
	reason := ""
	for _, fe := range verrs {
		msg := requiredMessages[fe.Field()]
		if msg == "" {
			msg = fe.Field() + " is invalid"
		}
		fields[fe.Field()] = msg
		if reason == "" {
			reason = msg
		}
	}
	return apperr.InvalidFields(reason, fields)
}

// DraftFrom fills the form from an existing voucher for editing.
func DraftFrom(v models.Voucher) Draft {
	d := Draft{
		Code:               v.Code,
		DiscountPercentage: strconv.FormatFloat(v.DiscountPercent, 'f', -1, 64),
		Quantity:           strconv.Itoa(v.Quantity),
	}
	if !v.ExpirationDate.IsZero() {
		d.ExpirationDate = v.ExpirationDate.Format("2006-01-02")
	}
	return d
}
