package vouchers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/models"
)

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		missing []string
	}{
		{"complete", validDraft("A"), nil},
		{"empty", Draft{}, []string{"code", "discountPercentage", "expirationDate", "quantity"}},
		{"whitespace code", Draft{Code: "  ", DiscountPercentage: "5", ExpirationDate: "2030-01-01", Quantity: "1"}, []string{"code"}},
		{"zero quantity is present", Draft{Code: "A", DiscountPercentage: "0", ExpirationDate: "2030-01-01", Quantity: "0"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			ve, ok := apperr.AsValidation(err)
			require.True(t, ok)
			assert.Len(t, ve.Fields, len(tt.missing))
			for _, f := range tt.missing {
				assert.Contains(t, ve.Fields, f)
			}
			assert.Equal(t, ve.Fields[tt.missing[0]], ve.Reason)
		})
	}
}

func TestDraftFrom(t *testing.T) {
	d := DraftFrom(models.Voucher{
		Code:            "HALF",
		DiscountPercent: 12.5,
		ExpirationDate:  time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Quantity:        7,
	})
	assert.Equal(t, Draft{Code: "HALF", DiscountPercentage: "12.5", ExpirationDate: "2025-12-31", Quantity: "7"}, d)
	assert.Empty(t, DraftFrom(models.Voucher{}).ExpirationDate)
}
