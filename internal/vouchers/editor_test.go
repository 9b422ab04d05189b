package vouchers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/auditlog"
	"github.com/domstore/admin-backend/internal/models"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/upstream/upstreamtest"
)

func newEditor(t *testing.T) (*upstreamtest.Env, *Editor, *auditlog.Memory) {
	t.Helper()
	env := upstreamtest.NewEnv(t)
	audit := auditlog.NewMemory()
	return env, NewEditor(NewService(env.Client, audit, nil), env.Notices), audit
}

func validDraft(code string) Draft {
	return Draft{Code: code, DiscountPercentage: "15", ExpirationDate: "2030-01-01", Quantity: "100"}
}

func TestSubmit_MissingFieldsNoNetwork(t *testing.T) {
	env, ed, _ := newEditor(t)

	st, err := ed.Submit(context.Background(), &env.Session, Draft{Code: "SUMMER", DiscountPercentage: "10"})
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"expirationDate": "Expiration date is required",
		"quantity":       "Quantity is required",
	}, ve.Fields)
	assert.Equal(t, ve.Fields, st.FieldErrors)
	assert.Equal(t, "SUMMER", st.Form.Code)
	assert.Empty(t, env.Server.Calls())
}

func TestSubmit_CreateThenReload(t *testing.T) {
	env, ed, audit := newEditor(t)
	ctx := context.Background()

	st, err := ed.Submit(ctx, &env.Session, validDraft("WELCOME10"))
	require.NoError(t, err)
	require.Len(t, st.Vouchers, 1)
	assert.Equal(t, "WELCOME10", st.Vouchers[0].Code)
	assert.Equal(t, Draft{}, st.Form)
	assert.False(t, st.Editing)
	assert.Equal(t, 1, env.Server.CallCount(http.MethodPost, "/vouchers"))
	assert.Equal(t, 1, env.Server.CallCount(http.MethodGet, "/vouchers"))
	assert.Equal(t, 1, env.Notices.Count(notice.LevelSuccess, msgCreated))

	entries, _ := audit.List(ctx, models.AuditActionVoucherCreate, 10)
	require.Len(t, entries, 1)
	assert.Equal(t, st.Vouchers[0].ID, entries[0].ResourceID)
}

func TestSubmit_EditRoutesToUpdate(t *testing.T) {
	env, ed, _ := newEditor(t)
	ctx := context.Background()
	v := env.Server.AddVoucher(models.Voucher{Code: "OLD", DiscountPercent: 5, ExpirationDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 3})

	_, err := ed.Load(ctx, &env.Session)
	require.NoError(t, err)

	st := ed.BeginEdit(v)
	assert.True(t, st.Editing)
	assert.Equal(t, v.ID, st.EditingID)
	assert.Equal(t, Draft{Code: "OLD", DiscountPercentage: "5", ExpirationDate: "2030-01-01", Quantity: "3"}, st.Form)

	d := st.Form
	d.Quantity = "50"
	st, err = ed.Submit(ctx, &env.Session, d)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Server.CallCount(http.MethodPut, "/vouchers/"+v.ID))
	assert.Zero(t, env.Server.CallCount(http.MethodPost, "/vouchers"))
	assert.False(t, st.Editing)
	require.Len(t, st.Vouchers, 1)
	assert.Equal(t, 50, st.Vouchers[0].Quantity)
	assert.Equal(t, 1, env.Notices.Count(notice.LevelSuccess, msgUpdated))
}

func TestSubmitCreate_OverridesEditMode(t *testing.T) {
	env, ed, _ := newEditor(t)
	ctx := context.Background()
	v := env.Server.AddVoucher(models.Voucher{Code: "OLD", DiscountPercent: 5, ExpirationDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 3})
	ed.BeginEdit(v)

	st, err := ed.SubmitCreate(ctx, &env.Session, validDraft("FRESH"))
	require.NoError(t, err)
	assert.Equal(t, 1, env.Server.CallCount(http.MethodPost, "/vouchers"))
	assert.Zero(t, env.Server.CallCount(http.MethodPut, "/vouchers/"+v.ID))
	assert.False(t, st.Editing)
	assert.Len(t, st.Vouchers, 2)
	assert.Equal(t, 1, env.Notices.Count(notice.LevelSuccess, msgCreated))
}

func TestSubmitUpdate_TargetsGivenID(t *testing.T) {
	env, ed, _ := newEditor(t)
	ctx := context.Background()
	v := env.Server.AddVoucher(models.Voucher{Code: "OLD", DiscountPercent: 5, ExpirationDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 3})
	ed.BeginCreate()

	d := validDraft("OLD")
	st, err := ed.SubmitUpdate(ctx, &env.Session, v.ID, d)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Server.CallCount(http.MethodPut, "/vouchers/"+v.ID))
	assert.Zero(t, env.Server.CallCount(http.MethodPost, "/vouchers"))
	require.Len(t, st.Vouchers, 1)
	assert.Equal(t, 100, st.Vouchers[0].Quantity)
}

func TestSubmitUpdate_InvalidKeepsEditMode(t *testing.T) {
	env, ed, _ := newEditor(t)

	st, err := ed.SubmitUpdate(context.Background(), &env.Session, "v-9", Draft{Code: "X"})
	require.Error(t, err)
	assert.True(t, st.Editing)
	assert.Equal(t, "v-9", st.EditingID)
	assert.Empty(t, env.Server.Calls())
}

func TestSubmit_ServerRejectionKeepsForm(t *testing.T) {
	env, ed, _ := newEditor(t)
	ctx := context.Background()
	env.Server.AddVoucher(models.Voucher{Code: "DUP", DiscountPercent: 5, ExpirationDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 3})

	st, err := ed.Submit(ctx, &env.Session, validDraft("DUP"))
	re, ok := apperr.AsRequest(err)
	require.True(t, ok)
	assert.Equal(t, "Voucher code already exists", re.Message)
	assert.Equal(t, "DUP", st.Form.Code)
	assert.Equal(t, "Voucher code already exists", st.Error)
	assert.Equal(t, 1, env.Notices.Count(notice.LevelError, "Voucher code already exists"))
}

func TestDeactivateExpired_NoActiveExpiredAfterReload(t *testing.T) {
	env, ed, _ := newEditor(t)
	ctx := context.Background()
	now := env.Server.Now()
	env.Server.AddVoucher(models.Voucher{Code: "PAST", DiscountPercent: 10, ExpirationDate: now.AddDate(0, 0, -3), Quantity: 5})
	env.Server.AddVoucher(models.Voucher{Code: "FUTURE", DiscountPercent: 10, ExpirationDate: now.AddDate(0, 1, 0), Quantity: 5})

	st, err := ed.DeactivateExpired(ctx, &env.Session)
	require.NoError(t, err)
	require.Len(t, st.Vouchers, 2)
	for _, v := range st.Vouchers {
		if v.Expired(now) {
			assert.False(t, v.Active(now), v.Code)
			require.NotNil(t, v.IsActive, v.Code)
			assert.False(t, *v.IsActive)
		} else {
			assert.True(t, v.Active(now), v.Code)
		}
	}
	assert.Equal(t, 1, env.Notices.Count(notice.LevelSuccess, msgDeactivated))
}

func TestDelete_Reloads(t *testing.T) {
	env, ed, audit := newEditor(t)
	ctx := context.Background()
	v := env.Server.AddVoucher(models.Voucher{Code: "GONE", DiscountPercent: 10, ExpirationDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 1})

	st, err := ed.Delete(ctx, &env.Session, v.ID)
	require.NoError(t, err)
	assert.Empty(t, st.Vouchers)
	entries, _ := audit.List(ctx, models.AuditActionVoucherDelete, 10)
	assert.Len(t, entries, 1)
}

func TestOpen_RequiresBothReads(t *testing.T) {
	env, ed, _ := newEditor(t)
	ctx := context.Background()
	v := env.Server.AddVoucher(models.Voucher{Code: "STATS", DiscountPercent: 20, ExpirationDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 9})

	st, err := ed.Open(ctx, &env.Session, v.ID)
	require.NoError(t, err)
	require.NotNil(t, st.Selected)
	assert.Equal(t, "STATS", st.Selected.Detail.Code)
	assert.Contains(t, string(st.Selected.Stats), `"usedCount":3`)

	env.Server.FailNext(http.MethodGet, "/vouchers/"+v.ID+"/stats", http.StatusInternalServerError, "stats unavailable")
	st, err = ed.Open(ctx, &env.Session, v.ID)
	require.Error(t, err)
	assert.Nil(t, st.Selected)
}

func TestOpen_UnauthorizedOnce(t *testing.T) {
	env, ed, _ := newEditor(t)
	v := env.Server.AddVoucher(models.Voucher{Code: "X", DiscountPercent: 1, ExpirationDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Quantity: 1})
	env.Server.ExpireToken()

	st, err := ed.Open(context.Background(), &env.Session, v.ID)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	assert.False(t, st.Authenticated)
	assert.False(t, env.Session.Authenticated)
	assert.False(t, env.LoggedIn())
	assert.Equal(t, 1, env.Notices.Count(notice.LevelError, apperr.MsgSessionExpired))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(nil, nil)
	a := reg.Editor("s1")
	assert.Same(t, a, reg.Editor("s1"))
	reg.Drop("s1")
	assert.NotSame(t, a, reg.Editor("s1"))
}
