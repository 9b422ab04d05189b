package account

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/upstream/upstreamtest"
)

func TestChangePassword(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	svc := NewService(env.Client, env.Notices, nil)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, &env.Session, PasswordChange{CurrentPassword: "secret-1", NewPassword: "n"})
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, MsgFillAllFields, ve.Reason)

	err = svc.ChangePassword(ctx, &env.Session, PasswordChange{CurrentPassword: "secret-1", NewPassword: "a", ConfirmPassword: "b"})
	ve, ok = apperr.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, MsgPasswordMismatch, ve.Reason)
	assert.Empty(t, env.Server.Calls())

	err = svc.ChangePassword(ctx, &env.Session, PasswordChange{CurrentPassword: "wrong", NewPassword: "n", ConfirmPassword: "n"})
	re, ok := apperr.AsRequest(err)
	require.True(t, ok)
	assert.Equal(t, "Current password is incorrect", re.Message)
	assert.Equal(t, "secret-1", env.Server.Password())
	assert.Equal(t, 1, env.Notices.Count(notice.LevelError, "Current password is incorrect"))

	require.NoError(t, svc.ChangePassword(ctx, &env.Session, PasswordChange{CurrentPassword: "secret-1", NewPassword: "n3w", ConfirmPassword: "n3w"}))
	assert.Equal(t, "n3w", env.Server.Password())
	assert.Equal(t, 1, env.Notices.Count(notice.LevelSuccess, MsgPasswordChanged))
	assert.Equal(t, 2, env.Server.CallCount(http.MethodPut, "/users/change-password"))
}
