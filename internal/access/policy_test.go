package access_test

import (
	"errors"
	"testing"
	"time"

	"authhub/internal/access"
	"authhub/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newUser(t *testing.T, method entity.AuthMethod, roles ...entity.Role) (*entity.User, *entity.AppRegistration) {
	t.Helper()
	user := entity.NewUser("alice@x.com", nil, now)
	reg := entity.AppRegistration{AppIdentifier: entity.AppTodo, Roles: roles, AuthMethod: method}
	if method.UsesPassword() {
		hash := "$2a$04$abcdefghijklmnopqrstuuH5Zg3Zz0yJcLZ7k9u1yQzYj3E5bP6a"
		reg.Password = &hash
	}
	added, err := user.AddRegistration(reg, now)
	require.NoError(t, err)
	return user, added
}

func TestCheckLogin_GateOrder(t *testing.T) {
	policy := access.DefaultPolicy()

	t.Run("account deactivated wins over everything", func(t *testing.T) {
		user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser)
		user.IsActive = false
		reg.IsActive = false
		err := policy.CheckLogin(user, reg, entity.AuthMethodGoogle, entity.RoleAdmin, now)
		assert.ErrorIs(t, err, access.ErrAccountDeactivated)
	})

	t.Run("app deactivated before auth method", func(t *testing.T) {
		user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser)
		reg.IsActive = false
		err := policy.CheckLogin(user, reg, entity.AuthMethodGoogle, "", now)
		assert.ErrorIs(t, err, access.ErrAppAccessDeactivated)
	})

	t.Run("auth method before lock", func(t *testing.T) {
		user, reg := newUser(t, entity.AuthMethodGoogle, entity.RoleUser)
		until := now.Add(time.Minute)
		reg.LockedUntil = &until
		err := policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, "", now)

		var wrong *access.WrongAuthMethodError
		require.True(t, errors.As(err, &wrong))
		assert.Equal(t, entity.AuthMethodGoogle, wrong.Required)
		assert.ErrorIs(t, err, access.ErrWrongAuthMethod)
	})

	t.Run("lock before role", func(t *testing.T) {
		user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser)
		until := now.Add(time.Minute)
		reg.LockedUntil = &until
		err := policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, entity.RoleAdmin, now)

		var locked *access.LockedError
		require.True(t, errors.As(err, &locked))
		assert.Equal(t, until, locked.Until)
		assert.ErrorIs(t, err, access.ErrAppAccessLocked)
	})

	t.Run("role not granted lists available roles", func(t *testing.T) {
		user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser, entity.RoleBusinessUser)
		err := policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, entity.RoleAdmin, now)

		var notGranted *access.RoleNotGrantedError
		require.True(t, errors.As(err, &notGranted))
		assert.Equal(t, []entity.Role{entity.RoleUser, entity.RoleBusinessUser}, notGranted.Available)
		assert.ErrorIs(t, err, access.ErrRoleNotGranted)
	})

	t.Run("passes", func(t *testing.T) {
		user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser, entity.RoleAdmin)
		assert.NoError(t, policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, entity.RoleAdmin, now))
		assert.NoError(t, policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, "", now))
	})
}

func TestLockout_TransitionsAndLazyExpiry(t *testing.T) {
	policy := access.Policy{MaxAttempts: 3, LockoutDuration: 10 * time.Minute}
	user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser)

	assert.False(t, policy.RecordFailure(reg, now))
	assert.False(t, policy.RecordFailure(reg, now))
	assert.True(t, policy.RecordFailure(reg, now))
	require.NotNil(t, reg.LockedUntil)
	assert.Equal(t, now.Add(10*time.Minute), *reg.LockedUntil)

	state := policy.State(user, reg, now.Add(time.Minute))
	assert.Equal(t, access.StatusLocked, state.Status)
	assert.ErrorIs(t, policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, "", now.Add(time.Minute)), access.ErrAppAccessLocked)

	later := now.Add(10 * time.Minute)
	assert.Equal(t, access.StatusActive, policy.State(user, reg, later).Status)
	require.NoError(t, policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, "", later))
	assert.Nil(t, reg.LockedUntil)
	assert.Zero(t, reg.LoginAttempts)
}

func TestRecordSuccess_ResetsCounters(t *testing.T) {
	policy := access.DefaultPolicy()
	user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser)
	policy.RecordFailure(reg, now)
	policy.RecordFailure(reg, now)

	policy.RecordSuccess(user, reg, now)
	assert.Zero(t, reg.LoginAttempts)
	require.NotNil(t, reg.LastLoginAt)
	require.NotNil(t, user.LastLoginAt)
	assert.Equal(t, now, *reg.LastLoginAt)
}

func TestState_GlobalInactiveShortCircuits(t *testing.T) {
	policy := access.DefaultPolicy()
	user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser)
	user.IsActive = false

	assert.Equal(t, access.StatusDeactivated, policy.State(user, reg, now).Status)
	assert.True(t, reg.IsActive, "per-app flag is left untouched")
}

func TestLegacyGlobalLock(t *testing.T) {
	policy := access.DefaultPolicy()
	user, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleUser)
	until := now.Add(time.Hour)
	user.GlobalLockedUntil = &until

	err := policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, "", now)
	assert.ErrorIs(t, err, access.ErrAccountLocked)
	assert.NoError(t, policy.CheckLogin(user, reg, entity.AuthMethodEmailPassword, "", until))
}

func TestChooseRole(t *testing.T) {
	_, reg := newUser(t, entity.AuthMethodEmailPassword, entity.RoleBusinessUser, entity.RoleAdmin)
	assert.Equal(t, entity.RoleBusinessUser, access.ChooseRole(reg, ""))
	assert.Equal(t, entity.RoleAdmin, access.ChooseRole(reg, entity.RoleAdmin))
}
