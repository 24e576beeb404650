package account

import (
	"context"
	"regexp"
	"testing"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/database/dbtest"
	"funnel-crm/internal/funnel"
	"funnel-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIKey(t *testing.T) {
	key := NewAPIKey()
	assert.Regexp(t, regexp.MustCompile(`^key_[0-9a-f]{26}$`), key)
	assert.NotEqual(t, key, NewAPIKey())
}

func TestRegister(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "  Owner@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", acc.Email)
	assert.Equal(t, models.RoleUser, acc.Role)
	assert.NotEqual(t, "secret1", acc.PasswordHash)
	assert.Contains(t, acc.APIKey, "key_")

	funnels, err := funnel.NewEngine(db).ListFunnels(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, funnels, 1, "registration provisions exactly one default funnel")
	assert.Equal(t, funnel.DefaultFunnelName, funnels[0].Name)
	assert.Len(t, funnels[0].Stages, 4)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, "owner@example.com", "another1")
		assert.True(t, apperror.Is(err, apperror.KindConflict))

		var count int64
		require.NoError(t, db.Model(&models.Funnel{}).Count(&count).Error)
		assert.EqualValues(t, 1, count, "failed registration leaves no funnel behind")
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Register(ctx, "", "secret1")
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Register(ctx, "short@example.com", "abc")
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})
}

func TestAuthenticate(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "owner@example.com", "secret1")
	require.NoError(t, err)

	acc, err := svc.Authenticate(ctx, "OWNER@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, acc.ID)

	_, err = svc.Authenticate(ctx, "owner@example.com", "wrong-password")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestByAPIKey(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "owner@example.com", "secret1")
	require.NoError(t, err)

	for _, key := range []string{registered.APIKey, "Bearer " + registered.APIKey, " " + registered.APIKey + " "} {
		acc, err := svc.ByAPIKey(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, registered.ID, acc.ID)
	}

	for _, key := range []string{"", "Bearer ", "key_unknown"} {
		_, err := svc.ByAPIKey(ctx, key)
		assert.True(t, apperror.Is(err, apperror.KindUnauthorized), key)
	}
}

func TestUpdatePassword(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "owner@example.com", "secret1")
	require.NoError(t, err)

	err = svc.UpdatePassword(ctx, acc.ID, "123")
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	require.NoError(t, svc.UpdatePassword(ctx, acc.ID, "brand-new"))
	_, err = svc.Authenticate(ctx, "owner@example.com", "secret1")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	_, err = svc.Authenticate(ctx, "owner@example.com", "brand-new")
	assert.NoError(t, err)

	err = svc.UpdatePassword(ctx, 9999, "brand-new")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestListAndPromote(t *testing.T) {
	db := dbtest.New(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	b, err := svc.Register(ctx, "b@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Contact{AccountID: b.ID, Phone: "+1"}).Error)

	require.NoError(t, svc.Promote(ctx, "a@example.com"))
	assert.True(t, apperror.Is(svc.Promote(ctx, "ghost@example.com"), apperror.KindNotFound))

	accounts, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	byEmail := map[string]AccountStats{}
	for _, a := range accounts {
		byEmail[a.Email] = a
	}
	assert.True(t, byEmail["a@example.com"].IsAdmin())
	assert.EqualValues(t, 1, byEmail["b@example.com"].ContactCount)
	assert.EqualValues(t, 1, byEmail["b@example.com"].FunnelCount)
}
