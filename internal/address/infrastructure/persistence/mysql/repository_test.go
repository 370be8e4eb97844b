package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/ecommerce/internal/address/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
)

func TestGetActiveForUser(t *testing.T) {
	d, err := db.Init(db.Config{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(d.DB))
	t.Cleanup(func() { _ = d.Close() })
	repo := NewAddressRepository(d.DB)
	ctx := context.Background()

	a := &domain.Address{UserID: 1, Recipient: "Ann", Line1: "1 Main St", Active: true}
	require.NoError(t, repo.Save(ctx, a))

	got, err := repo.GetActiveForUser(ctx, a.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1 Main St", got.Line1)

	// 其他用户不可见
	got, err = repo.GetActiveForUser(ctx, a.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := repo.Deactivate(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = repo.GetActiveForUser(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err = repo.Deactivate(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
