package sessionstore

import (
	"context"
	"github.com/sessiondb/sessiondb/pkg/types"
	"github.com/stretchr/testify/require"
	"runtime"
	"testing"
	"time"
)

func TestUpsertEntities(t *testing.T) {
	ctx := context.Background()
	db := openTestDb(t)
	store := openTestStore(t, db, "alpha")

	t.Run("LastWriteWins", func(t *testing.T) {
		require.NoError(t, store.UpsertEntitySlice(ctx, []*Entity{
			{Id: 10, Hash: 1, Name: types.MakeString("Old Name")},
		}))
		require.NoError(t, store.UpsertEntitySlice(ctx, []*Entity{
			{Id: 10, Hash: 2, Name: types.MakeString("New Name")},
		}))

		entity, err := store.EntityByID(ctx, 10)
		require.NoError(t, err)
		require.NotNil(t, entity)
		require.Equal(t, int64(2), entity.Hash)
		require.Equal(t, "New Name", entity.Name.String)
	})

	t.Run("SameBatchDuplicate", func(t *testing.T) {
		// Duplicates within one batch are applied in order.
		require.NoError(t, store.UpsertEntitySlice(ctx, []*Entity{
			{Id: 11, Hash: 1},
			{Id: 11, Hash: 2},
		}))

		entity, err := store.EntityByID(ctx, 11)
		require.NoError(t, err)
		require.NotNil(t, entity)
		require.Equal(t, int64(2), entity.Hash)
	})

	t.Run("DateDefaulted", func(t *testing.T) {
		require.NoError(t, store.UpsertEntitySlice(ctx, []*Entity{{Id: 12, Hash: 1}}))

		entity, err := store.EntityByID(ctx, 12)
		require.NoError(t, err)
		require.True(t, entity.Date.Valid)
		require.Greater(t, entity.Date.Int64, int64(0))
	})

	t.Run("ForeignSessionNameOverridden", func(t *testing.T) {
		require.NoError(t, store.UpsertEntitySlice(ctx, []*Entity{
			{SessionName: "mallory", Id: 13, Hash: 1},
		}))

		entity, err := store.EntityByID(ctx, 13)
		require.NoError(t, err)
		require.NotNil(t, entity)
		require.Equal(t, "alpha", entity.SessionName)
	})
}

func TestUsernameMovesToNewestEntity(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, openTestDb(t), "alpha")

	require.NoError(t, store.UpsertEntitySlice(ctx, []*Entity{
		{Id: 1, Hash: 1, Username: types.MakeString("shared"), Date: types.MakeInt(100)},
	}))
	require.NoError(t, store.UpsertEntitySlice(ctx, []*Entity{
		{Id: 2, Hash: 2, Username: types.MakeString("shared"), Date: types.MakeInt(200)},
	}))

	// The new holder owns the username, the old one lost it.
	entity, err := store.EntityByUsername(ctx, "shared")
	require.NoError(t, err)
	require.NotNil(t, entity)
	require.Equal(t, int64(2), entity.Id)

	old, err := store.EntityByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, old)
	require.False(t, old.Username.Valid)
}

func TestEntityLookups(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, openTestDb(t), "alpha")

	require.NoError(t, store.UpsertEntitySlice(ctx, []*Entity{
		{
			Id:       100,
			Hash:     1,
			Username: types.MakeString("alice"),
			Phone:    types.MakeString("4912345"),
			Name:     types.MakeString("Alice A."),
		},
		{Id: -200, Hash: 2, Name: types.MakeString("Some Chat")},
		{Id: -1000000000300, Hash: 3, Name: types.MakeString("Some Channel")},
	}))

	t.Run("ByPhone", func(t *testing.T) {
		entity, err := store.EntityByPhone(ctx, "4912345")
		require.NoError(t, err)
		require.NotNil(t, entity)
		require.Equal(t, int64(100), entity.Id)
	})

	t.Run("ByName", func(t *testing.T) {
		entity, err := store.EntityByName(ctx, "Some Chat")
		require.NoError(t, err)
		require.NotNil(t, entity)
		require.Equal(t, int64(-200), entity.Id)
	})

	t.Run("Miss", func(t *testing.T) {
		entity, err := store.EntityByID(ctx, 999)
		require.NoError(t, err)
		require.Nil(t, entity)
	})

	lookups := []struct {
		name string
		key  string
		id   int64
	}{
		{"AtUsername", "@Alice", 100},
		{"PlainUsername", "alice", 100},
		{"Phone", "+4912345", 100},
		{"ExactId", "100", 100},
		{"MarkedChatId", "200", -200},
		{"MarkedChannelId", "300", -1000000000300},
		{"Name", "Some Channel", -1000000000300},
	}
	for _, l := range lookups {
		t.Run("Lookup"+l.name, func(t *testing.T) {
			entity, err := store.LookupEntity(ctx, l.key)
			require.NoError(t, err)
			require.NotNil(t, entity, "key %q should resolve", l.key)
			require.Equal(t, l.id, entity.Id)
		})
	}

	t.Run("LookupMiss", func(t *testing.T) {
		entity, err := store.LookupEntity(ctx, "nobody-here")
		require.NoError(t, err)
		require.Nil(t, entity)
	})

	t.Run("LookupEmpty", func(t *testing.T) {
		entity, err := store.LookupEntity(ctx, "  ")
		require.NoError(t, err)
		require.Nil(t, entity)
	})
}

func TestEntitySessionIsolation(t *testing.T) {
	ctx := context.Background()
	db := openTestDb(t)
	alpha := openTestStore(t, db, "alpha")
	beta := openTestStore(t, db, "beta")

	require.NoError(t, alpha.UpsertEntitySlice(ctx, []*Entity{
		{Id: 1, Hash: 1, Username: types.MakeString("alice")},
	}))
	require.NoError(t, beta.UpsertEntitySlice(ctx, []*Entity{
		{Id: 1, Hash: 9, Username: types.MakeString("bob")},
	}))

	entity, err := alpha.EntityByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), entity.Hash)

	entity, err = beta.EntityByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(9), entity.Hash)

	// alpha doesn't know beta's username.
	entity, err = alpha.EntityByUsername(ctx, "bob")
	require.NoError(t, err)
	require.Nil(t, entity)
}

func TestUpsertEntitiesFailedWrite(t *testing.T) {
	ctx := context.Background()
	db := openTestDb(t)
	store := openTestStore(t, db, "alpha")

	_, err := db.ExecContext(ctx, `DROP TABLE "entities"`)
	require.NoError(t, err)

	routines := runtime.NumGoroutine()

	err = store.UpsertEntitySlice(ctx, []*Entity{{Id: 1, Hash: 1}, {Id: 2, Hash: 2}})
	require.Error(t, err)

	// The write failed while ctx is still live,
	// the forwarding goroutines still wind down.
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= routines
	}, time.Second, 10*time.Millisecond)
}
