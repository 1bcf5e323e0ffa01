package sessionstore

import (
	"context"
	"github.com/sessiondb/sessiondb/pkg/types"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestSetDC(t *testing.T) {
	ctx := context.Background()
	db := openTestDb(t)
	store := openTestStore(t, db, "alpha")

	require.NoError(t, store.SetDC(ctx, 2, "10.0.0.1", 443))

	record, err := store.CurrentDC(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, 2, record.DcId)
	require.Equal(t, "10.0.0.1", record.ServerAddress)
	require.Equal(t, 443, record.Port)

	t.Run("SingleCurrent", func(t *testing.T) {
		require.NoError(t, store.SetDC(ctx, 4, "10.0.0.4", 443))

		record, err := store.CurrentDC(ctx)
		require.NoError(t, err)
		require.NotNil(t, record)
		require.Equal(t, 4, record.DcId)

		var current int
		err = db.QueryRowxContext(
			ctx, db.Rebind(`SELECT COUNT(*) FROM "sessions" WHERE "session_name" = ? AND "is_current" = 1`), "alpha",
		).Scan(&current)
		require.NoError(t, err)
		require.Equal(t, 1, current)
	})

	t.Run("KeepsAuthKeyOnSwitch", func(t *testing.T) {
		key := types.Binary("authkey-dc2")
		require.NoError(t, store.SetAuthKey(ctx, 2, key))

		require.NoError(t, store.SetDC(ctx, 4, "10.0.0.4", 443))
		require.NoError(t, store.SetDC(ctx, 2, "10.0.0.2", 443))

		got, err := store.AuthKey(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, key, got)

		// The switch back also updated the address.
		record, err := store.CurrentDC(ctx)
		require.NoError(t, err)
		require.Equal(t, "10.0.0.2", record.ServerAddress)
	})

	t.Run("Idempotent", func(t *testing.T) {
		require.NoError(t, store.SetDC(ctx, 2, "10.0.0.2", 443))
		require.NoError(t, store.SetDC(ctx, 2, "10.0.0.2", 443))

		record, err := store.CurrentDC(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, record.DcId)
	})
}

func TestAuthKey(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, openTestDb(t), "alpha")

	t.Run("UnknownDC", func(t *testing.T) {
		key, err := store.AuthKey(ctx, 5)
		require.NoError(t, err)
		require.Nil(t, key)
	})

	t.Run("CreatesRecord", func(t *testing.T) {
		// Exporting an authorization to a data-center the session
		// never connected to stores the key without a current flag.
		key := types.Binary("exported-key")
		require.NoError(t, store.SetAuthKey(ctx, 5, key))

		got, err := store.AuthKey(ctx, 5)
		require.NoError(t, err)
		require.Equal(t, key, got)

		record, err := store.CurrentDC(ctx)
		require.NoError(t, err)
		require.Nil(t, record)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.SetAuthKey(ctx, 5, types.Binary("first")))
		require.NoError(t, store.SetAuthKey(ctx, 5, types.Binary("second")))

		got, err := store.AuthKey(ctx, 5)
		require.NoError(t, err)
		require.Equal(t, types.Binary("second"), got)
	})

	t.Run("Erase", func(t *testing.T) {
		require.NoError(t, store.SetAuthKey(ctx, 5, nil))

		got, err := store.AuthKey(ctx, 5)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestTakeoutID(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, openTestDb(t), "alpha")

	t.Run("WithoutCurrentDC", func(t *testing.T) {
		require.Error(t, store.SetTakeoutID(ctx, types.MakeInt(7)))
	})

	require.NoError(t, store.SetDC(ctx, 2, "10.0.0.1", 443))

	t.Run("Unset", func(t *testing.T) {
		id, err := store.TakeoutID(ctx)
		require.NoError(t, err)
		require.False(t, id.Valid)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		require.NoError(t, store.SetTakeoutID(ctx, types.MakeInt(12345)))

		id, err := store.TakeoutID(ctx)
		require.NoError(t, err)
		require.True(t, id.Valid)
		require.Equal(t, int64(12345), id.Int64)
	})

	t.Run("Detach", func(t *testing.T) {
		require.NoError(t, store.SetTakeoutID(ctx, types.Int{}))

		id, err := store.TakeoutID(ctx)
		require.NoError(t, err)
		require.False(t, id.Valid)
	})

	t.Run("Idempotent", func(t *testing.T) {
		// A write that changes nothing still matches the current record
		// and must not be mistaken for a missing one.
		require.NoError(t, store.SetTakeoutID(ctx, types.MakeInt(7)))
		require.NoError(t, store.SetTakeoutID(ctx, types.MakeInt(7)))

		require.NoError(t, store.SetTakeoutID(ctx, types.Int{}))
		require.NoError(t, store.SetTakeoutID(ctx, types.Int{}))

		id, err := store.TakeoutID(ctx)
		require.NoError(t, err)
		require.False(t, id.Valid)
	})
}
