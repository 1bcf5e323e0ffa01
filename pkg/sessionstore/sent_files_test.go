package sessionstore

import (
	"context"
	"crypto/md5"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestSentFiles(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, openTestDb(t), "alpha")

	digest := md5.Sum([]byte("file content"))

	t.Run("Miss", func(t *testing.T) {
		file, err := store.File(ctx, digest[:], 12, FileDocument)
		require.NoError(t, err)
		require.Nil(t, file)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		require.NoError(t, store.CacheFile(ctx, digest[:], 12, FileDocument, 4711, -9000))

		file, err := store.File(ctx, digest[:], 12, FileDocument)
		require.NoError(t, err)
		require.NotNil(t, file)
		require.Equal(t, int64(4711), file.Id)
		require.Equal(t, int64(-9000), file.Hash)
	})

	t.Run("TypeIsPartOfTheKey", func(t *testing.T) {
		// The same content uploaded as photo is a different cache entry.
		file, err := store.File(ctx, digest[:], 12, FilePhoto)
		require.NoError(t, err)
		require.Nil(t, file)

		require.NoError(t, store.CacheFile(ctx, digest[:], 12, FilePhoto, 4712, -9001))

		file, err = store.File(ctx, digest[:], 12, FilePhoto)
		require.NoError(t, err)
		require.Equal(t, int64(4712), file.Id)

		file, err = store.File(ctx, digest[:], 12, FileDocument)
		require.NoError(t, err)
		require.Equal(t, int64(4711), file.Id)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.CacheFile(ctx, digest[:], 12, FileDocument, 5000, 1))

		file, err := store.File(ctx, digest[:], 12, FileDocument)
		require.NoError(t, err)
		require.Equal(t, int64(5000), file.Id)
		require.Equal(t, int64(1), file.Hash)
	})

	t.Run("EmptyDigest", func(t *testing.T) {
		require.Error(t, store.CacheFile(ctx, nil, 12, FileDocument, 1, 2))
	})
}
