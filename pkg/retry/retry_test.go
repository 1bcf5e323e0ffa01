package retry

import (
	"context"
	"database/sql/driver"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestWithBackoff(t *testing.T) {
	noBackoff := func(uint64) time.Duration { return 0 }

	t.Run("FirstTry", func(t *testing.T) {
		var attempts int
		err := WithBackoff(
			context.Background(),
			func(context.Context) error {
				attempts++
				return nil
			},
			Retryable, noBackoff, Settings{},
		)
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("RetriesUntilSuccess", func(t *testing.T) {
		var attempts int
		err := WithBackoff(
			context.Background(),
			func(context.Context) error {
				attempts++
				if attempts < 3 {
					return driver.ErrBadConn
				}
				return nil
			},
			Retryable, noBackoff, Settings{},
		)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("NotRetryable", func(t *testing.T) {
		expected := errors.New("permanent")
		var attempts int
		err := WithBackoff(
			context.Background(),
			func(context.Context) error {
				attempts++
				return expected
			},
			Retryable, noBackoff, Settings{},
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, expected)
		assert.Equal(t, 1, attempts)
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := WithBackoff(
			ctx,
			func(context.Context) error { return driver.ErrBadConn },
			Retryable, noBackoff, Settings{},
		)
		require.Error(t, err)
	})
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(driver.ErrBadConn))
	assert.True(t, Retryable(errors.Wrap(driver.ErrBadConn, "query failed")))
	assert.False(t, Retryable(errors.New("syntax error")))
	assert.False(t, Retryable(nil))
}
