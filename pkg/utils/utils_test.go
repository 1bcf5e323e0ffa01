package utils

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "short", Ellipsize("short", 10))
	assert.Equal(t, "lo...", Ellipsize("long enough", 5))
	assert.Equal(t, "...", Ellipsize("long enough", 3))
}

func TestJoinHostPort(t *testing.T) {
	assert.Equal(t, "example.com:5432", JoinHostPort("example.com", 5432))
	assert.Equal(t, "/run/db.sock", JoinHostPort("/run/db.sock", 5432))
}

func TestIsUnixAddr(t *testing.T) {
	assert.True(t, IsUnixAddr("/run/db.sock"))
	assert.False(t, IsUnixAddr("localhost"))
}

func TestChanFromSlice(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		ch := ChanFromSlice[int](nil)
		require := assert.New(t)
		require.NotNil(ch)

		_, ok := <-ch
		require.False(ok, "channel should be closed")
	})

	t.Run("NonEmpty", func(t *testing.T) {
		ch := ChanFromSlice([]int{23, 42})
		assert.Equal(t, 23, <-ch)
		assert.Equal(t, 42, <-ch)

		_, ok := <-ch
		assert.False(t, ok, "channel should be closed")
	})
}
