package backoff

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestNewExponentialWithJitter(t *testing.T) {
	min := 100 * time.Millisecond
	max := 10 * time.Second
	b := NewExponentialWithJitter(min, max)

	for attempt := uint64(0); attempt < 64; attempt++ {
		d := b(attempt)
		// Jitter may halve the raw duration, but never exceeds max.
		assert.GreaterOrEqual(t, d, min/2)
		assert.Less(t, d, max)
	}
}

func TestNewExponentialWithJitterDefaults(t *testing.T) {
	b := NewExponentialWithJitter(0, 0)

	for attempt := uint64(0); attempt < 64; attempt++ {
		d := b(attempt)
		assert.Greater(t, d, time.Duration(0))
	}
}
