package com

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestCounter(t *testing.T) {
	var c Counter

	c.Inc()
	c.Add(2)
	assert.Equal(t, uint64(3), c.Val())
	assert.Equal(t, uint64(3), c.Total())

	assert.Equal(t, uint64(3), c.Reset())
	assert.Equal(t, uint64(0), c.Val())
	assert.Equal(t, uint64(3), c.Total(), "Reset() must not clear the total")

	c.Inc()
	assert.Equal(t, uint64(4), c.Total())
}
