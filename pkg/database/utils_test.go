package database

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

type namedTable struct{}

func (namedTable) TableName() string {
	return "xyz"
}

type unnamedTable struct{}

func TestTableName(t *testing.T) {
	assert.Equal(t, "xyz", TableName(namedTable{}))
	assert.Equal(t, "xyz", TableName(&namedTable{}))
	assert.Equal(t, "unnamed_table", TableName(&unnamedTable{}))
}

type testIder struct {
	id string
}

func (i testIder) ID() ID {
	return StringID(i.id)
}

func TestSplitOnDupId(t *testing.T) {
	policy := SplitOnDupId[testIder]()

	assert.False(t, policy(testIder{"a"}))
	assert.False(t, policy(testIder{"b"}))
	assert.True(t, policy(testIder{"a"}), "repeated id demands a split")
	assert.False(t, policy(testIder{"b"}), "the split forgets previously seen ids")
	assert.True(t, policy(testIder{"b"}))
}
