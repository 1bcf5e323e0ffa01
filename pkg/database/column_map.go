package database

import (
	"database/sql/driver"
	"github.com/jmoiron/sqlx/reflectx"
	"reflect"
	"sync"
)

// ColumnMap caches the column names the statement builders derive from
// row struct types.
type ColumnMap interface {
	// Columns returns the column names mapped from the struct's exported
	// fields. The returned slice is shared across calls and must be
	// treated as read-only. Fields map to snake case names unless a db
	// tag says otherwise, a "-" tag excludes the field.
	Columns(any) []string
}

// NewColumnMap returns a ColumnMap on top of the given mapper,
// which must be the one the sqlx handle scans with.
func NewColumnMap(mapper *reflectx.Mapper) ColumnMap {
	return &columnMap{
		cache:  make(map[reflect.Type][]string),
		mapper: mapper,
	}
}

type columnMap struct {
	mu     sync.Mutex
	cache  map[reflect.Type][]string
	mapper *reflectx.Mapper
}

func (m *columnMap) Columns(subject any) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := subject.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(subject)
	}

	columns, ok := m.cache[t]
	if !ok {
		columns = m.columnsOf(t)
		m.cache[t] = columns
	}

	return columns
}

// columnsOf flattens the type's field tree into column names. A struct
// field whose type scans as a single database value, like the nullable
// wrappers, must contribute one column, so the mapper paths below it
// are skipped.
func (m *columnMap) columnsOf(t reflect.Type) []string {
	fields := m.mapper.TypeMap(t).Names
	columns := make([]string, 0, len(fields))

FieldLoop:
	for _, f := range fields {
		for parent := f.Parent; parent != nil && parent.Zero.IsValid(); parent = parent.Parent {
			if _, ok := reflect.New(parent.Field.Type).Interface().(driver.Valuer); ok {
				continue FieldLoop
			}
			if _, ok := reflect.Zero(parent.Field.Type).Interface().(driver.Valuer); ok {
				continue FieldLoop
			}
		}

		columns = append(columns, f.Path)
	}

	return columns[:len(columns):len(columns)]
}
