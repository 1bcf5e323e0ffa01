package database

// Entity is implemented by each type that works with the database package.
type Entity interface {
	IDer
}

// ID is a unique identifier of an entity.
type ID interface {
	// String returns the string representation form of the ID.
	// The String method is used to use the ID in functions
	// where it needs to be compared or hashed.
	String() string
}

// IDer is implemented by every entity that uniquely identifies itself.
type IDer interface {
	ID() ID // ID returns the ID.
}

// StringID implements ID for plain string identifiers.
type StringID string

// String implements the ID interface.
func (s StringID) String() string {
	return string(s)
}

// EntityFactoryFunc knows how to create an Entity.
type EntityFactoryFunc func() Entity

// Upserter implements the Upsert method,
// which returns a part of the object for ON DUPLICATE KEY UPDATE.
type Upserter interface {
	Upsert() any // Upsert partitions the object.
}

// TableNamer implements the TableName method,
// which returns the table of the object.
type TableNamer interface {
	TableName() string // TableName tells the table.
}

// Scoper implements the Scope method,
// which returns a struct specifying the WHERE conditions that
// entities must satisfy in order to be SELECTed.
type Scoper interface {
	Scope() any
}

// Conflicter implements the Conflict method, which returns the columns of the
// primary or unique key an upsert statement's conflict target is built from.
// Used for the PostgreSQL and SQLite ON CONFLICT clauses.
type Conflicter interface {
	Conflict() []string
}

// Assert interface compliance.
var (
	_ ID = StringID("")
)
