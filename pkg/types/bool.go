package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"github.com/pkg/errors"
	"strconv"
)

var (
	Yes = Bool{
		Bool:  true,
		Valid: true,
	}

	No = Bool{
		Bool:  false,
		Valid: true,
	}
)

// Bool represents a bool stored as SMALLINT 0/1, which can be NULL.
type Bool struct {
	Bool  bool
	Valid bool // Valid is true if Bool is not NULL
}

// MarshalJSON implements the json.Marshaler interface.
func (b Bool) MarshalJSON() ([]byte, error) {
	if !b.Valid {
		return []byte("null"), nil
	}

	return json.Marshal(b.Bool)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Bool) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &b.Bool); err != nil {
		return err
	}

	b.Valid = true

	return nil
}

// Scan implements the sql.Scanner interface.
// Supports SQL NULL.
func (b *Bool) Scan(src interface{}) error {
	if src == nil {
		b.Bool, b.Valid = false, false
		return nil
	}

	var i int64
	switch v := src.(type) {
	case int64:
		i = v
	case bool:
		if v {
			i = 1
		}
	case []byte:
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return CantParseInt64(err, string(v))
		}

		i = parsed
	default:
		return errors.Errorf("unable to scan type %T into Bool", src)
	}

	b.Bool = i != 0
	b.Valid = true

	return nil
}

// Value implements the driver.Valuer interface.
// Supports SQL NULL.
func (b Bool) Value() (driver.Value, error) {
	if !b.Valid {
		return nil, nil
	}

	if b.Bool {
		return int64(1), nil
	}

	return int64(0), nil
}

// Assert interface compliance.
var (
	_ json.Marshaler   = (*Bool)(nil)
	_ json.Unmarshaler = (*Bool)(nil)
	_ sql.Scanner      = (*Bool)(nil)
	_ driver.Valuer    = (*Bool)(nil)
)
