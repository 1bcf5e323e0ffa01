package types

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestBinary_MarshalJSON(t *testing.T) {
	subtests := []struct {
		name   string
		input  Binary
		output string
	}{
		{"nil", nil, `null`},
		{"empty", make(Binary, 0, 1), `null`},
		{"space", Binary(" "), `"20"`},
		{"binary", Binary{0xa1, 0xb2}, `"a1b2"`},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			actual, err := st.input.MarshalJSON()

			require.NoError(t, err)
			require.Equal(t, st.output, string(actual))
		})
	}
}

func TestBinary_UnmarshalJSON(t *testing.T) {
	subtests := []struct {
		name   string
		input  string
		output Binary
		error  bool
	}{
		{"null", `null`, nil, false},
		{"bool", `false`, nil, true},
		{"empty", `""`, Binary{}, false},
		{"invalid", `"not hex"`, nil, true},
		{"binary", `"a1b2"`, Binary{0xa1, 0xb2}, false},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			var actual Binary
			err := actual.UnmarshalJSON([]byte(st.input))

			if st.error {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, st.output, actual)
			}
		})
	}
}

func TestBinary_Scan(t *testing.T) {
	var b Binary
	require.NoError(t, b.Scan(nil))
	assert.False(t, b.Valid())

	require.NoError(t, b.Scan([]byte{0x01, 0x02}))
	assert.Equal(t, Binary{0x01, 0x02}, b)

	v, err := b.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, v)

	var null Binary
	v, err = null.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
