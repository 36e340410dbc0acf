package mode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"policy", Policy},
		{"POLICY", Policy},
		{"schema", Schema},
		{"etl", Schema},
		{"documentation", Documentation},
		{"docs", Documentation},
		{"auto", Auto},
		{"", Auto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("weather")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMode))
}

func TestSet_Check(t *testing.T) {
	s := Set{Policy: true, Schema: true}

	assert.NoError(t, s.Check(Policy))
	assert.NoError(t, s.Check(Auto))

	err := s.Check(Documentation)
	assert.ErrorIs(t, err, ErrModeDisabled)
	assert.ErrorIs(t, err, ErrInvalidMode, "disabled modes are rejected like unknown ones")

	assert.ErrorIs(t, Set{}.Check(Auto), ErrModeDisabled)
}

func TestUnmarshalText(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("etl")))
	assert.Equal(t, Schema, m)
	assert.Equal(t, "schema", m.String())
	assert.Error(t, m.UnmarshalText([]byte("nope")))
}
