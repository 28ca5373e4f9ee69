package values_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nymea-go/thingd/pkg/values"
)

func TestEqualRequiresSameKind(t *testing.T) {
	assert.False(t, values.Int(1).Equal(values.Uint(1)))
	assert.True(t, values.Int(1).Equal(values.Int(1)))
}

func TestAsAccessorsReportKindMismatch(t *testing.T) {
	v := values.String("hello")

	_, ok := v.AsInt()
	assert.False(t, ok)

	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestListAndMapDeepEqual(t *testing.T) {
	a := values.List([]values.Value{values.Int(1), values.String("x")})
	b := values.List([]values.Value{values.Int(1), values.String("x")})
	c := values.List([]values.Value{values.Int(1), values.String("y")})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	m1 := values.Map(map[string]values.Value{"k": values.Bool(true)})
	m2 := values.Map(map[string]values.Value{"k": values.Bool(true)})
	assert.True(t, m1.Equal(m2))
}

func TestJSONRoundTripPreservesKind(t *testing.T) {
	cases := []values.Value{
		values.Bool(true),
		values.Int(-7),
		values.Uint(42),
		values.Double(3.5),
		values.String("on"),
		values.StringList([]string{"a", "b"}),
		values.Uuid("b7e6b1d0-0000-0000-0000-000000000000"),
		values.ColorVal(values.Color{R: 10, G: 20, B: 30, A: 255}),
		values.TimeVal(values.Clock{Hour: 22, Minute: 30}),
		values.Map(map[string]values.Value{"brightness": values.Int(80)}),
		values.List([]values.Value{values.Int(1), values.Int(2)}),
	}

	for _, want := range cases {
		data, err := json.Marshal(want)
		require.NoError(t, err)

		var got values.Value
		require.NoError(t, json.Unmarshal(data, &got))
		assert.True(t, want.Equal(got), "kind %s did not round-trip", want.Kind())
	}
}

func TestZeroValueIsInvalidKind(t *testing.T) {
	var v values.Value
	assert.Equal(t, values.KindInvalid, v.Kind())
}
