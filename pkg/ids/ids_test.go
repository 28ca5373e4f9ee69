package ids_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nymea-go/thingd/pkg/ids"
)

func TestNewIDsAreDistinctAndNonZero(t *testing.T) {
	thing := ids.NewThingID()
	rule := ids.NewRuleID()

	assert.False(t, thing.IsZero())
	assert.False(t, rule.IsZero())
	assert.NotEqual(t, thing.UUID, uuid.Nil)
}

func TestParseThingIDRoundTrip(t *testing.T) {
	want := ids.NewThingID()

	got, err := ids.ParseThingID(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseThingIDRejectsGarbage(t *testing.T) {
	_, err := ids.ParseThingID("not-a-uuid")
	assert.Error(t, err)
}

func TestValueAndScanRoundTrip(t *testing.T) {
	want := ids.NewRuleID()

	v, err := want.Value()
	require.NoError(t, err)

	var got ids.RuleID
	require.NoError(t, got.Scan(v))
	assert.Equal(t, want, got)
}

func TestZeroValueIsZero(t *testing.T) {
	var id ids.ThingID
	assert.True(t, id.IsZero())
}
