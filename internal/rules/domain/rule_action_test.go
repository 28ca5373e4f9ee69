package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

func brightnessParamType() catalogue.ParamType {
	min := values.Int(0)
	max := values.Int(100)
	return catalogue.ParamType{ID: ids.NewParamTypeID(), Name: "brightness", ValueKind: values.KindInt, MinValue: &min, MaxValue: &max}
}

func TestRuleActionParamResolveLiteral(t *testing.T) {
	pt := brightnessParamType()
	v := values.Int(42)
	param := RuleActionParam{ParamTypeID: pt.ID, Value: &v}

	resolved, err := param.Resolve(newFakeResolver(), pt)
	require.NoError(t, err)
	assert.True(t, resolved.Equal(values.Int(42)))
}

func TestRuleActionParamResolveStateReference(t *testing.T) {
	pt := brightnessParamType()
	resolver := newFakeResolver()
	sourceThing := ids.NewThingID()
	sourceState := ids.NewStateTypeID()
	resolver.setState(sourceThing, sourceState, values.Int(75))

	param := RuleActionParam{ParamTypeID: pt.ID, StateRef: &StateReference{ThingID: sourceThing, StateTypeID: sourceState}}
	resolved, err := param.Resolve(resolver, pt)
	require.NoError(t, err)
	assert.True(t, resolved.Equal(values.Int(75)))
}

func TestRuleActionParamResolveMissingStateReference(t *testing.T) {
	pt := brightnessParamType()
	param := RuleActionParam{ParamTypeID: pt.ID, StateRef: &StateReference{ThingID: ids.NewThingID(), StateTypeID: ids.NewStateTypeID()}}

	_, err := param.Resolve(newFakeResolver(), pt)
	assert.ErrorIs(t, err, corerr.ErrNotFound)
}

func TestRuleActionParamResolveOutOfRangeIsParamTypeMismatch(t *testing.T) {
	pt := brightnessParamType()
	v := values.Int(500)
	param := RuleActionParam{ParamTypeID: pt.ID, Value: &v}

	_, err := param.Resolve(newFakeResolver(), pt)
	assert.ErrorIs(t, err, corerr.ErrParamTypeMismatch)
}

func TestRuleActionParamResolveUnresolvedIsError(t *testing.T) {
	pt := brightnessParamType()
	param := RuleActionParam{ParamTypeID: pt.ID}
	_, err := param.Resolve(newFakeResolver(), pt)
	assert.ErrorIs(t, err, ErrRuleActionParamUnresolved)
}

func TestRuleActionTargetsByThingID(t *testing.T) {
	thingID := ids.NewThingID()
	action := RuleAction{ThingID: &thingID}
	assert.Equal(t, []ids.ThingID{thingID}, action.Targets(newFakeResolver()))
}

func TestRuleActionTargetsByInterface(t *testing.T) {
	resolver := newFakeResolver()
	a, b := ids.NewThingID(), ids.NewThingID()
	resolver.implement("switchable", a)
	resolver.implement("switchable", b)

	action := RuleAction{InterfaceName: "switchable"}
	assert.ElementsMatch(t, []ids.ThingID{a, b}, action.Targets(resolver))
}

func TestRuleActionIsValid(t *testing.T) {
	assert.Error(t, RuleAction{}.IsValid())
	thingID := ids.NewThingID()
	assert.NoError(t, RuleAction{ThingID: &thingID}.IsValid())
	assert.NoError(t, RuleAction{InterfaceName: "switchable"}.IsValid())
}
