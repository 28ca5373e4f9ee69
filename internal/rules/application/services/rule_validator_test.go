package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

func TestRuleValidatorAddRulePersistsValidRule(t *testing.T) {
	cat, thingClassID, actionTypeID, paramTypeID := setupSwitchThingClass(t)
	thingID := ids.NewThingID()
	eventTypeID := ids.NewEventTypeID()
	tc, err := cat.ThingClass(thingClassID)
	require.NoError(t, err)
	tc.EventTypes = []catalogue.EventType{{ID: eventTypeID, Name: "pressed"}}

	lookup := &fakeClassLookup{classes: map[ids.ThingID]ids.ThingClassID{thingID: thingClassID}}
	repo := newFakeRuleRepo()
	validator := NewRuleValidator(repo, cat, lookup, nil)

	power := values.Bool(true)
	rule := &domain.Rule{
		ID:      ids.NewRuleID(),
		Name:    "turn on when pressed",
		Enabled: true,
		Events: []domain.EventDescriptor{
			{ThingID: &thingID, HasEventTypeID: true, EventTypeID: eventTypeID},
		},
		Actions: []domain.RuleAction{
			{ThingID: &thingID, ActionTypeID: actionTypeID, Params: []domain.RuleActionParam{
				{ParamTypeID: paramTypeID, Value: &power},
			}},
		},
	}

	require.NoError(t, validator.AddRule(context.Background(), rule))
	stored, err := repo.GetByID(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, stored.Name)
}

func TestRuleValidatorAddRuleRejectsUnknownThing(t *testing.T) {
	cat, _, actionTypeID, paramTypeID := setupSwitchThingClass(t)
	unknownThing := ids.NewThingID()
	lookup := &fakeClassLookup{classes: map[ids.ThingID]ids.ThingClassID{}}
	repo := newFakeRuleRepo()
	validator := NewRuleValidator(repo, cat, lookup, nil)

	power := values.Bool(true)
	rule := &domain.Rule{
		ID: ids.NewRuleID(),
		Events: []domain.EventDescriptor{
			{ThingID: &unknownThing, HasEventTypeID: true, EventTypeID: ids.NewEventTypeID()},
		},
		Actions: []domain.RuleAction{
			{ThingID: &unknownThing, ActionTypeID: actionTypeID, Params: []domain.RuleActionParam{
				{ParamTypeID: paramTypeID, Value: &power},
			}},
		},
	}

	err := validator.AddRule(context.Background(), rule)
	assert.ErrorIs(t, err, corerr.ErrInvalidRule)
	assert.Empty(t, repo.rules)
}

func TestRuleValidatorAddRuleRejectsUnknownEventType(t *testing.T) {
	cat, thingClassID, _, _ := setupSwitchThingClass(t)
	thingID := ids.NewThingID()
	lookup := &fakeClassLookup{classes: map[ids.ThingID]ids.ThingClassID{thingID: thingClassID}}
	repo := newFakeRuleRepo()
	validator := NewRuleValidator(repo, cat, lookup, nil)

	rule := &domain.Rule{
		ID: ids.NewRuleID(),
		Events: []domain.EventDescriptor{
			{ThingID: &thingID, HasEventTypeID: true, EventTypeID: ids.NewEventTypeID()},
		},
	}

	err := validator.AddRule(context.Background(), rule)
	assert.ErrorIs(t, err, corerr.ErrInvalidRule)
	assert.Empty(t, repo.rules)
}

func TestRuleValidatorAddRuleRejectsUnknownActionType(t *testing.T) {
	cat, thingClassID, _, _ := setupSwitchThingClass(t)
	thingID := ids.NewThingID()
	lookup := &fakeClassLookup{classes: map[ids.ThingID]ids.ThingClassID{thingID: thingClassID}}
	repo := newFakeRuleRepo()
	validator := NewRuleValidator(repo, cat, lookup, nil)

	eventTypeID := ids.NewEventTypeID()
	tc, err := cat.ThingClass(thingClassID)
	require.NoError(t, err)
	tc.EventTypes = []catalogue.EventType{{ID: eventTypeID, Name: "pressed"}}

	rule := &domain.Rule{
		ID: ids.NewRuleID(),
		Events: []domain.EventDescriptor{
			{ThingID: &thingID, HasEventTypeID: true, EventTypeID: eventTypeID},
		},
		Actions: []domain.RuleAction{
			{ThingID: &thingID, ActionTypeID: ids.NewActionTypeID()},
		},
	}

	err = validator.AddRule(context.Background(), rule)
	assert.ErrorIs(t, err, corerr.ErrInvalidRule)
	assert.Empty(t, repo.rules)
}

func TestRuleValidatorAddRuleRejectsMalformedEventDescriptor(t *testing.T) {
	cat := catalogue.New()
	lookup := &fakeClassLookup{classes: map[ids.ThingID]ids.ThingClassID{}}
	repo := newFakeRuleRepo()
	validator := NewRuleValidator(repo, cat, lookup, nil)

	rule := &domain.Rule{
		ID:     ids.NewRuleID(),
		Events: []domain.EventDescriptor{{HasEventTypeID: true, EventTypeID: ids.NewEventTypeID()}},
	}

	err := validator.AddRule(context.Background(), rule)
	assert.ErrorIs(t, err, corerr.ErrInvalidRule)
	assert.ErrorIs(t, err, domain.ErrEventDescriptorNoThingMatch)
}

func TestRuleValidatorAddRuleRejectsRuleWithNoTrigger(t *testing.T) {
	cat := catalogue.New()
	lookup := &fakeClassLookup{classes: map[ids.ThingID]ids.ThingClassID{}}
	repo := newFakeRuleRepo()
	validator := NewRuleValidator(repo, cat, lookup, nil)

	rule := &domain.Rule{ID: ids.NewRuleID()}
	err := validator.AddRule(context.Background(), rule)
	assert.ErrorIs(t, err, corerr.ErrInvalidRule)
	assert.Empty(t, repo.rules)
}

func TestRuleValidatorAddRuleResolvesStateReferenceParam(t *testing.T) {
	cat, thingClassID, actionTypeID, paramTypeID := setupSwitchThingClass(t)
	thingID := ids.NewThingID()
	sourceThing := ids.NewThingID()
	sourceState := ids.NewStateTypeID()

	tc, err := cat.ThingClass(thingClassID)
	require.NoError(t, err)
	tc.EventTypes = []catalogue.EventType{{ID: ids.NewEventTypeID(), Name: "pressed"}}
	tc.StateTypes = []catalogue.StateType{
		{ParamType: catalogue.ParamType{ID: ids.NewParamTypeID(), Name: "power", ValueKind: values.KindBool}, StateTypeID: sourceState},
	}

	lookup := &fakeClassLookup{classes: map[ids.ThingID]ids.ThingClassID{
		thingID:     thingClassID,
		sourceThing: thingClassID,
	}}
	repo := newFakeRuleRepo()
	validator := NewRuleValidator(repo, cat, lookup, nil)

	rule := &domain.Rule{
		ID:      ids.NewRuleID(),
		Enabled: true,
		Events: []domain.EventDescriptor{
			{ThingID: &thingID, EventName: "pressed"},
		},
		Actions: []domain.RuleAction{
			{ThingID: &thingID, ActionTypeID: actionTypeID, Params: []domain.RuleActionParam{
				{ParamTypeID: paramTypeID, StateRef: &domain.StateReference{ThingID: sourceThing, StateTypeID: sourceState}},
			}},
		},
	}

	require.NoError(t, validator.AddRule(context.Background(), rule))
}

func TestRuleValidatorAddRuleRejectsUnresolvableStateReference(t *testing.T) {
	cat, thingClassID, actionTypeID, paramTypeID := setupSwitchThingClass(t)
	thingID := ids.NewThingID()
	sourceThing := ids.NewThingID()

	tc, err := cat.ThingClass(thingClassID)
	require.NoError(t, err)
	tc.EventTypes = []catalogue.EventType{{ID: ids.NewEventTypeID(), Name: "pressed"}}

	lookup := &fakeClassLookup{classes: map[ids.ThingID]ids.ThingClassID{
		thingID:     thingClassID,
		sourceThing: thingClassID,
	}}
	repo := newFakeRuleRepo()
	validator := NewRuleValidator(repo, cat, lookup, nil)

	rule := &domain.Rule{
		ID:      ids.NewRuleID(),
		Enabled: true,
		Events: []domain.EventDescriptor{
			{ThingID: &thingID, EventName: "pressed"},
		},
		Actions: []domain.RuleAction{
			{ThingID: &thingID, ActionTypeID: actionTypeID, Params: []domain.RuleActionParam{
				{ParamTypeID: paramTypeID, StateRef: &domain.StateReference{ThingID: sourceThing, StateTypeID: ids.NewStateTypeID()}},
			}},
		},
	}

	err = validator.AddRule(context.Background(), rule)
	assert.ErrorIs(t, err, corerr.ErrInvalidRule)
	assert.Empty(t, repo.rules)
}
