package persistence

import (
	"encoding/json"

	"github.com/nymea-go/thingd/internal/rules/domain"
	timeenginedomain "github.com/nymea-go/thingd/internal/timeengine/domain"
)

// The flat parts of a Rule (Events, Actions, ExitActions, TimeDescriptor)
// marshal directly through encoding/json: every field is exported, and
// values.Value and the ids.* newtypes already carry their own
// MarshalJSON/UnmarshalJSON (values.Value) or text-marshal through their
// embedded uuid.UUID (ids.*). Only the recursive StateEvaluator tree
// needs the normalized rule_evaluators table this package builds around.

func marshalEvents(events []domain.EventDescriptor) (string, error) {
	b, err := json.Marshal(events)
	return string(b), err
}

func unmarshalEvents(s string) ([]domain.EventDescriptor, error) {
	var events []domain.EventDescriptor
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func marshalActions(actions []domain.RuleAction) (string, error) {
	b, err := json.Marshal(actions)
	return string(b), err
}

func unmarshalActions(s string) ([]domain.RuleAction, error) {
	var actions []domain.RuleAction
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

func marshalTimeDescriptor(td *timeenginedomain.TimeDescriptor) (*string, error) {
	if td == nil {
		return nil, nil
	}
	b, err := json.Marshal(td)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalTimeDescriptor(s *string) (*timeenginedomain.TimeDescriptor, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var td timeenginedomain.TimeDescriptor
	if err := json.Unmarshal([]byte(*s), &td); err != nil {
		return nil, err
	}
	return &td, nil
}
