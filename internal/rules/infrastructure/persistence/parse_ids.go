package persistence

import (
	"github.com/google/uuid"

	"github.com/nymea-go/thingd/pkg/ids"
)

// The id types this package binds that lack a driver.Valuer/sql.Scanner
// pair (pkg/ids only implements those for the ids the teacher's
// automations package already persisted) are converted by hand here,
// matching sqlite_rule_repo.go's existing ParseRuleID/ParseThingID idiom.

func parseRuleExecutionID(s string) (ids.RuleExecutionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.RuleExecutionID{}, err
	}
	return ids.RuleExecutionID{UUID: u}, nil
}

func parseReplyID(s string) (ids.ReplyID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.ReplyID{}, err
	}
	return ids.ReplyID{UUID: u}, nil
}

func parseActionTypeID(s string) (ids.ActionTypeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.ActionTypeID{}, err
	}
	return ids.ActionTypeID{UUID: u}, nil
}

func parseParamTypeID(s string) (ids.ParamTypeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.ParamTypeID{}, err
	}
	return ids.ParamTypeID{UUID: u}, nil
}
