// Package services contains the Rule Engine's application services: the
// RuleProcessor that evaluates rules against the Dispatcher's three
// inbound streams, and the ActionExecutor that resolves and persists
// the actions a firing produces.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

// RuleProcessor evaluates rules against events, state changes, and time
// ticks, generalizing the teacher's event-only RuleProcessor to the
// three Dispatcher streams spec.md §4.6 describes.
type RuleProcessor struct {
	ruleRepo      domain.RuleRepository
	executionRepo domain.ExecutionRepository
	resolver      domain.ThingStateResolver
	catalogue     *catalogue.Catalogue
	logger        *slog.Logger
}

// NewRuleProcessor wires a RuleProcessor.
func NewRuleProcessor(
	ruleRepo domain.RuleRepository,
	executionRepo domain.ExecutionRepository,
	resolver domain.ThingStateResolver,
	cat *catalogue.Catalogue,
	logger *slog.Logger,
) *RuleProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleProcessor{
		ruleRepo:      ruleRepo,
		executionRepo: executionRepo,
		resolver:      resolver,
		catalogue:     cat,
		logger:        logger,
	}
}

// Firing is one rule's resolved set of actions awaiting dispatch, paired
// with the execution record it belongs to.
type Firing struct {
	Execution *domain.RuleExecution
	Rule      *domain.Rule
	Actions   []domain.RuleAction
}

// ProcessResult summarizes one evaluation pass over the rule set.
type ProcessResult struct {
	RulesEvaluated int
	Firings        []Firing
}

// ProcessEvent evaluates every enabled rule's Triggered condition against
// an inbound thing event. lastTick and now bound the edge-trigger window
// for any rule whose TimeDescriptor also gates on the event.
func (p *RuleProcessor) ProcessEvent(ctx context.Context, match domain.EventDescriptorMatch, lastTick, now time.Time) (*ProcessResult, error) {
	rules, err := p.ruleRepo.All(ctx)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	for _, rule := range rules {
		if !rule.Enabled || !rule.Executable {
			continue
		}
		result.RulesEvaluated++

		if !rule.Triggered(match, lastTick, now, p.resolver) {
			continue
		}

		p.logger.Debug("rule triggered by event", "rule_id", rule.ID, "event_type_id", match.Event.EventTypeID)
		exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "event")
		if err := p.executionRepo.Create(ctx, exec); err != nil {
			return nil, err
		}
		result.Firings = append(result.Firings, Firing{Execution: exec, Rule: rule, Actions: rule.Actions})
	}
	return result, nil
}

// ProcessStateChange recomputes activity for every rule that tracks it,
// firing Actions on the false->true edge and ExitActions on true->false.
// State-change notifications never match EventDescriptors: per spec.md
// §4.5 they only ever drive the active/inactive transition.
func (p *RuleProcessor) ProcessStateChange(ctx context.Context, now time.Time) (*ProcessResult, error) {
	rules, err := p.ruleRepo.All(ctx)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	for _, rule := range rules {
		if !rule.Enabled || !rule.Executable || !rule.TracksActivity() {
			continue
		}
		result.RulesEvaluated++

		becameActive, becameInactive := rule.Transition(now, p.resolver)
		if !becameActive && !becameInactive {
			continue
		}
		if err := p.ruleRepo.Update(ctx, rule); err != nil {
			return nil, err
		}

		cause, actions := "stateChange", rule.Actions
		if becameInactive {
			actions = rule.ExitActions
		}
		p.logger.Debug("rule transitioned", "rule_id", rule.ID, "became_active", becameActive)
		exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, cause)
		if err := p.executionRepo.Create(ctx, exec); err != nil {
			return nil, err
		}
		result.Firings = append(result.Firings, Firing{Execution: exec, Rule: rule, Actions: actions})
	}
	return result, nil
}

// ProcessTick processes all rules in insertion order on a time tick, per
// spec.md §4.4: rules tracking activity recompute their active/inactive
// edges, and rules with no StateEvaluator/calendarItems but a bare
// TimeEventItem-only TimeDescriptor fire directly off its edge-trigger,
// since a tick is the only stream that can observe it.
func (p *RuleProcessor) ProcessTick(ctx context.Context, lastTick, now time.Time) (*ProcessResult, error) {
	rules, err := p.ruleRepo.All(ctx)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	for _, rule := range rules {
		if !rule.Enabled || !rule.Executable {
			continue
		}
		result.RulesEvaluated++

		if rule.TracksActivity() {
			becameActive, becameInactive := rule.Transition(now, p.resolver)
			if !becameActive && !becameInactive {
				continue
			}
			if err := p.ruleRepo.Update(ctx, rule); err != nil {
				return nil, err
			}
			cause, actions := "tick", rule.Actions
			if becameInactive {
				actions = rule.ExitActions
			}
			exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, cause)
			if err := p.executionRepo.Create(ctx, exec); err != nil {
				return nil, err
			}
			result.Firings = append(result.Firings, Firing{Execution: exec, Rule: rule, Actions: actions})
			continue
		}

		if rule.TimeDescriptor == nil || len(rule.TimeDescriptor.TimeEventItems) == 0 {
			continue
		}
		if !rule.TimeDescriptor.Evaluate(lastTick, now) {
			continue
		}

		p.logger.Debug("rule triggered by time event", "rule_id", rule.ID)
		exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "tick")
		if err := p.executionRepo.Create(ctx, exec); err != nil {
			return nil, err
		}
		result.Firings = append(result.Firings, Firing{Execution: exec, Rule: rule, Actions: rule.Actions})
	}
	return result, nil
}

// actionTypeOf finds the ActionType of a thing's class matching id.
func actionTypeOf(tc *catalogue.ThingClass, id ids.ActionTypeID) (catalogue.ActionType, bool) {
	for _, at := range tc.ActionTypes {
		if at.ID == id {
			return at, true
		}
	}
	return catalogue.ActionType{}, false
}
