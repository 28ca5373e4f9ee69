package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

func createTestRuleRow(t *testing.T, ruleRepo *SQLiteRuleRepository) *domain.Rule {
	rule := newTestRule(ids.NewThingID())
	require.NoError(t, ruleRepo.Create(context.Background(), rule))
	return rule
}

func TestSQLiteExecutionRepositoryCreateAndGetByRuleID(t *testing.T) {
	db := setupTestDB(t)
	ruleRepo := NewSQLiteRuleRepository(db)
	rule := createTestRuleRow(t, ruleRepo)
	repo := NewSQLiteExecutionRepository(db)

	exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "event")
	exec.Complete(domain.ExecutionStatusSuccess, []domain.ActionResult{
		{ThingID: "thing-1", ActionTypeID: "action-1", Status: "success"},
	})
	require.NoError(t, repo.Create(context.Background(), exec))

	loaded, err := repo.GetByRuleID(context.Background(), rule.ID, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, domain.ExecutionStatusSuccess, loaded[0].Status)
	require.Len(t, loaded[0].ActionsExecuted, 1)
	assert.Equal(t, "thing-1", loaded[0].ActionsExecuted[0].ThingID)
	require.NotNil(t, loaded[0].CompletedAt)
}

func TestSQLiteExecutionRepositoryGetByRuleIDRespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	ruleRepo := NewSQLiteRuleRepository(db)
	rule := createTestRuleRow(t, ruleRepo)
	repo := NewSQLiteExecutionRepository(db)

	for i := 0; i < 3; i++ {
		exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "tick")
		require.NoError(t, repo.Create(context.Background(), exec))
	}

	loaded, err := repo.GetByRuleID(context.Background(), rule.ID, 2)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSQLiteExecutionRepositoryDeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	ruleRepo := NewSQLiteRuleRepository(db)
	rule := createTestRuleRow(t, ruleRepo)
	repo := NewSQLiteExecutionRepository(db)

	exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "tick")
	require.NoError(t, repo.Create(context.Background(), exec))

	deleted, err := repo.DeleteOlderThan(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	loaded, err := repo.GetByRuleID(context.Background(), rule.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
