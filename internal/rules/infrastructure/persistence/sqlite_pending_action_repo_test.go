package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

func TestSQLitePendingActionRepositoryCreateAndGetByID(t *testing.T) {
	db := setupTestDB(t)
	ruleRepo := NewSQLiteRuleRepository(db)
	rule := createTestRuleRow(t, ruleRepo)
	execRepo := NewSQLiteExecutionRepository(db)
	exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "event")
	require.NoError(t, execRepo.Create(context.Background(), exec))

	repo := NewSQLitePendingActionRepository(db)
	paramTypeID := ids.NewParamTypeID()
	action := domain.NewPendingAction(ids.NewReplyID(), exec.ID, rule.ID, ids.NewThingID(), ids.NewActionTypeID(),
		map[ids.ParamTypeID]any{paramTypeID: true})

	require.NoError(t, repo.Create(context.Background(), action))

	loaded, err := repo.GetByID(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PendingActionStatusPending, loaded.Status)
	assert.Equal(t, true, loaded.Params[paramTypeID])
}

func TestSQLitePendingActionRepositoryGetByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLitePendingActionRepository(db)

	_, err := repo.GetByID(context.Background(), ids.NewReplyID())
	assert.ErrorIs(t, err, errPendingActionNotFound)
}

func TestSQLitePendingActionRepositoryUpdateTracksExecution(t *testing.T) {
	db := setupTestDB(t)
	ruleRepo := NewSQLiteRuleRepository(db)
	rule := createTestRuleRow(t, ruleRepo)
	execRepo := NewSQLiteExecutionRepository(db)
	exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "event")
	require.NoError(t, execRepo.Create(context.Background(), exec))

	repo := NewSQLitePendingActionRepository(db)
	action := domain.NewPendingAction(ids.NewReplyID(), exec.ID, rule.ID, ids.NewThingID(), ids.NewActionTypeID(), nil)
	require.NoError(t, repo.Create(context.Background(), action))

	action.Execute()
	require.NoError(t, repo.Update(context.Background(), action))

	loaded, err := repo.GetByID(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PendingActionStatusExecuted, loaded.Status)
	require.NotNil(t, loaded.ExecutedAt)
}

func TestSQLitePendingActionRepositoryCancelByRuleID(t *testing.T) {
	db := setupTestDB(t)
	ruleRepo := NewSQLiteRuleRepository(db)
	rule := createTestRuleRow(t, ruleRepo)
	execRepo := NewSQLiteExecutionRepository(db)
	exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "event")
	require.NoError(t, execRepo.Create(context.Background(), exec))

	repo := NewSQLitePendingActionRepository(db)
	action := domain.NewPendingAction(ids.NewReplyID(), exec.ID, rule.ID, ids.NewThingID(), ids.NewActionTypeID(), nil)
	require.NoError(t, repo.Create(context.Background(), action))

	require.NoError(t, repo.CancelByRuleID(context.Background(), rule.ID))

	loaded, err := repo.GetByID(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PendingActionStatusCancelled, loaded.Status)
}

func TestSQLitePendingActionRepositoryGetByRuleID(t *testing.T) {
	db := setupTestDB(t)
	ruleRepo := NewSQLiteRuleRepository(db)
	rule := createTestRuleRow(t, ruleRepo)
	execRepo := NewSQLiteExecutionRepository(db)
	exec := domain.NewRuleExecution(ids.NewRuleExecutionID(), rule.ID, "event")
	require.NoError(t, execRepo.Create(context.Background(), exec))

	repo := NewSQLitePendingActionRepository(db)
	for i := 0; i < 2; i++ {
		action := domain.NewPendingAction(ids.NewReplyID(), exec.ID, rule.ID, ids.NewThingID(), ids.NewActionTypeID(), nil)
		require.NoError(t, repo.Create(context.Background(), action))
	}

	loaded, err := repo.GetByRuleID(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}
