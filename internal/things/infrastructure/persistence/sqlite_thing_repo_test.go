package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nymea-go/thingd/internal/things"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

func newTestThing(classID ids.ThingClassID, parentID *ids.ThingID) *things.Thing {
	pluginID := ids.NewPluginID()
	params := map[string]values.Value{"address": values.String("0x01")}
	t := things.NewThing(classID, pluginID, "kitchen light", params, parentID)
	t.InitState(ids.NewStateTypeID(), values.Bool(false), time.Now().UTC())
	return t
}

func TestSQLiteThingRepositoryCreateAndGetByIDRoundTrips(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteThingRepository(db)
	classID := ids.NewThingClassID()
	thing := newTestThing(classID, nil)

	require.NoError(t, repo.Create(context.Background(), thing))

	loaded, err := repo.GetByID(context.Background(), thing.ID())
	require.NoError(t, err)

	assert.Equal(t, thing.Name(), loaded.Name())
	assert.Equal(t, thing.ThingClassID(), loaded.ThingClassID())
	assert.Equal(t, thing.PluginID(), loaded.PluginID())
	assert.Nil(t, loaded.ParentID())

	addr, ok := loaded.Param("address")
	require.True(t, ok)
	s, _ := addr.AsString()
	assert.Equal(t, "0x01", s)

	require.Len(t, loaded.States(), 1)
	for _, sv := range loaded.States() {
		b, _ := sv.Value.AsBool()
		assert.False(t, b)
	}
}

func TestSQLiteThingRepositoryGetByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteThingRepository(db)

	_, err := repo.GetByID(context.Background(), ids.NewThingID())
	assert.ErrorIs(t, err, corerr.ErrNotFound)
}

func TestSQLiteThingRepositoryUpdatePersistsReconfigureAndStateChanges(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteThingRepository(db)
	classID := ids.NewThingClassID()
	thing := newTestThing(classID, nil)
	require.NoError(t, repo.Create(context.Background(), thing))

	thing.Reconfigure(map[string]values.Value{"address": values.String("0x02")})
	thing.SetSetupStatus(things.SetupStatusComplete)
	for stateTypeID := range thing.States() {
		thing.InitState(stateTypeID, values.Bool(true), time.Now().UTC())
	}
	require.NoError(t, repo.Update(context.Background(), thing))

	loaded, err := repo.GetByID(context.Background(), thing.ID())
	require.NoError(t, err)
	addr, ok := loaded.Param("address")
	require.True(t, ok)
	s, _ := addr.AsString()
	assert.Equal(t, "0x02", s)
	assert.Equal(t, things.SetupStatusComplete, loaded.SetupStatus())
	for _, sv := range loaded.States() {
		b, _ := sv.Value.AsBool()
		assert.True(t, b)
	}
}

func TestSQLiteThingRepositoryDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteThingRepository(db)
	thing := newTestThing(ids.NewThingClassID(), nil)
	require.NoError(t, repo.Create(context.Background(), thing))

	require.NoError(t, repo.Delete(context.Background(), thing.ID()))

	_, err := repo.GetByID(context.Background(), thing.ID())
	assert.ErrorIs(t, err, corerr.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), thing.ID()), corerr.ErrNotFound)
}

func TestSQLiteThingRepositoryGetByParent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteThingRepository(db)
	classID := ids.NewThingClassID()

	parent := newTestThing(classID, nil)
	require.NoError(t, repo.Create(context.Background(), parent))
	parentID := parent.ID()
	child := newTestThing(classID, &parentID)
	require.NoError(t, repo.Create(context.Background(), child))

	children, err := repo.GetByParent(context.Background(), parentID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID(), children[0].ID())
}

func TestSQLiteThingRepositoryGetByThingClassIDAndAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteThingRepository(db)
	classA := ids.NewThingClassID()
	classB := ids.NewThingClassID()

	a := newTestThing(classA, nil)
	b := newTestThing(classB, nil)
	require.NoError(t, repo.Create(context.Background(), a))
	require.NoError(t, repo.Create(context.Background(), b))

	byClass, err := repo.GetByThingClassID(context.Background(), classA)
	require.NoError(t, err)
	require.Len(t, byClass, 1)
	assert.Equal(t, a.ID(), byClass[0].ID())

	all, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteThingRepositoryListFiltersByThingClassID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteThingRepository(db)
	classA := ids.NewThingClassID()
	classB := ids.NewThingClassID()

	require.NoError(t, repo.Create(context.Background(), newTestThing(classA, nil)))
	require.NoError(t, repo.Create(context.Background(), newTestThing(classB, nil)))

	results, err := repo.List(context.Background(), things.Filter{ThingClassID: &classA})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, classA, results[0].ThingClassID())
}
