package things

import (
	"context"

	"github.com/nymea-go/thingd/pkg/ids"
)

// Filter specifies criteria for listing configured things.
type Filter struct {
	ThingClassID *ids.ThingClassID
	ParentID     *ids.ThingID
	Interface    string
	Limit        int
	Offset       int
}

// Repository persists Thing instances. One grouped record per Thing,
// written atomically on every successful mutation, per spec.md §6
// "Persistent state layout".
type Repository interface {
	Create(ctx context.Context, t *Thing) error
	Update(ctx context.Context, t *Thing) error
	Delete(ctx context.Context, id ids.ThingID) error
	GetByID(ctx context.Context, id ids.ThingID) (*Thing, error)
	GetByParent(ctx context.Context, parentID ids.ThingID) ([]*Thing, error)
	GetByThingClassID(ctx context.Context, thingClassID ids.ThingClassID) ([]*Thing, error)
	List(ctx context.Context, filter Filter) ([]*Thing, error)
	All(ctx context.Context) ([]*Thing, error)
}
