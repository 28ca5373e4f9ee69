package persistence

import (
	"github.com/google/uuid"

	"github.com/nymea-go/thingd/pkg/ids"
)

// parseStateTypeID converts a stored state_type_id column by hand,
// matching internal/rules/infrastructure/persistence's parse_ids.go idiom
// for ids.* kinds with no driver.Valuer/sql.Scanner pair.
func parseStateTypeID(s string) (ids.StateTypeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ids.StateTypeID{}, err
	}
	return ids.StateTypeID{UUID: u}, nil
}
