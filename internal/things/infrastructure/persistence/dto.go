package persistence

import (
	"encoding/json"

	"github.com/nymea-go/thingd/pkg/values"
)

// marshalValues/unmarshalValues round-trip a Thing's params or settings
// map through encoding/json: values.Value already carries its own
// MarshalJSON/UnmarshalJSON, so the map itself needs no custom codec.

func marshalValues(m map[string]values.Value) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func unmarshalValues(s string) (map[string]values.Value, error) {
	m := map[string]values.Value{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
