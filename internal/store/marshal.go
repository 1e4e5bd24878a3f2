package store

import (
	"fmt"

	"github.com/roach88/datastack/internal/ir"
)

// marshalValues converts an attribute map to canonical JSON TEXT for storage.
// Null attributes are dropped: an absent key reads back as Null.
func marshalValues(values ir.Object) (string, error) {
	data, err := ir.MarshalObject(values.WithoutNulls())
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// marshalPatch converts a patch to a JSON merge patch. Null attributes are
// kept so json_patch removes them.
func marshalPatch(patch ir.Object) (string, error) {
	data, err := ir.MarshalObject(patch)
	if err != nil {
		return "", fmt.Errorf("marshal patch: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses stored JSON TEXT, decoding numbers by the entity's
// declared attribute types. An unknown entity decodes without a schema.
func (s *Store) unmarshalValues(entity, data string) (ir.Object, error) {
	var schema *ir.EntitySchema
	if s.model != nil {
		schema, _ = s.model.Entity(entity)
	}
	values, err := ir.UnmarshalObject([]byte(data), schema)
	if err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return values, nil
}
