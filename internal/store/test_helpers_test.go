package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/datastack/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(path, testModel())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testModel() *ir.Model {
	return &ir.Model{
		Name: "People",
		Entities: []ir.EntitySchema{
			{Name: "Person", Attributes: map[string]ir.AttributeType{
				"name":      ir.TypeString,
				"age":       ir.TypeInt,
				"height":    ir.TypeFloat,
				"birthDate": ir.TypeTime,
			}},
			{Name: "Group", Attributes: map[string]ir.AttributeType{"title": ir.TypeString}},
		},
	}
}

// person creates a Person record with a name.
func person(id string, seq int64, name string) ir.Record {
	return ir.Record{
		ID:     ir.ObjectID(id),
		Entity: "Person",
		Seq:    seq,
		Values: ir.Object{"name": ir.String(name)},
	}
}

// group creates a Group record with a title.
func group(id string, seq int64, title string) ir.Record {
	return ir.Record{
		ID:     ir.ObjectID(id),
		Entity: "Group",
		Seq:    seq,
		Values: ir.Object{"title": ir.String(title)},
	}
}

func recordIDs(recs []ir.Record) []ir.ObjectID {
	ids := make([]ir.ObjectID, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}
