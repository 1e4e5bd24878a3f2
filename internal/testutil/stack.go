package testutil

import (
	"testing"

	"github.com/roach88/datastack/internal/config"
	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/stack"
	"github.com/roach88/datastack/internal/store"
)

// TestStack is a memory-medium stack wired for tests: sequential IDs,
// a recording error logger and a fault-injecting backend.
type TestStack struct {
	*stack.Stack
	Backend *FaultyBackend
	Logger  *RecordingLogger
	IDs     *SequentialIDGenerator
}

// PeopleModel returns the two-entity model most tests use.
func PeopleModel() *ir.Model {
	return &ir.Model{
		Name: "People",
		Entities: []ir.EntitySchema{
			{Name: "Group", Attributes: map[string]ir.AttributeType{
				"title": ir.TypeString,
				"size":  ir.TypeInt,
			}},
			{Name: "Person", Attributes: map[string]ir.AttributeType{
				"name":      ir.TypeString,
				"age":       ir.TypeInt,
				"score":     ir.TypeFloat,
				"active":    ir.TypeBool,
				"birthDate": ir.TypeTime,
			}},
		},
	}
}

// MemoryConfig returns a valid config for the memory medium.
func MemoryConfig(modelName string) config.Config {
	cfg := *config.DefaultConfig()
	cfg.Model.Name = modelName
	cfg.Model.Dir = "."
	cfg.Store.Name = modelName
	cfg.Store.Type = config.StoreMemory
	return cfg
}

// NewTestStack opens a memory stack over model. Extra options are applied
// after the test wiring, so they can override it. The stack is closed when
// the test ends.
func NewTestStack(t testing.TB, model *ir.Model, opts ...stack.Option) *TestStack {
	t.Helper()

	mem, err := store.OpenMemory(model)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}

	ts := &TestStack{
		Backend: NewFaultyBackend(mem),
		Logger:  NewRecordingLogger(),
		IDs:     NewSequentialIDGenerator("obj"),
	}
	all := append([]stack.Option{
		stack.WithModel(model),
		stack.WithBackend(ts.Backend),
		stack.WithIDGenerator(ts.IDs),
		stack.WithErrorLogger(ts.Logger),
	}, opts...)

	s, err := stack.New(MemoryConfig(model.Name), all...)
	if err != nil {
		mem.Close()
		t.Fatalf("stack.New failed: %v", err)
	}
	ts.Stack = s
	t.Cleanup(func() { s.Close() })
	return ts
}
