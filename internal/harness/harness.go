package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/datastack/internal/config"
	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
	"github.com/roach88/datastack/internal/schema"
	"github.com/roach88/datastack/internal/stack"
	"github.com/roach88/datastack/internal/store"
	"github.com/roach88/datastack/internal/testutil"
)

// asyncPersistTimeout bounds how long a scenario waits for an asynchronous
// persist's completion.
const asyncPersistTimeout = 10 * time.Second

// Harness is the scenario execution engine.
// It runs one scenario against one fresh stack.
type Harness struct {
	stack    *stack.Stack
	backend  store.Backend
	model    *ir.Model
	errors   *testutil.RecordingLogger
	contexts map[string]*stack.Context
	refs     map[string]ir.ObjectID
	names    map[ir.ObjectID]string
	entities map[ir.ObjectID]string
}

// Run executes a scenario and returns the result.
//
// The model is loaded from scenario.ModelDir. Each scenario runs in a fresh
// in-memory store for isolation. Deterministic helpers ensure reproducible
// results.
//
// Execution flow:
// 1. Load the model and open a memory-medium stack
// 2. Execute steps, checking expect clauses
// 3. Evaluate assertions against the trace and the store
// 4. Return result with pass/fail, trace, and errors
//
// The returned error covers problems with the scenario itself (model not
// found, unknown ref or context); failed expectations are reported in the
// result.
func Run(scenario *Scenario) (*Result, error) {
	model, err := schema.Load(scenario.ModelDir, scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return RunWithModel(scenario, model)
}

// RunWithModel executes a scenario against an already compiled model.
func RunWithModel(scenario *Scenario, model *ir.Model) (*Result, error) {
	backend, err := store.OpenMemory(model)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	cfg := *config.DefaultConfig()
	cfg.Model.Name = model.Name
	cfg.Store.Name = scenario.Name
	cfg.Store.Type = config.StoreMemory

	recorder := testutil.NewRecordingLogger()
	s, err := stack.New(cfg,
		stack.WithModel(model),
		stack.WithBackend(backend),
		stack.WithIDGenerator(testutil.NewSequentialIDGenerator("obj")),
		stack.WithErrorLogger(recorder),
		stack.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to create stack: %w", err)
	}
	defer s.Close()

	h := &Harness{
		stack:   s,
		backend: backend,
		model:   model,
		errors:  recorder,
		contexts: map[string]*stack.Context{
			"root":       s.Root(),
			"foreground": s.Foreground(),
		},
		refs:     make(map[string]ir.ObjectID),
		names:    make(map[ir.ObjectID]string),
		entities: make(map[ir.ObjectID]string),
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Type(), err)
		}
	}

	for _, errMsg := range EvaluateAssertions(ctx, result, scenario.Assertions, backend, model) {
		result.AddError(errMsg)
	}
	result.LoggedErrors = recorder.Len()

	return result, nil
}

func (h *Harness) execute(ctx context.Context, n int, step Step, result *Result) error {
	switch step.Type() {
	case StepInsert:
		return h.executeInsert(n, step, result)
	case StepSet:
		return h.executeSet(ctx, n, step, result)
	case StepFetch:
		return h.executeFetch(ctx, n, step, result)
	case StepDelete:
		return h.executeDelete(ctx, n, step, result)
	case StepDeleteAll:
		h.stack.DeleteAll(ctx)
		result.addEvent(TraceEvent{Step: n, Type: StepDeleteAll, Context: "foreground"})
		return nil
	case StepChild:
		return h.executeChild(n, step, result)
	case StepSave:
		c, err := h.context(step.Save)
		if err != nil {
			return err
		}
		var saveErr error
		c.PerformAndWait(func() { saveErr = c.Save(ctx) })
		result.addEvent(TraceEvent{Step: n, Type: StepSave, Context: step.Save, Outcome: outcome(saveErr)})
		h.checkError(n, step, saveErr, result)
		return nil
	case StepRollback:
		c, err := h.context(step.Rollback)
		if err != nil {
			return err
		}
		c.Rollback()
		result.addEvent(TraceEvent{Step: n, Type: StepRollback, Context: step.Rollback})
		return nil
	case StepPersist:
		return h.executePersist(ctx, n, step, result)
	default:
		return fmt.Errorf("invalid step")
	}
}

func (h *Harness) executeInsert(n int, step Step, result *Result) error {
	if step.Ref != "" {
		if _, taken := h.refs[step.Ref]; taken {
			return fmt.Errorf("ref %q already used", step.Ref)
		}
	}
	name := contextName(step.Context)
	c, err := h.context(name)
	if err != nil {
		return err
	}

	obj, err := c.Insert(step.Insert, step.Values)
	if err != nil {
		h.checkError(n, step, err, result)
		result.addEvent(TraceEvent{Step: n, Type: StepInsert, Context: name, Entity: step.Insert, Outcome: outcome(err)})
		return nil
	}

	h.entities[obj.ID()] = obj.Entity()
	if step.Ref != "" {
		h.refs[step.Ref] = obj.ID()
		h.names[obj.ID()] = step.Ref
	}
	result.addEvent(TraceEvent{
		Step:    n,
		Type:    StepInsert,
		Context: name,
		Entity:  step.Insert,
		Ref:     step.Ref,
		ID:      obj.ID(),
		Values:  obj.Values(),
	})
	h.checkError(n, step, nil, result)
	return nil
}

func (h *Harness) executeSet(ctx context.Context, n int, step Step, result *Result) error {
	name := contextName(step.Context)
	obj, err := h.object(ctx, name, step.Set)
	if err != nil {
		return err
	}

	patch := ir.Object{}
	var setErr error
	for _, key := range sortedKeys(step.Values) {
		if err := obj.Set(key, step.Values[key]); err != nil {
			setErr = err
			break
		}
		patch[key] = obj.Values().Get(key)
	}

	result.addEvent(TraceEvent{Step: n, Type: StepSet, Context: name, Ref: step.Set, ID: obj.ID(), Values: patch, Outcome: outcome(setErr)})
	h.checkError(n, step, setErr, result)
	return nil
}

func (h *Harness) executeFetch(ctx context.Context, n int, step Step, result *Result) error {
	name := contextName(step.Context)
	c, err := h.context(name)
	if err != nil {
		return err
	}

	opts, query, err := h.fetchOptions(step)
	if err != nil {
		return err
	}

	objs := h.stack.FetchMany(ctx, c, step.Fetch, opts...)
	refs := make([]string, 0, len(objs))
	for _, o := range objs {
		refs = append(refs, h.refName(o.ID()))
	}

	result.addEvent(TraceEvent{Step: n, Type: StepFetch, Context: name, Entity: step.Fetch, Query: query, Refs: refs})

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Count != nil && *step.Expect.Count != len(objs) {
		result.AddError(fmt.Sprintf("step %d: fetch %s: expected %d objects, got %d %v",
			n, step.Fetch, *step.Expect.Count, len(objs), refs))
	}
	if step.Expect.Refs != nil && strings.Join(step.Expect.Refs, ",") != strings.Join(refs, ",") {
		result.AddError(fmt.Sprintf("step %d: fetch %s: expected %v, got %v",
			n, step.Fetch, step.Expect.Refs, refs))
	}
	return nil
}

func (h *Harness) fetchOptions(step Step) ([]stack.FetchOption, string, error) {
	es, ok := h.model.Entity(step.Fetch)
	if !ok {
		// Let the stack report the unknown entity through its logger.
		return nil, "", nil
	}

	var opts []stack.FetchOption
	var parts []string

	pred, err := queryir.ParseConditions(es, step.Where)
	if err != nil {
		return nil, "", err
	}
	if pred != nil {
		opts = append(opts, stack.Where(pred))
		parts = append(parts, "where=["+strings.Join(step.Where, " and ")+"]")
	}

	if len(step.Sort) > 0 {
		descriptors := make([]queryir.SortDescriptor, 0, len(step.Sort))
		for _, key := range step.Sort {
			d, err := queryir.ParseSort(key)
			if err != nil {
				return nil, "", err
			}
			descriptors = append(descriptors, d)
		}
		opts = append(opts, stack.SortBy(descriptors...))
		parts = append(parts, "sort=["+strings.Join(step.Sort, ", ")+"]")
	}

	if step.Limit > 0 {
		opts = append(opts, stack.Limit(step.Limit))
		parts = append(parts, fmt.Sprintf("limit=%d", step.Limit))
	}

	return opts, strings.Join(parts, " "), nil
}

func (h *Harness) executeDelete(ctx context.Context, n int, step Step, result *Result) error {
	name := contextName(step.Context)
	c, err := h.context(name)
	if err != nil {
		return err
	}
	obj, err := h.object(ctx, name, step.Delete)
	if err != nil {
		return err
	}

	h.stack.Delete(c, obj)
	result.addEvent(TraceEvent{Step: n, Type: StepDelete, Context: name, Ref: step.Delete, ID: obj.ID()})
	return nil
}

func (h *Harness) executeChild(n int, step Step, result *Result) error {
	if _, exists := h.contexts[step.Child]; exists {
		return fmt.Errorf("context %q already exists", step.Child)
	}
	parentName := contextName(step.Parent)
	parent, err := h.context(parentName)
	if err != nil {
		return err
	}

	h.contexts[step.Child] = h.stack.NewChildContext(parent)
	result.addEvent(TraceEvent{Step: n, Type: StepChild, Context: step.Child, Parent: parentName})
	return nil
}

func (h *Harness) executePersist(ctx context.Context, n int, step Step, result *Result) error {
	async := step.Persist.Async
	mode := "sync"
	if async {
		mode = "async"
	}

	if !h.stack.Foreground().HasChanges() && !h.stack.Root().HasChanges() {
		result.addEvent(TraceEvent{Step: n, Type: StepPersist, Mode: mode, Outcome: "noop"})
		h.checkError(n, step, nil, result)
		return nil
	}

	done := make(chan error, 1)
	h.stack.Persist(ctx, !async, func(err error) { done <- err })

	var persistErr error
	select {
	case persistErr = <-done:
	case <-time.After(asyncPersistTimeout):
		return fmt.Errorf("persist completion not called within %s", asyncPersistTimeout)
	}

	result.addEvent(TraceEvent{Step: n, Type: StepPersist, Mode: mode, Outcome: outcome(persistErr)})
	h.checkError(n, step, persistErr, result)
	return nil
}

// checkError compares a step's error with its expect.error.
func (h *Harness) checkError(n int, step Step, err error, result *Result) {
	wantErr := step.Expect != nil && step.Expect.Error
	switch {
	case wantErr && err == nil:
		result.AddError(fmt.Sprintf("step %d: %s: expected an error, got none", n, step.Type()))
	case !wantErr && err != nil:
		result.AddError(fmt.Sprintf("step %d: %s: unexpected error: %v", n, step.Type(), err))
	}
}

func (h *Harness) context(name string) (*stack.Context, error) {
	c, ok := h.contexts[name]
	if !ok {
		return nil, fmt.Errorf("unknown context %q", name)
	}
	return c, nil
}

// object returns ref's object as registered in the named context.
func (h *Harness) object(ctx context.Context, contextName, ref string) (*stack.Object, error) {
	id, ok := h.refs[ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q", ref)
	}
	c, err := h.context(contextName)
	if err != nil {
		return nil, err
	}

	req := queryir.NewFetchRequest(h.entities[id])
	req.IDs = []ir.ObjectID{id}
	objs, err := c.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolve ref %q: %w", ref, err)
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("ref %q is not visible in context %q", ref, contextName)
	}
	return objs[0], nil
}

func (h *Harness) refName(id ir.ObjectID) string {
	if name, ok := h.names[id]; ok {
		return name
	}
	return string(id)
}

func contextName(name string) string {
	if name == "" {
		return "foreground"
	}
	return name
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
