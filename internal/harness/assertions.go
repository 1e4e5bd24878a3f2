package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/queryir"
	"github.com/roach88/datastack/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", FormatEvent(event))
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
//
// final_count and final_state read backend directly, so unsaved context
// changes are not visible to them. model coerces final_state filters.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, backend store.Backend, model *ir.Model) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertFinalCount:
			err = assertFinalCount(ctx, backend, a)
		case AssertFinalState:
			err = assertFinalState(ctx, backend, model, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertTraceCount checks if the step type appears exactly the specified
// number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == assertion.Step {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Step),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that step types first appear in the specified
// order. Steps don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected step type
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Type]; !seen {
			positions[event.Type] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all step types found
	for _, step := range assertion.Steps {
		if positions[step] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all steps present: %v", assertion.Steps),
				Actual:   fmt.Sprintf("missing step: %s", step),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Steps); i++ {
		prev, curr := assertion.Steps[i-1], assertion.Steps[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("steps in order: %v", assertion.Steps),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertFinalCount checks the number of stored instances of an entity.
// It reads the backend directly, so unsaved context changes don't count.
func assertFinalCount(ctx context.Context, backend store.Backend, assertion Assertion) error {
	req := queryir.FetchRequest{Entity: assertion.Entity}
	records, err := backend.Fetch(ctx, req)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalCount,
			Expected: fmt.Sprintf("fetch %s", assertion.Entity),
			Actual:   fmt.Sprintf("fetch error: %v", err),
		}
	}
	if len(records) != assertion.Count {
		return &AssertionError{
			Type:     AssertFinalCount,
			Expected: fmt.Sprintf("%d stored %s", assertion.Count, assertion.Entity),
			Actual:   fmt.Sprintf("%d stored", len(records)),
		}
	}
	return nil
}

// assertFinalState checks that exactly one stored instance matches Where
// and that it holds the expected values (subset semantics).
func assertFinalState(ctx context.Context, backend store.Backend, model *ir.Model, assertion Assertion) error {
	where, err := toObject(assertion.Where)
	if err != nil {
		return fmt.Errorf("where: %w", err)
	}
	expect, err := toObject(assertion.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}

	req := queryir.NewFetchRequest(assertion.Entity)
	if len(where) > 0 {
		preds := make([]queryir.Predicate, 0, len(where))
		for _, key := range where.SortedKeys() {
			preds = append(preds, queryir.Eq(key, where[key]))
		}
		req.Predicate = queryir.AllOf(preds...)
	}
	req, err = queryir.Validate(model, req)
	if err != nil {
		return fmt.Errorf("final_state query: %w", err)
	}

	records, err := backend.Fetch(ctx, req)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("fetch %s where %s", assertion.Entity, where),
			Actual:   fmt.Sprintf("fetch error: %v", err),
		}
	}

	switch len(records) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s where %s", assertion.Entity, where),
			Actual:   "no stored instance matched",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one %s where %s", assertion.Entity, where),
			Actual:   fmt.Sprintf("%d instances matched (assertion is ambiguous)", len(records)),
		}
	}

	actual := records[0].Values
	for _, key := range expect.SortedKeys() {
		if !ir.Equal(expect[key], actual.Get(key)) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %s", key, ir.Format(expect[key])),
				Actual:   fmt.Sprintf("%s = %s", key, ir.Format(actual.Get(key))),
			}
		}
	}
	return nil
}

func toObject(m map[string]any) (ir.Object, error) {
	obj := make(ir.Object, len(m))
	for k, raw := range m {
		v, err := ir.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		obj[k] = v
	}
	return obj, nil
}
