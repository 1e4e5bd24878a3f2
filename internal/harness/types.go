package harness

import (
	"github.com/roach88/datastack/internal/ir"
)

// Step type names, as written in scenarios and traces.
const (
	StepInsert    = "insert"
	StepSet       = "set"
	StepFetch     = "fetch"
	StepDelete    = "delete"
	StepDeleteAll = "delete_all"
	StepChild     = "child"
	StepSave      = "save"
	StepRollback  = "rollback"
	StepPersist   = "persist"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"` // 1-based position in the scenario
	Type    string `json:"type"`
	Context string `json:"context,omitempty"`
	Entity  string `json:"entity,omitempty"`

	// Ref and ID identify the object an insert, set or delete touched.
	Ref string      `json:"ref,omitempty"`
	ID  ir.ObjectID `json:"id,omitempty"`

	Values ir.Object `json:"values,omitempty"`

	// Query describes a fetch's where/sort/limit; Refs lists its result.
	Query string   `json:"query,omitempty"`
	Refs  []string `json:"refs,omitempty"`

	// Parent is a new child context's parent; Mode is "sync" or "async"
	// for persists.
	Parent string `json:"parent,omitempty"`
	Mode   string `json:"mode,omitempty"`

	// Outcome is "ok", "error" or "noop" for steps that can fail.
	Outcome string `json:"outcome,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// LoggedErrors counts errors the stack reported through its error
	// logger during the run.
	LoggedErrors int `json:"logged_errors"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
