package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatEvent renders one trace event as a single line.
func FormatEvent(e TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", e.Step, e.Type)

	switch e.Type {
	case StepInsert:
		fmt.Fprintf(&b, " %s %s", e.Context, e.Entity)
		if e.ID != "" {
			label := string(e.ID)
			if e.Ref != "" {
				label = e.Ref + "=" + label
			}
			fmt.Fprintf(&b, " %s %s", label, e.Values)
		}
	case StepSet:
		fmt.Fprintf(&b, " %s %s %s", e.Context, e.Ref, e.Values)
	case StepFetch:
		fmt.Fprintf(&b, " %s %s", e.Context, e.Entity)
		if e.Query != "" {
			fmt.Fprintf(&b, " %s", e.Query)
		}
		fmt.Fprintf(&b, " -> [%s]", strings.Join(e.Refs, ", "))
	case StepDelete:
		fmt.Fprintf(&b, " %s %s", e.Context, e.Ref)
	case StepChild:
		fmt.Fprintf(&b, " %s of %s", e.Context, e.Parent)
	case StepPersist:
		fmt.Fprintf(&b, " %s", e.Mode)
	default:
		if e.Context != "" {
			fmt.Fprintf(&b, " %s", e.Context)
		}
	}

	if e.Outcome != "" {
		fmt.Fprintf(&b, " -> %s", e.Outcome)
	}
	return b.String()
}

// FormatTrace renders a scenario trace: a header line, then one line per
// event, newline-terminated.
func FormatTrace(scenarioName string, trace []TraceEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)
	for _, e := range trace {
		b.WriteString(FormatEvent(e))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the trace doesn't match the golden file; failed expectations
// are reported through t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result.Trace))

	return nil
}
