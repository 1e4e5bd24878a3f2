package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datastack/internal/ir"
)

// TestGoldenScenarios runs every scenario under testdata/scenarios and
// compares its trace with testdata/golden/<name>.golden.
//
// Regenerate with:
//
//	go test ./internal/harness -run TestGoldenScenarios -update
func TestGoldenScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/basic_crud.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NoError(t, AssertGolden(t, "basic_crud", result))
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name  string
		event TraceEvent
		want  string
	}{
		{
			name: "insert with ref",
			event: TraceEvent{Step: 1, Type: StepInsert, Context: "foreground", Entity: "Person",
				Ref: "ada", ID: "obj-0001", Values: ir.Object{"name": ir.String("Ada"), "age": ir.Int(36)}},
			want: `[1] insert foreground Person ada=obj-0001 {age: 36, name: "Ada"}`,
		},
		{
			name: "insert without ref",
			event: TraceEvent{Step: 2, Type: StepInsert, Context: "editor", Entity: "Group",
				ID: "obj-0002", Values: ir.Object{"size": ir.Int(3)}},
			want: `[2] insert editor Group obj-0002 {size: 3}`,
		},
		{
			name:  "failed insert",
			event: TraceEvent{Step: 3, Type: StepInsert, Context: "foreground", Entity: "Planet", Outcome: "error"},
			want:  `[3] insert foreground Planet -> error`,
		},
		{
			name: "set",
			event: TraceEvent{Step: 4, Type: StepSet, Context: "foreground", Ref: "ada", ID: "obj-0001",
				Values: ir.Object{"active": ir.Bool(false)}, Outcome: "ok"},
			want: `[4] set foreground ada {active: false} -> ok`,
		},
		{
			name: "fetch with query",
			event: TraceEvent{Step: 5, Type: StepFetch, Context: "foreground", Entity: "Person",
				Query: "where=[age>21] limit=1", Refs: []string{"ada"}},
			want: `[5] fetch foreground Person where=[age>21] limit=1 -> [ada]`,
		},
		{
			name:  "empty fetch",
			event: TraceEvent{Step: 6, Type: StepFetch, Context: "child", Entity: "Group", Refs: []string{}},
			want:  `[6] fetch child Group -> []`,
		},
		{
			name:  "delete",
			event: TraceEvent{Step: 7, Type: StepDelete, Context: "foreground", Ref: "ada", ID: "obj-0001"},
			want:  `[7] delete foreground ada`,
		},
		{
			name:  "child",
			event: TraceEvent{Step: 8, Type: StepChild, Context: "editor", Parent: "foreground"},
			want:  `[8] child editor of foreground`,
		},
		{
			name:  "save",
			event: TraceEvent{Step: 9, Type: StepSave, Context: "editor", Outcome: "ok"},
			want:  `[9] save editor -> ok`,
		},
		{
			name:  "rollback",
			event: TraceEvent{Step: 10, Type: StepRollback, Context: "editor"},
			want:  `[10] rollback editor`,
		},
		{
			name:  "delete all",
			event: TraceEvent{Step: 11, Type: StepDeleteAll, Context: "foreground"},
			want:  `[11] delete_all foreground`,
		},
		{
			name:  "persist noop",
			event: TraceEvent{Step: 12, Type: StepPersist, Mode: "async", Outcome: "noop"},
			want:  `[12] persist async -> noop`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEvent(tt.event))
		})
	}
}

func TestFormatTrace(t *testing.T) {
	trace := []TraceEvent{
		{Step: 1, Type: StepChild, Context: "editor", Parent: "foreground"},
		{Step: 2, Type: StepRollback, Context: "editor"},
	}

	want := "scenario: demo\n" +
		"[1] child editor of foreground\n" +
		"[2] rollback editor\n"
	assert.Equal(t, want, string(FormatTrace("demo", trace)))
	assert.Equal(t, "scenario: empty\n", string(FormatTrace("empty", nil)))
}
