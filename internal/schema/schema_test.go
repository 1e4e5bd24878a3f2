package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datastack/internal/ir"
)

const peopleCUE = `
entity: Person: {
	name:      string
	birthDate: "time"
}

entity: Group: {
	title: string
	size:  int
	score: number
	open:  bool
}
`

const peopleYAML = `
entities:
  Person:
    name: string
    birthDate: time
  Group:
    title: string
`

func TestCompileCUE(t *testing.T) {
	model, err := CompileCUE("People", "people.cue", []byte(peopleCUE))
	require.NoError(t, err)

	assert.Equal(t, "People", model.Name)
	assert.Equal(t, []string{"Group", "Person"}, model.EntityNames())

	person, ok := model.Entity("Person")
	require.True(t, ok)
	assert.Equal(t, map[string]ir.AttributeType{
		"name":      ir.TypeString,
		"birthDate": ir.TypeTime,
	}, person.Attributes)

	group, ok := model.Entity("Group")
	require.True(t, ok)
	assert.Equal(t, ir.TypeInt, group.Attributes["size"])
	assert.Equal(t, ir.TypeFloat, group.Attributes["score"])
	assert.Equal(t, ir.TypeBool, group.Attributes["open"])
}

func TestCompileCUEErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no entity field", `other: 1`, "at least one entity"},
		{"empty entity", `entity: Group: {}`, "at least one attribute"},
		{"unknown type name", `entity: Group: { title: "blob" }`, `unknown attribute type "blob"`},
		{"list type", `entity: Group: { tags: [...string] }`, "unsupported type kind"},
		{"syntax error", `entity: Group: {`, "people.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileCUE("People", "people.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileCUEErrorHasPosition(t *testing.T) {
	_, err := CompileCUE("People", "people.cue", []byte("entity: Group: {\n\ttitle: \"blob\"\n}\n"))

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.True(t, compileErr.Pos.IsValid())
	assert.Equal(t, 2, compileErr.Pos.Line())
}

func TestCompileYAML(t *testing.T) {
	model, err := CompileYAML("People", "people.yaml", []byte(peopleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"Group", "Person"}, model.EntityNames())
	person, _ := model.Entity("Person")
	assert.Equal(t, ir.TypeTime, person.Attributes["birthDate"])
}

func TestCompileYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty document", ``, "at least one entity"},
		{"no entities", "other: 1\n", "at least one entity"},
		{"entity without attributes", "entities:\n  Group: {}\n", "people.yaml:2"},
		{"unknown type", "entities:\n  Group:\n    title: blob\n", "people.yaml:3"},
		{"invalid attribute name", "entities:\n  Group:\n    a-b: string\n", "invalid attribute name"},
		{"not a mapping", "- a\n", "top level must be a mapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileYAML("People", "people.yaml", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadPrefersCUE(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "People.cue"), []byte(peopleCUE), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "People.yaml"), []byte("entities:\n  Only:\n    x: int\n"), 0644))

	model, err := Load(dir, "People")
	require.NoError(t, err)
	assert.Equal(t, []string{"Group", "Person"}, model.EntityNames())
}

func TestLoadYAMLFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "People.yml"), []byte(peopleYAML), 0644))

	model, err := Load(dir, "People")
	require.NoError(t, err)
	assert.Len(t, model.Entities, 2)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(t.TempDir(), "People")
	assert.ErrorIs(t, err, ErrModelNotFound)

	_, err = Load(t.TempDir(), "../People")
	assert.ErrorContains(t, err, "invalid model name")
}
