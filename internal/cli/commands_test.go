package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datastack/internal/config"
)

const peopleCUE = `
entity: Person: {
	name:      string
	age:       int
	score:     number
	active:    bool
	birthDate: "time"
}

entity: Group: {
	title: string
	size:  int
}
`

// setupProject writes a model and a config for storeType into a temp dir
// and returns the config path.
func setupProject(t *testing.T, storeType config.StoreType) string {
	t.Helper()
	dir := t.TempDir()

	modelDir := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(modelDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "people.cue"), []byte(peopleCUE), 0644))

	cfg := config.DefaultConfig()
	cfg.Model.Name = "people"
	cfg.Model.Dir = "models"
	cfg.Store.Name = "people"
	cfg.Store.Type = storeType
	cfg.Store.Dir = filepath.Join(dir, "data")

	path := filepath.Join(dir, "datastack.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

type objectResponse struct {
	Status string `json:"status"`
	Data   []struct {
		ID     string         `json:"id"`
		Entity string         `json:"entity"`
		Values map[string]any `json:"values"`
	} `json:"data"`
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datastack.yaml")

	stdout, _, err := execute(t, "init", "--path", path, "--model", "people", "--store-type", "binary")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+path)

	cfg, _, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "people", cfg.Model.Name)
	assert.Equal(t, "people", cfg.Store.Name)
	assert.Equal(t, config.StoreBinary, cfg.Store.Type)
	assert.Equal(t, config.DefaultFetchBatchSize, cfg.BatchSize())

	_, _, err = execute(t, "init", "--path", path, "--model", "people")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "init", "--path", path, "--model", "other", "--force")
	require.NoError(t, err)
}

func TestInit_InvalidStoreType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datastack.yaml")

	stdout, _, err := execute(t, "init", "--path", path, "--model", "people", "--store-type", "floppy")
	require.Error(t, err)
	assert.Contains(t, stdout, "Error [E_CONFIG]")
	assert.NoFileExists(t, path)
}

func TestInit_RequiresModel(t *testing.T) {
	_, _, err := execute(t, "init", "--path", filepath.Join(t.TempDir(), "c.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "model" not set`)
}

func TestValidate(t *testing.T) {
	configPath := setupProject(t, config.StoreSQLite)
	modelDir := filepath.Join(filepath.Dir(configPath), "models")

	stdout, _, err := execute(t, "validate", modelDir, "--model", "people")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ people: 2 entities (Group, Person)")

	stdout, _, err = execute(t, "--format", "json", "validate", modelDir, "--model", "people")
	require.NoError(t, err)
	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"Group", "Person"}, resp.Data.Entities)
}

func TestValidate_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte("entity: Person: {}\n"), 0644))

	stdout, _, err := execute(t, "validate", dir, "--model", "bad")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E_MODEL_INVALID]")
	assert.Contains(t, stdout, "at least one attribute")

	_, _, err = execute(t, "validate", dir, "--model", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEntities(t *testing.T) {
	configPath := setupProject(t, config.StoreSQLite)

	stdout, _, err := execute(t, "--config", configPath, "entities")
	require.NoError(t, err)
	assert.Equal(t,
		"Group: size int, title string\n"+
			"Person: active bool, age int, birthDate time, name string, score float\n",
		stdout)
}

func TestEntities_MissingConfig(t *testing.T) {
	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "entities")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestInsertThenFetch(t *testing.T) {
	for _, medium := range []config.StoreType{config.StoreSQLite, config.StoreBinary} {
		t.Run(string(medium), func(t *testing.T) {
			configPath := setupProject(t, medium)

			stdout, _, err := execute(t, "--config", configPath, "insert", "Person", "--values", `{"name": "Ada", "age": 36}`)
			require.NoError(t, err)
			assert.Contains(t, stdout, "inserted Person ")
			assert.Contains(t, stdout, `{age: 36, name: "Ada"}`)

			_, _, err = execute(t, "--config", configPath, "insert", "Person", "--values", `{"name": "Alan", "age": 41}`)
			require.NoError(t, err)

			stdout, _, err = execute(t, "--config", configPath, "fetch", "Person", "--sort", "age:desc")
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(stdout), "\n")
			require.Len(t, lines, 2)
			assert.Contains(t, lines[0], `name: "Alan"`)
			assert.Contains(t, lines[1], `name: "Ada"`)

			stdout, _, err = execute(t, "--config", configPath, "fetch", "Person", "--where", "age<40", "--one")
			require.NoError(t, err)
			assert.Contains(t, stdout, `name: "Ada"`)
			assert.NotContains(t, stdout, "Alan")
		})
	}
}

func TestFetch_JSON(t *testing.T) {
	configPath := setupProject(t, config.StoreSQLite)
	for _, values := range []string{`{"name": "Ada", "age": 36}`, `{"name": "Alan", "age": 41}`, `{"name": "Grace", "age": 45}`} {
		_, _, err := execute(t, "--config", configPath, "insert", "Person", "--values", values)
		require.NoError(t, err)
	}

	stdout, _, err := execute(t, "--config", configPath, "--format", "json",
		"fetch", "Person", "--where", "age>=40", "--sort", "name", "--limit", "1")
	require.NoError(t, err)

	var resp objectResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Person", resp.Data[0].Entity)
	assert.Equal(t, "Alan", resp.Data[0].Values["name"])
	assert.NotEmpty(t, resp.Data[0].ID)
}

func TestFetch_NoResults(t *testing.T) {
	configPath := setupProject(t, config.StoreSQLite)

	stdout, stderr, err := execute(t, "--config", configPath, "fetch", "Group")
	require.NoError(t, err)
	assert.Equal(t, "no Group found\n", stdout)
	assert.Empty(t, stderr)

	stdout, _, err = execute(t, "--config", configPath, "--format", "json", "fetch", "Group")
	require.NoError(t, err)
	var resp objectResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Empty(t, resp.Data)
}

func TestFetch_BadArguments(t *testing.T) {
	configPath := setupProject(t, config.StoreSQLite)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown entity", []string{"fetch", "Planet"}, `unknown entity "Planet"`},
		{"bad where", []string{"fetch", "Person", "--where", "height>2"}, "invalid --where"},
		{"bad sort", []string{"fetch", "Person", "--sort", "name:sideways"}, "invalid --sort"},
		{"negative limit", []string{"fetch", "Person", "--limit", "-1"}, "--limit must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, append([]string{"--config", configPath}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestInsert_Errors(t *testing.T) {
	configPath := setupProject(t, config.StoreSQLite)

	_, _, err := execute(t, "--config", configPath, "insert", "Person", "--values", "{not json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "--config", configPath, "insert", "Planet", "--values", `{"name": "Mars"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown entity "Planet"`)

	stdout, _, err := execute(t, "--config", configPath, "insert", "Person", "--values", `{"age": "old"}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to save")
	assert.Contains(t, stdout, "Error [E_SAVE]")

	stdout, _, err = execute(t, "--config", configPath, "fetch", "Person")
	require.NoError(t, err)
	assert.Equal(t, "no Person found\n", stdout)
}

func TestDelete(t *testing.T) {
	configPath := setupProject(t, config.StoreSQLite)
	for _, values := range []string{`{"name": "Ada", "age": 36}`, `{"name": "Tim", "age": 12}`, `{"name": "Sue", "age": 9}`} {
		_, _, err := execute(t, "--config", configPath, "insert", "Person", "--values", values)
		require.NoError(t, err)
	}

	stdout, _, err := execute(t, "--config", configPath, "delete", "Person", "--where", "age<18")
	require.NoError(t, err)
	assert.Equal(t, "deleted 2 Person\n", stdout)

	stdout, _, err = execute(t, "--config", configPath, "fetch", "Person")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Ada")
	assert.NotContains(t, stdout, "Tim")

	stdout, _, err = execute(t, "--config", configPath, "--format", "json", "delete", "Person")
	require.NoError(t, err)
	var resp struct {
		Data DeleteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, DeleteResult{Entity: "Person", Deleted: 1}, resp.Data)
}

func TestDeleteAll(t *testing.T) {
	configPath := setupProject(t, config.StoreBinary)
	inserts := [][]string{
		{"Person", `{"name": "Ada"}`},
		{"Person", `{"name": "Alan"}`},
		{"Group", `{"title": "Pioneers", "size": 2}`},
	}
	for _, in := range inserts {
		_, _, err := execute(t, "--config", configPath, "insert", in[0], "--values", in[1])
		require.NoError(t, err)
	}

	stdout, _, err := execute(t, "--config", configPath, "delete-all")
	require.NoError(t, err)
	assert.Equal(t, "deleted 3 objects\n", stdout)

	for _, entity := range []string{"Person", "Group"} {
		stdout, _, err = execute(t, "--config", configPath, "fetch", entity)
		require.NoError(t, err)
		assert.Equal(t, "no "+entity+" found\n", stdout)
	}
}

func TestVerboseLogsToStderr(t *testing.T) {
	configPath := setupProject(t, config.StoreSQLite)

	stdout, stderr, err := execute(t, "--config", configPath, "--format", "json", "-v", "fetch", "Person")
	require.NoError(t, err)
	assert.Contains(t, stderr, "fetched 0 Person")
	assert.Contains(t, stderr, "level=DEBUG")

	var resp objectResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
}
