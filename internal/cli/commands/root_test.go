package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/conduit-lang/apiorm/internal/cli/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
mapping: mapping.yml
resources: resources.yml
database:
  driver: pgx
cache:
  backend: memory
log:
  disabled: true
`

const testMapping = `
entities:
  - name: Country
    table: country
    fields:
      - {name: id, type: string, primary: true}
      - {name: name, type: string}
`

const testResources = `
filters:
  - id: country.search
    type: search
    properties:
      name: exact
resources:
  - name: Country
    properties:
      - name: id
      - name: name
    operations:
      - name: countries
        kind: get_collection
        filters: [country.search]
      - name: country
        kind: get
`

func writeProject(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"apiorm.yml":    cfg,
		"mapping.yml":   testMapping,
		"resources.yml": testResources,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return filepath.Join(dir, "apiorm.yml")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWithConfig(t, testConfig, args...)
}

func runWithConfig(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color", "--config", writeProject(t, cfg)}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "apiorm", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"version", "sql", "describe", "query", "cache"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	defer func() { Version, GitCommit = "dev", "unknown" }()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0-test")
	assert.Contains(t, out, "abc123")
}

func TestSQLCommand(t *testing.T) {
	out, err := run(t, "sql", "Country", "countries", "--query", "name=France&page=2")
	require.NoError(t, err)
	assert.Contains(t, out, `SELECT o.id AS "o__id", o.name AS "o__name" FROM country AS o WHERE o.name = $1 ORDER BY o.id ASC LIMIT 30 OFFSET 30`)
	assert.Contains(t, out, "1  France")
}

func TestSQLCommand_Item(t *testing.T) {
	out, err := run(t, "sql", "Country", "country", "--var", "id=fr")
	require.NoError(t, err)
	assert.Contains(t, out, `FROM country AS o WHERE o.id = $1`)
	assert.Contains(t, out, "1  fr")
}

func TestSQLCommand_UnknownNames(t *testing.T) {
	_, err := run(t, "sql", "Contry", "countries")
	var failure ui.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, []string{"Country"}, failure.Suggestions)

	_, err = run(t, "sql", "Country", "countrys")
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, failure.Format(), "✗ OPERATION NOT FOUND: Cannot find operation 'countrys'.")
	assert.Contains(t, failure.Suggestions, "countries")
}

func TestSQLCommand_Args(t *testing.T) {
	_, err := run(t, "sql", "Country")
	assert.Error(t, err)
}

func TestDescribeCommand(t *testing.T) {
	out, err := run(t, "describe")
	require.NoError(t, err)
	assert.Contains(t, out, "RESOURCE")
	assert.Contains(t, out, "Country")
	assert.Contains(t, out, "country")

	out, err = run(t, "describe", "Country")
	require.NoError(t, err)
	assert.Contains(t, out, "countries")
	assert.Contains(t, out, "get_collection")
	assert.Contains(t, out, "collection")
	assert.Contains(t, out, "country.search")
	assert.Contains(t, out, "Parameters of countries")
	assert.Contains(t, out, "name")
}

func TestDescribeCommand_UnknownResource(t *testing.T) {
	_, err := run(t, "describe", "Books")
	var failure ui.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "resource not found", failure.Context)
}

func TestCacheWarmCommand(t *testing.T) {
	out, err := run(t, "cache", "warm")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Cached 1 filter descriptions in memory")
}

func TestCacheCommands_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := strings.Replace(testConfig, "backend: memory", "backend: redis\n  redis:\n    addr: "+mr.Addr(), 1)

	require.NoError(t, mr.Set("apiorm:stale", "x"))
	require.NoError(t, mr.Set("other:key", "keep"))

	out, err := runWithConfig(t, cfg, "cache", "warm")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Cached 1 filter descriptions in redis")
	assert.Len(t, mr.Keys(), 3)

	_, err = runWithConfig(t, cfg, "cache", "warm", "--clear")
	require.NoError(t, err)
	keys := mr.Keys()
	require.Len(t, keys, 2)
	assert.True(t, strings.HasPrefix(keys[0], "apiorm:filter_descriptions:"))
	assert.Equal(t, "other:key", keys[1])

	out, err = runWithConfig(t, cfg, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Cleared filter descriptions in redis")
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestCacheCommands_Disabled(t *testing.T) {
	cfg := strings.Replace(testConfig, "backend: memory", "backend: none", 1)
	_, err := runWithConfig(t, cfg, "cache", "clear")
	assert.ErrorContains(t, err, "disabled")
}
