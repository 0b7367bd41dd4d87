package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/flatjson/pkg/api"
	"github.com/ssargent/flatjson/pkg/config"
	"github.com/ssargent/flatjson/pkg/di"
)

const testSchema = `
root_type: Monster
enums:
  - name: Color
    type: ubyte
    values:
      - name: Red
      - name: Green
tables:
  - name: Monster
    fields:
      - { name: name, type: string }
      - { name: hp, type: short }
      - { name: color, type: Color }
      - { name: inventory, type: "[ubyte]" }
  - name: Weapon
    fields:
      - { name: damage, type: int }
`

type testEnv struct {
	dir        string
	configPath string
	schemaPath string
	dataDir    string
}

// newTestEnv writes a schema and a config pointing at it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		schemaPath: filepath.Join(dir, "monster.yaml"),
		dataDir:    filepath.Join(dir, "data"),
	}
	require.NoError(t, os.WriteFile(env.schemaPath, []byte(testSchema), 0600))

	cfg := config.DefaultConfig()
	cfg.Schema = env.schemaPath
	cfg.DataDir = env.dataDir
	cfg.APIKey = "test-key"
	cfg.Logging.Level = "error"
	require.NoError(t, config.SaveConfig(cfg, env.configPath))
	return env
}

// run executes the command line with stdin and returns stdout.
func (env *testEnv) run(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(bytes.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEncodeDecode(t *testing.T) {
	env := newTestEnv(t)

	bin, err := env.run(t, []byte(`{ "name": "orc", "hp": 300, "color": "Green", "inventory": [1, 2, 3] }`), "encode")
	require.NoError(t, err)
	require.NotEmpty(t, bin)

	text, err := env.run(t, []byte(bin), "decode")
	require.NoError(t, err)
	assert.Equal(t, `{ "name": "orc", "hp": 300, "color": "Green", "inventory": [ 1, 2, 3 ] }`+"\n", text)

	text, err = env.run(t, []byte(bin), "decode", "--multi-line")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "{\n  \"name\": \"orc\",\n"), text)

	text, err = env.run(t, []byte(bin), "decode", "--max-vector-size", "2")
	require.NoError(t, err)
	assert.Contains(t, text, `"... 3 elements ..."`)
}

func TestEncodeDecode_Files(t *testing.T) {
	env := newTestEnv(t)
	in := filepath.Join(env.dir, "weapon.json")
	bin := filepath.Join(env.dir, "weapon.bin")
	require.NoError(t, os.WriteFile(in, []byte("{ \"damage\": 12 } // sharp"), 0600))

	_, err := env.run(t, nil, "encode", "-t", "Weapon", "-i", in, "-o", bin)
	assert.ErrorContains(t, err, "tokenize error")

	_, err = env.run(t, nil, "encode", "-t", "Weapon", "--allow-comments", "-i", in, "-o", bin)
	require.NoError(t, err)
	assert.FileExists(t, bin)

	text, err := env.run(t, nil, "decode", "-t", "Weapon", "-i", bin)
	require.NoError(t, err)
	assert.Equal(t, "{ \"damage\": 12 }\n", text)
}

func TestEncode_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, []byte(`{ "mana": 5 }`), "encode")
	assert.ErrorContains(t, err, "unknown field")

	_, err = env.run(t, []byte(`{}`), "encode", "-t", "Dragon")
	assert.ErrorContains(t, err, `unknown table "Dragon"`)

	_, err = env.run(t, []byte{1, 2}, "decode")
	assert.ErrorContains(t, err, "malformed buffer")
}

func TestMissingConfigAndSchema(t *testing.T) {
	dir := t.TempDir()
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(dir, "missing.yaml"), "schema"})
	assert.ErrorContains(t, root.Execute(), "config file does not exist")

	env := newTestEnv(t)
	cfg, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	cfg.Schema = ""
	require.NoError(t, config.SaveConfig(cfg, env.configPath))

	_, err = env.run(t, nil, "schema")
	assert.ErrorContains(t, err, "no schema configured")

	out, err := env.run(t, nil, "--schema", env.schemaPath, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "table Monster (root)")
}

func TestSchemaCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, nil, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "enum Color : ubyte\n  Red = 0\n  Green = 1\n")
	assert.Contains(t, out, "table Monster (root)\n")
	assert.Contains(t, out, "  color: Color\n")
	assert.Contains(t, out, "  inventory: [ubyte]\n")
	assert.Contains(t, out, "table Weapon\n  damage: int\n")
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "flatjson.yaml")
	dataDir := filepath.Join(dir, "data")

	run := func(args ...string) string {
		root := NewRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"--config", configPath, "--data-dir", dataDir, "--schema", "s.yaml", "init"}, args...))
		require.NoError(t, root.Execute())
		return out.String()
	}

	out := run()
	assert.Contains(t, out, "API key: ")
	assert.DirExists(t, dataDir)

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "s.yaml", cfg.Schema)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Len(t, cfg.APIKey, 64)

	assert.Contains(t, run(), "already exists")

	run("--force")
	again, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.NotEqual(t, cfg.APIKey, again.APIKey)
}

type recordingStarter struct {
	config api.ServerConfig
	called bool
}

func (r *recordingStarter) StartServer(ctx context.Context, server *api.Server, cfg api.ServerConfig) error {
	r.called = true
	r.config = cfg
	return nil
}

type recordingServerFactory struct {
	starter *recordingStarter
}

func (f *recordingServerFactory) CreateServerStarter() api.ServerStarter {
	return f.starter
}

func TestServeCommand(t *testing.T) {
	starter := &recordingStarter{}
	c := di.NewContainer()
	c.SetServerFactory(&recordingServerFactory{starter: starter})
	SetContainer(c)
	defer SetContainer(nil)

	env := newTestEnv(t)
	_, err := env.run(t, nil, "serve", "--port", "9123", "--bind", "0.0.0.0")
	require.NoError(t, err)

	assert.True(t, starter.called)
	assert.Equal(t, 9123, starter.config.Port)
	assert.Equal(t, "0.0.0.0", starter.config.Bind)
	assert.Equal(t, "test-key", starter.config.APIKey)
}

func TestServeCommand_Bootstraps(t *testing.T) {
	starter := &recordingStarter{}
	c := di.NewContainer()
	c.SetServerFactory(&recordingServerFactory{starter: starter})
	SetContainer(c)
	defer SetContainer(nil)

	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "monster.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0600))
	configPath := filepath.Join(dir, "new.yaml")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", configPath, "--schema", schemaPath, "--data-dir", filepath.Join(dir, "data"), "serve"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "Wrote new config")
	assert.True(t, config.ConfigExists(configPath))
	assert.Len(t, starter.config.APIKey, 64)
}
