package planofile

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axsh/plano"
	"github.com/axsh/plano/files"
)

const sample = `
default: greeting
env_file: .env
groups:
  db: Database tasks
commands:
  - name: greeting
    help: Print a greeting
    params:
      - name: message
        default: Howdy
        short: m
    run: echo "$PLANO_MESSAGE"
  - name: db.migrate
    params:
      - name: steps
        default: 1
      - name: dry_run
        default: false
    run: echo "migrate $PLANO_STEPS $PLANO_DRY_RUN $REGION"
  - name: clean
    run: echo cleaning
  - name: build
    params:
      - name: target
    requires: [clean]
    run: |
      echo "building $PLANO_TARGET"
      plano greeting --message nested
  - name: broken
    run: exit 7
  - name: outer
    run: plano broken
  - name: forgiving
    run: |
      plano broken || echo recovered
`

func TestParseYAML(t *testing.T) {
	f, err := Parse([]byte(sample), ".plano.yaml")
	require.NoError(t, err)

	assert.Equal(t, "greeting", f.Default)
	assert.Equal(t, "Database tasks", f.Groups["db"])
	require.Len(t, f.Commands, 7)
	assert.Equal(t, "db.migrate", f.Commands[1].Name)
	assert.Equal(t, []string{"clean"}, f.Commands[3].Requires)
}

func TestParseJSONC(t *testing.T) {
	data := []byte(`{
		// comments and trailing commas are allowed
		"commands": [
			{"name": "serve", "params": [
				{"name": "port", "default": 8080},
				{"name": "ratio", "default": 0.5},
				{"name": "tags", "default": ["a", "b"],},
			]},
		],
	}`)
	f, err := Parse(data, "tasks.jsonc")
	require.NoError(t, err)
	require.Len(t, f.Commands, 1)

	want := []struct {
		typ plano.ValueType
		def any
	}{
		{plano.Int, 8080},
		{plano.Float, 0.5},
		{plano.List, []string{"a", "b"}},
	}
	for i, p := range f.Commands[0].Params {
		spec, err := p.Spec()
		require.NoError(t, err)
		assert.Equal(t, want[i].typ, spec.Type, p.Name)
		assert.Equal(t, want[i].def, spec.Default, p.Name)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad yaml", "commands: [", "parsing planofile"},
		{"missing name", "commands:\n  - run: echo\n", "has no name"},
		{"duplicate", "commands:\n  - name: a\n  - name: a\n", "defined twice"},
		{"param without name", "commands:\n  - name: a\n    params:\n      - default: 1\n", "parameter 1 has no name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "Planofile")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParamSpec(t *testing.T) {
	tests := []struct {
		name string
		def  ParamDef
		kind plano.Kind
		typ  plano.ValueType
		req  bool
	}{
		{"no default", ParamDef{Name: "target"}, plano.PositionalKind, plano.String, true},
		{"typed positional", ParamDef{Name: "count", Type: "int"}, plano.PositionalKind, plano.Int, true},
		{"optional positional", ParamDef{Name: "mode", Default: "fast", Positional: true}, plano.PositionalKind, plano.String, false},
		{"bool default", ParamDef{Name: "force", Default: false}, plano.FlagKind, plano.Bool, false},
		{"int default", ParamDef{Name: "jobs", Default: 4}, plano.OptionKind, plano.Int, false},
		{"type override", ParamDef{Name: "ratio", Default: 1, Type: "float"}, plano.OptionKind, plano.Float, false},
		{"variadic", ParamDef{Name: "files", Variadic: true}, plano.PositionalKind, plano.List, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := tt.def.Spec()
			require.NoError(t, err)
			assert.Equal(t, tt.kind, spec.Kind)
			assert.Equal(t, tt.typ, spec.Type)
			assert.Equal(t, tt.req, spec.Required)
		})
	}

	_, err := ParamDef{Name: "x", Type: "complex"}.Spec()
	assert.ErrorContains(t, err, "unknown type")
	_, err = ParamDef{Name: "x", Default: "abc", Type: "int"}.Spec()
	assert.ErrorContains(t, err, "not an int")
	_, err = ParamDef{Name: "x", Type: "list", Positional: true}.Spec()
	assert.ErrorContains(t, err, "variadic")
}

func TestFind(t *testing.T) {
	w := files.New(afero.NewMemMapFs(), "/proj")
	require.NoError(t, w.MakeDir("."))

	_, err := Find(w)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Write(".plano.jsonc", "{}"))
	require.NoError(t, w.Write("Planofile", ""))
	path, err := Find(w)
	require.NoError(t, err)
	assert.Equal(t, "/proj/Planofile", path)

	require.NoError(t, w.Write(".plano.yaml", ""))
	path, err = Find(w)
	require.NoError(t, err)
	assert.Equal(t, "/proj/.plano.yaml", path)
}

// runSample registers sample in a temporary directory and runs argv.
func runSample(t *testing.T, argv ...string) (int, string, string) {
	t.Helper()
	w := files.New(afero.NewOsFs(), t.TempDir())
	require.NoError(t, w.Write(".plano.yaml", sample))
	require.NoError(t, w.Write(".env", "REGION=eu-west\n"))

	f, err := Load(w, ".plano.yaml")
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	app := plano.New(plano.Config{Name: "plano"},
		plano.WithDefault(f.Default),
		plano.WithDispatcherOptions(plano.WithOutput(&stdout, &stderr)),
	)
	require.NoError(t, Register(app.Registry(), f, w))

	code := app.RunContext(context.Background(), argv)
	return code, stdout.String(), stderr.String()
}

func TestRegisteredCommands(t *testing.T) {
	tests := []struct {
		name   string
		argv   []string
		code   int
		stdout string
	}{
		{"default command", nil, 0, "Howdy\n"},
		{"short option", []string{"greeting", "-m", "Hi"}, 0, "Hi\n"},
		{"typed options and env file", []string{"db", "migrate", "--steps", "3", "--dry-run"}, 0, "migrate 3 true eu-west\n"},
		{"requires and nested call", []string{"build", "app"}, 0, "cleaning\nbuilding app\nnested\n"},
		{"missing positional", []string{"build"}, 2, ""},
		{"handled nested failure", []string{"forgiving"}, 0, "recovered\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := runSample(t, tt.argv...)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.stdout, stdout)
		})
	}
}

func TestNestedTrace(t *testing.T) {
	code, _, stderr := runSample(t, "build", "app")
	require.Equal(t, 0, code)

	assert.Contains(t, stderr, "--> build (\"app\")\n")
	assert.Contains(t, stderr, "  --> clean\n  <-- clean\n")
	assert.Contains(t, stderr, "  --> greeting (message=\"nested\")\n")
	assert.Contains(t, stderr, "<-- build\nOK (")
}

func TestBodyFailure(t *testing.T) {
	code, _, stderr := runSample(t, "broken")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "FAILED (")
	assert.Contains(t, stderr, "exit status 7")

	code, _, stderr = runSample(t, "outer")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "  <-- broken FAILED\n")
	assert.Contains(t, stderr, "<-- outer FAILED\n")
	assert.Contains(t, stderr, "exit status 7")
}

func TestGroupHelp(t *testing.T) {
	code, stdout, _ := runSample(t, "db", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Database tasks")
	assert.Contains(t, stdout, "migrate")
}

func TestRegisterMissingEnvFile(t *testing.T) {
	w := files.New(afero.NewMemMapFs(), "/proj")
	f := &File{EnvFile: "missing.env"}
	err := Register(plano.NewRegistry(), f, w)
	assert.ErrorContains(t, err, "env_file")
}
