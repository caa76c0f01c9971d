package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axsh/plano/files"
)

const sampleFile = `
commands:
  - name: hello
    params:
      - name: name
        default: world
    run: echo "hello $PLANO_NAME"
`

func workspace(t *testing.T) *files.Workspace {
	t.Helper()
	return files.New(afero.NewOsFs(), t.TempDir())
}

func TestRunFindsPlanofile(t *testing.T) {
	w := workspace(t)
	require.NoError(t, w.Write(".plano.yml", sampleFile))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), w, []string{"hello", "--name", "gopher"}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "hello gopher\n", stdout.String())
	assert.Contains(t, stderr.String(), "--> hello (name=\"gopher\")")
}

func TestRunFileFlag(t *testing.T) {
	w := workspace(t)
	require.NoError(t, w.Write("tasks/custom.yaml", sampleFile))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), w, []string{"-f", w.Path("tasks/custom.yaml"), "--quiet", "hello"}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "hello world\n", stdout.String())
	assert.NotContains(t, stderr.String(), "-->")
}

func TestRunFileFromEnvironment(t *testing.T) {
	w := workspace(t)
	require.NoError(t, w.Write("env.yaml", sampleFile))
	t.Setenv("PLANO_FILE", w.Path("env.yaml"))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), w, []string{"hello"}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "hello world\n", stdout.String())
}

func TestRunMissingPlanofile(t *testing.T) {
	w := workspace(t)
	t.Setenv("PLANO_FILE", "")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), w, []string{"hello"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "no planofile found")
}

func TestRunInvalidPlanofile(t *testing.T) {
	w := workspace(t)
	require.NoError(t, w.Write("Planofile", "commands:\n  - name: a\n  - name: a\n"))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), w, []string{"a"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "defined twice")
}

func TestFileOption(t *testing.T) {
	tests := []struct {
		argv []string
		file string
		rest []string
	}{
		{[]string{"build"}, "", []string{"build"}},
		{[]string{"-f", "x.yaml", "build", "-f"}, "x.yaml", []string{"build", "-f"}},
		{[]string{"--verbose", "--file=x.yaml", "build"}, "x.yaml", []string{"--verbose=true", "build"}},
		{[]string{"--file", "x.yaml", "--", "build"}, "x.yaml", []string{"build"}},
		{[]string{"--file", "x.yaml", "--jobs", "2"}, "x.yaml", []string{"--jobs", "2"}},
	}
	for _, tt := range tests {
		flags, rest, err := fileOption(tt.argv)
		require.NoError(t, err, tt.argv)
		file, err := flags.GetString("file")
		require.NoError(t, err)
		assert.Equal(t, tt.file, file, tt.argv)
		assert.Equal(t, tt.rest, rest, tt.argv)
	}
}

func TestFileOptionMissingValue(t *testing.T) {
	_, _, err := fileOption([]string{"--file"})
	assert.Error(t, err)
}
