// Package planofile loads command definitions from a YAML or JSONC file
// and registers them as plano commands whose bodies are shell scripts.
package planofile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/axsh/plano/files"
)

// SearchNames are the file names Find looks for, in order.
var SearchNames = []string{".plano.yaml", ".plano.yml", "Planofile", ".plano.jsonc"}

// ErrNotFound is returned by Find when no planofile exists.
var ErrNotFound = errors.New("no planofile found")

// File is a parsed planofile.
type File struct {
	// Path is where the file was read from.
	Path string `yaml:"-" json:"-"`

	Default  string            `yaml:"default" json:"default"`
	EnvFile  string            `yaml:"env_file" json:"env_file"`
	Groups   map[string]string `yaml:"groups" json:"groups"`
	Commands []CommandDef      `yaml:"commands" json:"commands"`
}

// CommandDef declares one command.
type CommandDef struct {
	Name        string     `yaml:"name" json:"name"`
	Help        string     `yaml:"help" json:"help"`
	Description string     `yaml:"description" json:"description"`
	Params      []ParamDef `yaml:"params" json:"params"`
	Requires    []string   `yaml:"requires" json:"requires"`
	Run         string     `yaml:"run" json:"run"`
	Hidden      bool       `yaml:"hidden" json:"hidden"`
}

// ParamDef declares one parameter. Its kind follows from its default as
// for plano.Opt; without a default it is a required positional.
type ParamDef struct {
	Name       string `yaml:"name" json:"name"`
	Default    any    `yaml:"default" json:"default"`
	Help       string `yaml:"help" json:"help"`
	Short      string `yaml:"short" json:"short"`
	Positional bool   `yaml:"positional" json:"positional"`
	Variadic   bool   `yaml:"variadic" json:"variadic"`
	// Type is one of string, int, float, bool or list. It overrides the
	// type implied by Default.
	Type string `yaml:"type" json:"type"`
}

// Find returns the path of the first planofile in the workspace's current
// directory.
func Find(w *files.Workspace) (string, error) {
	for _, name := range SearchNames {
		if p := w.Path(name); w.Exists(p) && !w.IsDir(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrNotFound, w.Cwd(), strings.Join(SearchNames, ", "))
}

// Load reads and parses the planofile at path.
func Load(w *files.Workspace, path string) (*File, error) {
	text, err := w.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse([]byte(text), path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = w.Path(path)
	return f, nil
}

// Parse decodes data. Files ending in .jsonc or .json are JSON with
// comments; anything else is YAML.
func Parse(data []byte, name string) (*File, error) {
	var f File
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jsonc", ".json":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.UseNumber()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parsing planofile: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing planofile: %w", err)
		}
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	seen := make(map[string]bool)
	for i, c := range f.Commands {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("command %d has no name", i+1)
		}
		if seen[c.Name] {
			return fmt.Errorf("command %q defined twice", c.Name)
		}
		seen[c.Name] = true
		for j, p := range c.Params {
			if p.Name == "" {
				return fmt.Errorf("command %q: parameter %d has no name", c.Name, j+1)
			}
		}
	}
	return nil
}
