// Package files provides the file helpers command bodies use: creating,
// copying, moving and removing paths, reading and writing text, and finding
// files by glob.
//
// Every helper works through a Workspace, which pairs an afero filesystem
// with a current directory. Relative paths resolve against that directory,
// so tests can run the same commands against an in-memory filesystem.
package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// Workspace is a filesystem with a current working directory.
type Workspace struct {
	fs afero.Fs

	mu  sync.RWMutex
	cwd string
}

// New creates a workspace over fsys with dir as the current directory.
func New(fsys afero.Fs, dir string) *Workspace {
	if dir == "" {
		dir = string(filepath.Separator)
	}
	return &Workspace{fs: fsys, cwd: filepath.Clean(dir)}
}

// OS returns a workspace over the host filesystem rooted at the process's
// working directory.
func OS() (*Workspace, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return New(afero.NewOsFs(), dir), nil
}

type workspaceKey struct{}

// WithContext attaches w to ctx.
func WithContext(ctx context.Context, w *Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey{}, w)
}

// FromContext returns the workspace attached to ctx, or a host workspace
// if there is none.
func FromContext(ctx context.Context) *Workspace {
	if w, ok := ctx.Value(workspaceKey{}).(*Workspace); ok {
		return w
	}
	dir, _ := os.Getwd()
	return New(afero.NewOsFs(), dir)
}

// Fs returns the underlying filesystem.
func (w *Workspace) Fs() afero.Fs {
	return w.fs
}

// Cwd returns the current directory.
func (w *Workspace) Cwd() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cwd
}

// Path resolves p against the current directory.
func (w *Workspace) Path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(w.Cwd(), p)
}

// ChangeDir makes dir the current directory. It must exist.
func (w *Workspace) ChangeDir(dir string) error {
	target := w.Path(dir)
	if !w.IsDir(target) {
		return fmt.Errorf("change dir: not a directory: %s", dir)
	}
	w.mu.Lock()
	w.cwd = target
	w.mu.Unlock()
	return nil
}

// WorkingDir runs fn with dir as the current directory, creating dir if
// needed, and restores the previous directory afterwards.
func (w *Workspace) WorkingDir(dir string, fn func() error) error {
	prev := w.Cwd()
	if err := w.MakeDir(dir); err != nil {
		return err
	}
	if err := w.ChangeDir(dir); err != nil {
		return err
	}
	defer func() {
		w.mu.Lock()
		w.cwd = prev
		w.mu.Unlock()
	}()
	return fn()
}

// Exists reports whether p exists.
func (w *Workspace) Exists(p string) bool {
	ok, _ := afero.Exists(w.fs, w.Path(p))
	return ok
}

// IsDir reports whether p is an existing directory.
func (w *Workspace) IsDir(p string) bool {
	ok, _ := afero.IsDir(w.fs, w.Path(p))
	return ok
}

// MakeDir creates dir and any missing parents.
func (w *Workspace) MakeDir(dir string) error {
	return w.fs.MkdirAll(w.Path(dir), 0o755)
}

// MakeParentDir creates the directory containing p.
func (w *Workspace) MakeParentDir(p string) error {
	return w.fs.MkdirAll(filepath.Dir(w.Path(p)), 0o755)
}

// Touch creates p if it is missing and updates its modification time.
func (w *Workspace) Touch(p string) error {
	target := w.Path(p)
	if w.Exists(target) {
		now := time.Now()
		return w.fs.Chtimes(target, now, now)
	}
	if err := w.MakeParentDir(target); err != nil {
		return err
	}
	f, err := w.fs.Create(target)
	if err != nil {
		return err
	}
	return f.Close()
}

// Read returns the content of p.
func (w *Workspace) Read(p string) (string, error) {
	data, err := afero.ReadFile(w.fs, w.Path(p))
	return string(data), err
}

// Write replaces the content of p, creating parent directories.
func (w *Workspace) Write(p, text string) error {
	if err := w.MakeParentDir(p); err != nil {
		return err
	}
	return afero.WriteFile(w.fs, w.Path(p), []byte(text), 0o644)
}

// Append adds text to the end of p, creating it if needed.
func (w *Workspace) Append(p, text string) error {
	if err := w.MakeParentDir(p); err != nil {
		return err
	}
	f, err := w.fs.OpenFile(w.Path(p), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadLines returns the lines of p without their terminators.
func (w *Workspace) ReadLines(p string) ([]string, error) {
	text, err := w.Read(p)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n"), nil
}

// WriteLines writes lines to p, each followed by a newline.
func (w *Workspace) WriteLines(p string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return w.Write(p, b.String())
}

// Remove deletes each path and everything below it. Missing paths are
// ignored.
func (w *Workspace) Remove(paths ...string) error {
	for _, p := range paths {
		if err := w.fs.RemoveAll(w.Path(p)); err != nil {
			return err
		}
	}
	return nil
}

// destination returns where from lands when copied or moved to to. With
// inside set and to an existing directory, from goes into it.
func (w *Workspace) destination(from, to string, inside bool) string {
	dest := w.Path(to)
	if inside && w.IsDir(dest) {
		dest = filepath.Join(dest, filepath.Base(w.Path(from)))
	}
	return dest
}

// Copy copies a file or directory tree and returns the destination path.
func (w *Workspace) Copy(from, to string, inside bool) (string, error) {
	src := w.Path(from)
	dest := w.destination(from, to, inside)

	info, err := w.fs.Stat(src)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return dest, w.copyFile(src, dest, info.Mode())
	}

	err = afero.Walk(w.fs, src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if fi.IsDir() {
			return w.fs.MkdirAll(target, fi.Mode().Perm()|0o700)
		}
		return w.copyFile(path, target, fi.Mode())
	})
	return dest, err
}

func (w *Workspace) copyFile(src, dest string, mode os.FileMode) error {
	if err := w.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := w.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := w.fs.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Move renames a path, falling back to copy and remove when the rename
// fails, and returns the destination path.
func (w *Workspace) Move(from, to string, inside bool) (string, error) {
	src := w.Path(from)
	dest := w.destination(from, to, inside)
	if err := w.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if err := w.fs.Rename(src, dest); err == nil {
		return dest, nil
	}
	if _, err := w.Copy(src, dest, false); err != nil {
		return "", err
	}
	return dest, w.fs.RemoveAll(src)
}

// List returns the sorted names of dir's entries that match include (all
// entries when empty) and do not match exclude.
func (w *Workspace) List(dir, include, exclude string) ([]string, error) {
	infos, err := afero.ReadDir(w.fs, w.Path(dir))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, fi := range infos {
		if selected(fi.Name(), fi.Name(), []string{include}, []string{exclude}) {
			names = append(names, fi.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Find returns the sorted slash-separated paths, relative to dir, of the
// files below dir that match any include pattern (all files when none) and
// no exclude pattern. Patterns use doublestar syntax; a pattern without a
// slash matches the base name.
func (w *Workspace) Find(dir string, include, exclude []string) ([]string, error) {
	root := w.Path(dir)
	var found []string
	err := afero.Walk(w.fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if selected(rel, fi.Name(), include, exclude) {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(found)
	return found, nil
}

func selected(rel, name string, include, exclude []string) bool {
	included := true
	for _, pattern := range include {
		if pattern == "" {
			continue
		}
		included = false
		if match(pattern, rel, name) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pattern := range exclude {
		if pattern != "" && match(pattern, rel, name) {
			return false
		}
	}
	return true
}

func match(pattern, rel, name string) bool {
	subject := rel
	if !strings.Contains(pattern, "/") {
		subject = name
	}
	ok, _ := doublestar.Match(pattern, subject)
	return ok
}
