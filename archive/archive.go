// Package archive makes and extracts .tar.gz archives whose single
// top-level entry is a directory.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"

	"github.com/axsh/plano/files"
)

// Ext is the extension of the archives this package writes.
const Ext = ".tar.gz"

// Make archives inputDir into outputFile. The archive holds one top-level
// directory named after inputDir.
func Make(w *files.Workspace, inputDir, outputFile string) error {
	src := w.Path(inputDir)
	if !w.IsDir(src) {
		return fmt.Errorf("make archive: not a directory: %s", inputDir)
	}
	return write(w, src, filepath.Base(src), w.Path(outputFile))
}

func write(w *files.Workspace, src, top, output string) (err error) {
	fsys := w.Fs()
	if err := w.MakeParentDir(output); err != nil {
		return err
	}
	f, err := fsys.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = afero.Walk(fsys, src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(top, rel))
		if fi.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		in, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(tw, in)
		return err
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// Extract unpacks inputFile into outputDir and returns the paths of the
// top-level entries it created. Entries that would land outside outputDir
// are rejected.
func Extract(w *files.Workspace, inputFile, outputDir string) ([]string, error) {
	fsys := w.Fs()
	dest := w.Path(outputDir)
	if err := fsys.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}

	f, err := fsys.Open(w.Path(inputFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", inputFile, err)
	}
	defer gz.Close()

	var tops []string
	seen := make(map[string]bool)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", inputFile, err)
		}

		name := filepath.FromSlash(hdr.Name)
		target := filepath.Join(dest, name)
		if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
			return nil, fmt.Errorf("extract %s: entry %q escapes %s", inputFile, hdr.Name, outputDir)
		}
		if top := strings.SplitN(filepath.ToSlash(filepath.Clean(name)), "/", 2)[0]; !seen[top] {
			seen[top] = true
			tops = append(tops, filepath.Join(dest, top))
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fsys.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			out, err := fsys.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return nil, err
			}
			if err := out.Close(); err != nil {
				return nil, err
			}
		}
	}
	return tops, nil
}

// Rename rewrites inputFile so that its top-level directory is newStem,
// saving it as newStem+Ext beside the input, and returns the new path.
// The input file is removed when the name changes.
func Rename(w *files.Workspace, inputFile, newStem string) (string, error) {
	input := w.Path(inputFile)
	output := filepath.Join(filepath.Dir(input), newStem+Ext)

	tmp, err := afero.TempDir(w.Fs(), "", "plano-archive")
	if err != nil {
		return "", err
	}
	defer w.Fs().RemoveAll(tmp)

	tops, err := Extract(w, input, tmp)
	if err != nil {
		return "", err
	}
	if len(tops) != 1 || !w.IsDir(tops[0]) {
		return "", fmt.Errorf("rename %s: archive must hold exactly one top-level directory", inputFile)
	}
	if err := write(w, tops[0], newStem, output); err != nil {
		return "", err
	}
	if output != input {
		if err := w.Remove(input); err != nil {
			return "", err
		}
	}
	return output, nil
}
