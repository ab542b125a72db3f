// Package workspace holds the directory helpers used around a scoring run:
// checking inputs, preparing output directories and locating files.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdmetadl/cdscore/internal/models"
)

var (
	// ErrNotDir is returned by ExistDir when the path is missing or not a directory.
	ErrNotDir = errors.New("directory not found")
	// ErrOutputOverlap is returned by CheckOutputDir when recreating the
	// output directory would delete an input.
	ErrOutputOverlap = errors.New("output directory contains an input directory")
)

// ExistDir reports an error unless dir exists and is a directory.
func ExistDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.ResourceError{Op: "check directory", Path: dir, Err: ErrNotDir}
		}
		return &models.ResourceError{Op: "check directory", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return &models.ResourceError{Op: "check directory", Path: dir, Err: ErrNotDir}
	}
	return nil
}

// RecreateDir creates dir, deleting it and everything below it first when it
// already exists.
func RecreateDir(dir string) error {
	if _, err := os.Lstat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return &models.ResourceError{Op: "delete directory", Path: dir, Err: err}
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &models.ResourceError{Op: "create directory", Path: dir, Err: err}
	}
	return nil
}

// CheckOutputDir fails with ErrOutputOverlap when output is the same as, or
// an ancestor of, any of inputs. Empty inputs are ignored.
func CheckOutputDir(output string, inputs ...string) error {
	out, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("resolving output directory %s: %w", output, err)
	}
	for _, in := range inputs {
		if in == "" {
			continue
		}
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", in, err)
		}
		if contains(out, abs) {
			return fmt.Errorf("%w: %s would delete %s", ErrOutputOverlap, out, abs)
		}
	}
	return nil
}

// contains reports whether dir is parent or equal to path. Both are absolute.
func contains(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// MoveDir renames source to dest. A missing source is not an error.
func MoveDir(source, dest string) error {
	if _, err := os.Lstat(source); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.Rename(source, dest); err != nil {
		return &models.ResourceError{Op: "move directory", Path: source, Err: fmt.Errorf("to %s: %w", dest, err)}
	}
	return nil
}

// ResolvePath resolves path against baseDir unless it is absolute or empty.
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ListTree returns the paths below dir, relative to it, down to maxDepth
// levels. Paths use forward slashes and directories end with "/".
func ListTree(dir string, maxDepth int) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/") + 1
		if d.IsDir() {
			out = append(out, rel+"/")
			if depth >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, &models.ResourceError{Op: "list directory", Path: dir, Err: err}
	}
	return out, nil
}
