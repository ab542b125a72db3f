// Package archive packs a submission directory into a zip file.
package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdmetadl/cdscore/internal/models"
	"github.com/cdmetadl/cdscore/internal/workspace"
	"github.com/klauspost/compress/zip"
)

// ZipDir writes every regular file below baseDir into a deflate compressed
// archive at archivePath. Entry names are relative to baseDir and use forward
// slashes. Files ending in ".zip" are skipped, which keeps a previous
// submission (or the archive itself) out of the result. It returns the
// number of files written.
func ZipDir(archivePath, baseDir string) (int, error) {
	if err := workspace.ExistDir(baseDir); err != nil {
		return 0, err
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return 0, &models.ResourceError{Op: "create archive", Path: archivePath, Err: err}
	}
	zw := zip.NewWriter(out)

	count := 0
	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasSuffix(d.Name(), ".zip") {
			return nil
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}
		if err := addFile(zw, path, filepath.ToSlash(rel)); err != nil {
			return err
		}
		count++
		return nil
	})
	if walkErr != nil {
		zw.Close()  //nolint:errcheck
		out.Close() //nolint:errcheck
		return count, &models.ResourceError{Op: "write archive", Path: archivePath, Err: walkErr}
	}
	if err := zw.Close(); err != nil {
		out.Close() //nolint:errcheck
		return count, &models.ResourceError{Op: "write archive", Path: archivePath, Err: err}
	}
	if err := out.Close(); err != nil {
		return count, &models.ResourceError{Op: "write archive", Path: archivePath, Err: err}
	}
	return count, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}
