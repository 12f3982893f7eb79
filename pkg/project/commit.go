package project

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Commit writes files under dir. The files are first written to a staging
// directory next to dir which is then renamed into place, so dir either
// holds the complete project or is left untouched. An existing dir is only
// replaced when force is set.
func Commit(files Files, dir string, force bool) error {
	_, err := commit(files, dir, force, false)
	return err
}

// CommitArchive is Commit that also packs files into dir.zip. The archive
// is staged with the directory: either both land or neither does. The
// archive path is returned.
func CommitArchive(files Files, dir string, force bool) (string, error) {
	return commit(files, dir, force, true)
}

func commit(files Files, dir string, force, archive bool) (zipPath string, err error) {
	dir = filepath.Clean(dir)
	for _, f := range files {
		if err := validPath(f.Path); err != nil {
			return "", err
		}
	}

	exists := false
	if _, statErr := os.Stat(dir); statErr == nil {
		if !force {
			return "", fmt.Errorf("%w: %s", ErrOutputExists, dir)
		}
		exists = true
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to stat output directory: %w", statErr)
	}

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create parent directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(staging)
		}
	}()
	if err := os.Chmod(staging, 0o755); err != nil {
		return "", fmt.Errorf("failed to set staging permissions: %w", err)
	}

	for _, f := range files {
		target := filepath.Join(staging, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(target, f.Data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}

	stagedZip := staging + ".zip"
	if archive {
		defer func() {
			if err != nil {
				os.Remove(stagedZip)
			}
		}()
		if err := writeZip(stagedZip, files); err != nil {
			return "", err
		}
	}

	old := staging + ".old"
	if exists {
		if err := os.Rename(dir, old); err != nil {
			return "", fmt.Errorf("failed to move existing output aside: %w", err)
		}
	}
	if err := os.Rename(staging, dir); err != nil {
		if exists {
			os.Rename(old, dir)
		}
		return "", fmt.Errorf("failed to commit output: %w", err)
	}

	if archive {
		zipPath = dir + ".zip"
		if err := os.Rename(stagedZip, zipPath); err != nil {
			// Put the previous state back. The deferred cleanup removes staging.
			os.Rename(dir, staging)
			if exists {
				os.Rename(old, dir)
			}
			return "", fmt.Errorf("failed to commit archive: %w", err)
		}
	}

	if exists {
		if err := os.RemoveAll(old); err != nil {
			return zipPath, fmt.Errorf("failed to remove previous output: %w", err)
		}
	}
	return zipPath, nil
}

// writeZip packs files into a new archive at path. Entries are in lexical
// path order and carry no timestamps, so equal inputs give equal archives.
func writeZip(path string, files Files) (err error) {
	sorted := make(Files, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(out)
	for _, f := range sorted {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   f.Path,
			Method: zip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", f.Path, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return fmt.Errorf("failed to archive %s: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// isStaging reports whether name is a leftover staging directory.
func isStaging(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".staging-")
}
