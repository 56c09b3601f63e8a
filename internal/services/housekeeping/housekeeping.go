// Package housekeeping cleans generated files and lists the largest outputs
package housekeeping

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perr "peppolsync/internal/platform/errors"

	"github.com/c2h5oh/datasize"
	"github.com/hashicorp/go-multierror"
)

// FileSize is one entry of the largest-files listing
type FileSize struct {
	Path  string
	Bytes int64
}

// Human returns the size in the short human form ("1.9MB")
func (f FileSize) Human() string { return datasize.ByteSize(f.Bytes).HR() }

// CleanExtracts removes every *.xml file under root, at any depth
// A missing root is not an error. Removal failures are collected and returned together
func CleanExtracts(root string) (int, error) {
	deleted := 0
	var errs *multierror.Error
	err := walkXML(root, func(path string, _ fs.FileInfo) {
		if err := os.Remove(path); err != nil {
			errs = multierror.Append(errs, err)
			return
		}
		deleted++
	})
	if err != nil {
		return deleted, err
	}
	if err := errs.ErrorOrNil(); err != nil {
		return deleted, perr.Filesystemf(err, "housekeeping: clean %s", root)
	}
	return deleted, nil
}

// CleanTmp removes the regular files directly inside dir; subdirectories are kept
func CleanTmp(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, perr.Filesystemf(err, "housekeeping: read %s", dir)
	}
	removed := 0
	var errs *multierror.Error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		removed++
	}
	if err := errs.ErrorOrNil(); err != nil {
		return removed, perr.Filesystemf(err, "housekeeping: clean %s", dir)
	}
	return removed, nil
}

// Largest returns the n largest *.xml files under root, largest first
// Ties are ordered by path. n <= 0 returns every file
func Largest(root string, n int) ([]FileSize, error) {
	var out []FileSize
	err := walkXML(root, func(path string, fi fs.FileInfo) {
		out = append(out, FileSize{Path: path, Bytes: fi.Size()})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].Path < out[j].Path
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func walkXML(root string, fn func(string, fs.FileInfo)) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		fn(path, fi)
		return nil
	})
	if err != nil {
		return perr.Filesystemf(err, "housekeeping: walk %s", root)
	}
	return nil
}
