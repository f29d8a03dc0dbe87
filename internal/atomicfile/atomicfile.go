// Package atomicfile writes files so that readers never observe a partial
// result: content goes to a temporary file in the target directory, which is
// renamed over the target only after every write succeeded.
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/chriscow/irmcodec/pkg/irm"
)

// Write creates path by calling fill on a temporary file and committing it.
// On any error the temporary file is removed and path is left untouched.
func Write(path string, fill func(f *os.File) error) (err error) {
	const op = "atomicfile.Write"

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return irm.Wrap(irm.ErrIOFailure, op, err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return irm.Wrap(irm.ErrIOFailure, op, err)
	}
	if err := tmp.Close(); err != nil {
		return irm.Wrap(irm.ErrIOFailure, op, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return irm.Wrap(irm.ErrIOFailure, op, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return irm.Wrap(irm.ErrIOFailure, op, err)
	}
	return nil
}

// WriteBytes atomically replaces path with data.
func WriteBytes(path string, data []byte) error {
	return Write(path, func(f *os.File) error {
		if _, err := f.Write(data); err != nil {
			return irm.Wrap(irm.ErrIOFailure, "atomicfile.WriteBytes", err)
		}
		return nil
	})
}
