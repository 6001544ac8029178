package filesvc

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/user"
)

// DiskStorage keeps uploaded files in a single local directory.
type DiskStorage struct {
	dir string
}

var _ user.PictureStorage = (*DiskStorage)(nil)

func NewDiskStorage(dir string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload directory")
	}
	return &DiskStorage{dir: dir}, nil
}

func (s *DiskStorage) Dir() string { return s.dir }

func (s *DiskStorage) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", errors.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Save writes r to the named file. A partially written file is removed.
// Losing the upload directory is a shutdown error: a restart recreates it.
func (s *DiskStorage) Save(name string, r io.Reader) (err error) {
	fp, err := s.path(name)
	if err != nil {
		return err
	}
	if _, err = os.Stat(s.dir); os.IsNotExist(err) {
		return core.NewShutdownError("upload directory " + s.dir + " is gone")
	}

	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "closing file")
		}
		if err != nil {
			_ = os.Remove(fp)
		}
	}()

	if _, err = io.Copy(f, r); err != nil {
		return errors.Wrap(err, "writing file")
	}
	return nil
}

// Remove deletes the named file; a missing file is not an error.
func (s *DiskStorage) Remove(name string) error {
	fp, err := s.path(name)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
