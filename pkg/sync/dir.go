package sync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/syncbox/pkg/dispatch"
	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/wire"
)

// Dir is a synced directory. All paths passed to its methods are relative to
// the directory, and are validated with CleanPath.
type Dir struct {
	root string
	fs   afero.Fs
}

// NewDir returns the directory at `root` within `fs`. Access is confined to
// `root` with an afero.BasePathFs.
func NewDir(fs afero.Fs, root string) *Dir {
	return &Dir{
		root: root,
		fs:   afero.NewBasePathFs(fs, root),
	}
}

// Root returns the directory's path.
func (d *Dir) Root() string {
	return d.root
}

// Create makes the directory if it doesn't exist.
func (d *Dir) Create() error {
	return d.fs.MkdirAll("/", 0755)
}

// Stat returns the record for `relPath`. It returns errors.FileNotFound if
// the file doesn't exist.
func (d *Dir) Stat(relPath string) (FileRecord, error) {
	cleaned, err := CleanPath(relPath)
	if err != nil {
		return FileRecord{}, err
	}

	fi, err := d.fs.Stat(cleaned)
	if err != nil {
		if os.IsNotExist(err) {
			return FileRecord{}, errors.FileNotFound{Path: cleaned}
		}
		return FileRecord{}, errors.WithContext(err, "stat")
	}
	return FileRecord{
		Path:    cleaned,
		Size:    fi.Size(),
		ModTime: ToMillis(fi.ModTime()),
	}, nil
}

// ModTime returns the modification time of `relPath`, or 0 if it doesn't
// exist.
func (d *Dir) ModTime(relPath string) (int64, error) {
	record, err := d.Stat(relPath)
	if err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return 0, nil
		}
		return 0, err
	}
	return record.ModTime, nil
}

// IsStale applies the reconciliation rule: it returns whether the local copy
// of `relPath` is older than `advertised`.
func (d *Dir) IsStale(relPath string, advertised int64) (bool, error) {
	local, err := d.ModTime(relPath)
	if err != nil {
		return false, err
	}
	return NeedsUpdate(local, advertised), nil
}

// List returns every regular, non-hidden file in the directory, recursively.
func (d *Dir) List() ([]FileRecord, error) {
	var records []FileRecord
	err := afero.Walk(d.fs, "/", func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		relPath, err := filepath.Rel("/", path)
		if err != nil {
			return errors.WithContext(err, "normalized path")
		}
		relPath = filepath.ToSlash(relPath)

		if relPath == "." {
			return nil
		}

		if IsHidden(relPath) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !fi.Mode().IsRegular() {
			return nil
		}

		records = append(records, FileRecord{
			Path:    relPath,
			Size:    fi.Size(),
			ModTime: ToMillis(fi.ModTime()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// tempPattern names the files that Receive streams into. They're hidden so
// that neither List nor the watcher ever reports them.
const tempPattern = ".syncbox-receive-*"

// Receive replaces `relPath` with exactly `size` bytes read from `content`,
// and then sets its modification time to `modTime`. The bytes are streamed
// into a temporary file that's renamed over `relPath` only once it's
// complete, so a failed transfer leaves the previous file untouched.
func (d *Dir) Receive(relPath string, modTime, size int64, content io.Reader) error {
	cleaned, err := CleanPath(relPath)
	if err != nil {
		return err
	}

	parent := filepath.Dir(cleaned)
	parentExists, err := afero.DirExists(d.fs, parent)
	if err != nil {
		return errors.WithContext(err, "check if parent exists")
	}
	if !parentExists {
		if err := d.fs.MkdirAll(parent, 0755); err != nil {
			return errors.WithContext(err, "make parent")
		}
	}

	f, err := afero.TempFile(d.fs, parent, tempPattern)
	if err != nil {
		return errors.WithContext(err, "create temp file")
	}
	tempPath := f.Name()

	renamed := false
	defer func() {
		if renamed {
			return
		}
		if err := d.fs.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", tempPath).Warn("Failed to remove temp file")
		}
	}()

	n, err := io.CopyN(f, content, size)
	closeErr := f.Close()
	if err != nil {
		if err == io.EOF {
			err = errors.ErrShortContent
		}
		return errors.WithContext(err, fmt.Sprintf("write (%d of %d bytes)", n, size))
	}
	if closeErr != nil {
		return errors.WithContext(closeErr, "close")
	}

	if err := d.fs.Chmod(tempPath, 0644); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	// Change the modification time before the rename so that the file is
	// never visible with the wrong timestamp.
	mtime := FromMillis(modTime)
	if err := d.fs.Chtimes(tempPath, time.Now(), mtime); err != nil {
		return errors.WithContext(err, "set file modtime")
	}

	if err := d.fs.Rename(tempPath, cleaned); err != nil {
		return errors.WithContext(err, "rename into place")
	}
	renamed = true
	return nil
}

// Remove deletes `relPath`. It returns whether a file was actually removed.
func (d *Dir) Remove(relPath string) (bool, error) {
	cleaned, err := CleanPath(relPath)
	if err != nil {
		return false, err
	}

	if err := d.fs.Remove(cleaned); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WithContext(err, "remove")
	}
	return true, nil
}

// Open returns the record of `relPath` along with an open handle to its
// content.
func (d *Dir) Open(relPath string) (FileRecord, afero.File, error) {
	record, err := d.Stat(relPath)
	if err != nil {
		return FileRecord{}, nil, err
	}

	f, err := d.fs.Open(record.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileRecord{}, nil, errors.FileNotFound{Path: record.Path}
		}
		return FileRecord{}, nil, errors.WithContext(err, "open")
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return FileRecord{}, nil, errors.WithContext(err, "stat")
	}
	if fi.IsDir() {
		f.Close()
		return FileRecord{}, nil, errors.Errorf("%q is a directory", record.Path)
	}

	// Use the size and modtime of the handle we'll actually read from.
	record.Size = fi.Size()
	record.ModTime = ToMillis(fi.ModTime())
	return record, f, nil
}

// SendFileMessage returns a message that pushes the current content of
// `relPath`.
func (d *Dir) SendFileMessage(relPath string) dispatch.Message {
	return func() (wire.Command, error) {
		record, f, err := d.Open(relPath)
		if err != nil {
			return wire.Command{}, err
		}
		return wire.SendFile(record.Path, record.ModTime, record.Size, f), nil
	}
}

// SendToUserMessage returns a message that pushes the current content of
// `relPath` into `login`'s directory.
func (d *Dir) SendToUserMessage(login, relPath string) dispatch.Message {
	return func() (wire.Command, error) {
		record, f, err := d.Open(relPath)
		if err != nil {
			return wire.Command{}, err
		}
		return wire.SendToUser(login, record.Path, record.ModTime, record.Size, f), nil
	}
}

// CheckFileMessage returns a message that advertises `record`.
func CheckFileMessage(record FileRecord) dispatch.Message {
	return dispatch.Fixed(wire.CheckFile(record.Path, record.ModTime))
}
