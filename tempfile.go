package webidkit

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

// TempFile is an exclusively owned temporary file. Release must be called on
// every exit path; it is safe to call more than once.
type TempFile struct {
	Path string

	file       *os.File
	once       sync.Once
	releaseErr error
}

// AcquireTempFile creates a uniquely named file in dir (os.TempDir when
// empty) named prefix + random + suffix, readable only by the owner.
func AcquireTempFile(dir, prefix, suffix string) (*TempFile, error) {
	f, err := os.CreateTemp(dir, prefix+"*"+suffix)
	if err != nil {
		return nil, &ResourceError{Op: "creating", Err: err}
	}
	return &TempFile{Path: f.Name(), file: f}, nil
}

// WriteAndClose writes data and closes the file, so that the content is
// complete before another process opens the path.
func (t *TempFile) WriteAndClose(data []byte) error {
	if t.file == nil {
		return &ResourceError{Op: "writing", Path: t.Path, Err: fs.ErrClosed}
	}
	f := t.file
	t.file = nil
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return &ResourceError{Op: "writing", Path: t.Path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ResourceError{Op: "closing", Path: t.Path, Err: err}
	}
	return nil
}

// Release closes the file if still open and deletes it. A file that is
// already gone is not an error. Only the first call does any work; later
// calls return the first call's result.
func (t *TempFile) Release() error {
	t.once.Do(func() {
		if t.file != nil {
			_ = t.file.Close()
			t.file = nil
		}
		if err := os.Remove(t.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.releaseErr = &ResourceError{Op: "deleting", Path: t.Path, Err: err}
		}
	})
	return t.releaseErr
}
