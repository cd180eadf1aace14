package controller

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// SourceFile is a selected archive as the controller sees it: a display name
// plus one-shot access to the raw bytes. Disk files, handoff files, and test
// fixtures all fit behind it.
type SourceFile interface {
	Name() string
	Read() ([]byte, error)
}

// DiskFile reads an archive from the local filesystem.
type DiskFile struct {
	// Path is the OS path to the archive.
	Path string
	// DisplayName overrides the basename when set.
	DisplayName string
}

func (f *DiskFile) Name() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return baseName(f.Path)
}

func (f *DiskFile) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, classifyReadErr(f.Path, err)
	}
	return data, nil
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}

// MemoryFile is an in-memory SourceFile, used for handoff files and tests.
type MemoryFile struct {
	FileName string
	Data     []byte
	// Err, when set, is returned by Read instead of the data.
	Err error
}

func (f *MemoryFile) Name() string { return f.FileName }

func (f *MemoryFile) Read() ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Data, nil
}

// Sentinel errors for source read classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrFileLocked indicates the file is held open by another process.
	ErrFileLocked = errors.New("file locked")

	// ErrAccessDenied indicates a permission or sandbox denial.
	ErrAccessDenied = errors.New("access denied")

	// ErrFileNotFound indicates the file vanished between selection and read.
	ErrFileNotFound = errors.New("file not found")

	// ErrReadFailed covers all other read failures.
	ErrReadFailed = errors.New("read failed")
)

// ReadError wraps a source read failure with a classification sentinel.
// It preserves the original error in the chain for inspection via errors.As.
type ReadError struct {
	// Kind is the sentinel error for classification (e.g., ErrFileLocked).
	Kind error
	// Path is the file involved.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v: %v", e.Path, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *ReadError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// classifyReadErr maps an OS-level read failure to a classified ReadError.
func classifyReadErr(path string, err error) *ReadError {
	kind := ErrReadFailed
	switch {
	case os.IsNotExist(err):
		kind = ErrFileNotFound
	case os.IsPermission(err):
		kind = ErrAccessDenied
	case errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY):
		kind = ErrFileLocked
	}
	return &ReadError{Kind: kind, Path: path, Err: err}
}

// readErrMessage renders cause-specific guidance for a classified read error,
// never the raw OS error text.
func readErrMessage(err error) string {
	switch {
	case errors.Is(err, ErrFileLocked):
		return "The file is in use by another program. Close it and try again."
	case errors.Is(err, ErrAccessDenied):
		return "Access to the file was blocked. Check its permissions or move it to an accessible location."
	case errors.Is(err, ErrFileNotFound):
		return "The file could not be found. It may have been moved or deleted since you selected it."
	default:
		return "The file could not be read. Try selecting it again."
	}
}
