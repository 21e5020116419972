package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileOperations provides file system utilities for staging, merging, and
// atomically publishing a segmented download.
type FileOperations struct{}

// NewFileOperations creates a new FileOperations instance.
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func (f *FileOperations) EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// FileExists checks if a file exists.
func (f *FileOperations) FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file, or 0 if it does not exist.
func (f *FileOperations) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AtomicRename performs an atomic file rename, replacing newPath if it
// already exists.
func (f *FileOperations) AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// NewStagingDir creates a fresh, empty ".segments" staging directory under
// base for a single download run, clearing any stale leftover from a prior,
// interrupted run first.
func (f *FileOperations) NewStagingDir(base string) (string, error) {
	dir := filepath.Join(base, ".segments")
	if err := f.RemoveStaleStaging(dir); err != nil {
		return "", fmt.Errorf("failed to clear stale staging dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	return dir, nil
}

// RemoveStaleStaging removes a leftover staging directory from a prior,
// interrupted run. Absence is not an error.
func (f *FileOperations) RemoveStaleStaging(dir string) error {
	if dir == "" {
		return nil
	}
	err := os.RemoveAll(dir)
	if err != nil {
		return fmt.Errorf("failed to remove staging dir %s: %w", dir, err)
	}
	return nil
}
