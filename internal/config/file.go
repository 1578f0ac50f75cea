package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Error is returned for configuration and state file access failures.
type Error struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to read file %s: %v", path, err), Err: err}
	}
	return data, nil
}

// WriteFile replaces path atomically through a temporary file.
func WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &Error{Message: fmt.Sprintf("failed to create directory for %s: %v", path, err), Err: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &Error{Message: fmt.Sprintf("failed to write to file %s: %v", tmp, err), Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &Error{Message: fmt.Sprintf("failed to replace file %s: %v", path, err), Err: err}
	}
	return nil
}
