package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// RecordStore persists the single authentication record at a well-known
// path. Absence of the file is a normal state (never logged in, or logged
// out). Only the broker ever touches the file, so no file locking is needed.
type RecordStore struct {
	Path string
}

// Exists reports whether a record file is present and readable.
func (s *RecordStore) Exists() bool {
	info, err := os.Stat(s.Path)
	return err == nil && info.Mode().IsRegular()
}

// Load returns the persisted record, or (nil, nil) when no record exists.
// A file that exists but cannot be read or parsed yields a StorageError.
func (s *RecordStore) Load() (*AuthRecord, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Op: "load", Path: s.Path, Err: err}
	}
	var record AuthRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, &StorageError{Op: "load", Path: s.Path, Err: fmt.Errorf("failed to parse auth record: %w", err)}
	}
	return &record, nil
}

// Save serializes the record, overwriting any prior content.
func (s *RecordStore) Save(record *AuthRecord) error {
	if record == nil {
		return &StorageError{Op: "save", Path: s.Path, Err: errors.New("auth record is nil")}
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return &StorageError{Op: "save", Path: s.Path, Err: fmt.Errorf("failed to create record dir: %w", err)}
	}
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &StorageError{Op: "save", Path: s.Path, Err: err}
	}
	if err := os.WriteFile(s.Path, content, 0o600); err != nil {
		return &StorageError{Op: "save", Path: s.Path, Err: err}
	}
	return nil
}

// Clear deletes the record if present. Deleting an absent record is not an
// error.
func (s *RecordStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "clear", Path: s.Path, Err: err}
	}
	return nil
}
