package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// recordFile is the record's file name inside the cache root
const recordFile = "signature.json"

// Record is the persisted description of what the cache holds and the
// environment it was written under. One record per cache root, replaced
// wholesale at the final save of a successful build.
type Record struct {
	Signature   Signature `json:"signature"`
	Directories []string  `json:"directories"`
	CreatedAt   time.Time `json:"created_at"`
}

// LoadRecord reads the cache record from the cache root.
// Returns nil without error if no record exists.
func LoadRecord(cacheRoot string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(cacheRoot, recordFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read cache record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt cache record: %w", err)
	}

	return &rec, nil
}

// SaveRecord replaces the cache record. Written to a temporary sibling
// first so a crash never leaves a truncated record behind.
func SaveRecord(cacheRoot string, rec Record) error {
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create cache root: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(cacheRoot, recordFile)
	tmp := fmt.Sprintf("%s.tmp-%d", path, os.Getpid())

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache record: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace cache record: %w", err)
	}

	return nil
}
