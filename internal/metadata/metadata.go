// Package metadata keeps the durable per-build record of step progress
// and build facts used for postmortem diagnosis and analytics.
//
// Every write is committed immediately in its own transaction, never
// batched, so a crash mid-build still leaves partial diagnostics behind.
// The whole record is exported to a sink exactly once at build end, on
// both the success and failure paths.
package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// StepKey holds the build-step cursor: the name of the currently
	// executing phase, read by the failure handler
	StepKey = "build-step"

	// bucketName is the BoltDB bucket holding this build's record
	bucketName = "build"
)

// Store is a durable key/value record for a single build
type Store struct {
	db *bbolt.DB
}

// Open creates the metadata store backing file in dir
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "metadata.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create metadata bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the backing database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// SetStep overwrites the build-step cursor. Stages call this strictly
// before entering a phase that can fail, never retroactively.
func (s *Store) SetStep(name string) error {
	return s.Record(StepKey, name)
}

// Step reads the current cursor value
func (s *Store) Step() (string, error) {
	var step string

	err := s.db.View(func(tx *bbolt.Tx) error {
		step = string(tx.Bucket([]byte(bucketName)).Get([]byte(StepKey)))
		return nil
	})

	return step, err
}

// Record durably writes a single key/value fact
func (s *Store) Record(key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), []byte(value))
	})
}

// RecordBool records a boolean fact
func (s *Store) RecordBool(key string, value bool) error {
	return s.Record(key, strconv.FormatBool(value))
}

// RecordDuration records the elapsed time since start, in milliseconds
func (s *Store) RecordDuration(key string, start time.Time) error {
	ms := time.Since(start).Milliseconds()
	return s.Record(key, strconv.FormatInt(ms, 10)+"ms")
}

// All returns every recorded fact
func (s *Store) All() (map[string]string, error) {
	facts := make(map[string]string)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			facts[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return facts, nil
}

// Flush exports the full record to the sink as JSON, keys ordered
func (s *Store) Flush(w io.Writer) error {
	facts, err := s.All()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	ordered := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, map[string]string{k: facts[k]})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(ordered)
}
