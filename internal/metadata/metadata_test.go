package metadata

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStepCursor(t *testing.T) {
	s := newStore(t)

	step, err := s.Step()
	require.NoError(t, err)
	assert.Empty(t, step)

	require.NoError(t, s.SetStep("install-node"))
	require.NoError(t, s.SetStep("install-dependencies"))

	step, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, "install-dependencies", step, "cursor holds the latest step only")
}

func TestRecord(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Record("node-version", "22.11.0"))
	require.NoError(t, s.RecordBool("build-success", true))

	facts, err := s.All()
	require.NoError(t, err)
	assert.Equal(t, "22.11.0", facts["node-version"])
	assert.Equal(t, "true", facts["build-success"])
}

func TestRecordDuration(t *testing.T) {
	s := newStore(t)

	start := time.Now().Add(-25 * time.Millisecond)
	require.NoError(t, s.RecordDuration("install-node-time", start))

	facts, err := s.All()
	require.NoError(t, err)

	value := facts["install-node-time"]
	assert.True(t, strings.HasSuffix(value, "ms"), "got %q", value)
	assert.NotEqual(t, "0ms", value)
}

func TestFlush(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Record("cache-status", "valid"))
	require.NoError(t, s.Record("build-step", "finished"))
	require.NoError(t, s.RecordBool("build-success", true))

	var buf bytes.Buffer
	require.NoError(t, s.Flush(&buf))

	var records []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 3)

	// Keys are exported in order
	var keys []string
	for _, rec := range records {
		for k := range rec {
			keys = append(keys, k)
		}
	}

	assert.Equal(t, []string{"build-step", "build-success", "cache-status"}, keys)
}

func TestWritesSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetStep("install-dependencies"))
	require.NoError(t, s.Record("npm-version", "10.9.2"))
	require.NoError(t, s.Close())

	// Reopen as a crash-recovery reader would
	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	step, err := s2.Step()
	require.NoError(t, err)
	assert.Equal(t, "install-dependencies", step, "partial diagnostics survive a crash")

	facts, err := s2.All()
	require.NoError(t, err)
	assert.Equal(t, "10.9.2", facts["npm-version"])
}
