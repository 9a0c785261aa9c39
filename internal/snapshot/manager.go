package snapshot

// ============================================================================
// Snapshot files for the in-memory document store.
//
// 1. Collections are serialised as canonical Extended JSON so numeric types
//    survive a reload (int32 vs int64 vs double).
// 2. Writes go to a temp file followed by os.Rename, so a crash never leaves
//    a half-written snapshot behind.
// 3. Load checks the schema version; a missing file is an empty state.
// ============================================================================

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrCorruptedSnapshot   = errors.New("snapshot file is corrupted")
	ErrIncompatibleVersion = errors.New("snapshot schema version is incompatible")
)

// SchemaVersion is the only layout Load accepts.
const SchemaVersion = 1

// Data is the persisted state: every collection as an ordered list of raw
// documents.
type Data struct {
	SchemaVer   int                   `bson:"schema_version"`
	SavedAt     int64                 `bson:"saved_at"`
	Collections map[string][]bson.Raw `bson:"collections"`
}

// Manager reads and writes one snapshot file.
type Manager struct {
	path string
	mu   sync.Mutex
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the snapshot file location.
func (m *Manager) Path() string {
	return m.path
}

// Write atomically replaces the snapshot file with data.
func (m *Manager) Write(data Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data.SchemaVer = SchemaVersion
	data.SavedAt = time.Now().Unix()
	if data.Collections == nil {
		data.Collections = map[string][]bson.Raw{}
	}

	out, err := bson.MarshalExtJSONIndent(data, true, false, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file yields an empty Data, not an error.
func (m *Manager) Load() (Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Data{SchemaVer: SchemaVersion, Collections: map[string][]bson.Raw{}}, nil
		}
		return Data{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var data Data
	if err := bson.UnmarshalExtJSON(raw, true, &data); err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	if data.SchemaVer != SchemaVersion {
		return Data{}, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, data.SchemaVer, SchemaVersion)
	}
	if data.Collections == nil {
		data.Collections = map[string][]bson.Raw{}
	}
	return data, nil
}

// Exists reports whether a snapshot file is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}
