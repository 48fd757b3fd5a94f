package statestore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var snapshotsBucket = []byte("snapshots")

// History is an embedded bbolt-backed audit log of infra-state snapshots:
// the orchestrator appends the saved infra state after each genesis and
// destroy run, and ListForProject reads a project's snapshots back.
type History struct {
	db *bolt.DB
}

func OpenHistory(path string) (*History, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("statestore: open history db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: init history buckets: %w", err)
	}

	return &History{db: db}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

// Snapshot is one recorded point-in-time infra state.
type Snapshot struct {
	Project   string          `json:"project"`
	Workflow  string          `json:"workflow"`
	Timestamp time.Time       `json:"timestamp"`
	State     json.RawMessage `json:"state"`
}

// Append records a new snapshot, keyed by project name and timestamp so
// ListForProject returns them in timestamp order.
func (h *History) Append(project, workflow string, state json.RawMessage, at time.Time) error {
	snap := Snapshot{Project: project, Workflow: workflow, Timestamp: at, State: state}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("statestore: marshal snapshot: %w", err)
	}

	key := []byte(fmt.Sprintf("%s/%020d", project, at.UnixNano()))
	return h.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put(key, data)
	})
}

// ListForProject returns every snapshot recorded for project, oldest
// first.
func (h *History) ListForProject(project string) ([]Snapshot, error) {
	prefix := []byte(project + "/")
	var snaps []Snapshot

	err := h.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(snapshotsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("unmarshal snapshot %s: %w", k, err)
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	return snaps, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
