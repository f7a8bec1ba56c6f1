package offline

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// queueFileName is the single fixed key under which the pending queue is
// persisted. All reads and writes go through this one file.
const queueFileName = "pending_queue.json"

// Store persists the pending-action queue as one JSON blob on disk, so
// queued mutations survive restarts.
type Store struct {
	path string
}

// NewStore creates a Store that persists the queue at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStorePath returns the queue file location under the user config
// directory, creating the app directory if needed.
func DefaultStorePath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(configDir, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, queueFileName), nil
}

// Load reads the persisted queue. It never fails: a missing file, an
// unreadable file, or corrupt JSON all yield an empty queue, so a damaged
// blob can never wedge the app. The damaged data is abandoned and will be
// overwritten by the next Save.
func (s *Store) Load() []PendingAction {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var queue []PendingAction
	if err := json.Unmarshal(data, &queue); err != nil {
		return nil
	}
	return queue
}

// Save replaces the persisted queue with the given one. The write goes to a
// temp file first and is renamed into place, so a crash mid-write leaves
// either the old blob or the new one, never a torn file.
func (s *Store) Save(queue []PendingAction) error {
	if queue == nil {
		queue = []PendingAction{}
	}

	data, err := json.Marshal(queue)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// HasPending reports whether any actions are waiting to be replayed.
func (s *Store) HasPending() bool {
	return len(s.Load()) > 0
}
