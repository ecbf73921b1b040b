package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// fileDocument is the on-disk shape of the tasks file.
type fileDocument struct {
	Tasks     []*models.ScheduledTask `json:"tasks"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// FileStore persists ScheduledTasks as a single JSON file, rewritten
// atomically (write-temp-then-rename) on every mutation.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore builds a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads every persisted task. A missing file is not an error: it
// means no tasks have ever been saved.
func (s *FileStore) Load() ([]*models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Tasks, nil
}

// Save atomically rewrites the tasks file with the full set of tasks.
func (s *FileStore) Save(tasks []*models.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := fileDocument{Tasks: tasks, UpdatedAt: time.Now()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
