package syncagent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"orderhub/internal/order/domain/models"
)

// Persister stores a scope's cache between runs.
type Persister interface {
	Load(scope Scope) ([]models.Order, error)
	Save(scope Scope, orders []models.Order) error
}

// FileStore keeps one JSON file per scope under dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

type snapshot struct {
	Scope  string         `json:"scope"`
	Orders []models.Order `json:"orders"`
}

func (fs *FileStore) path(scope Scope) string {
	return filepath.Join(fs.dir, scope.Key()+".json")
}

// Load returns nil without error when nothing was saved yet.
func (fs *FileStore) Load(scope Scope) ([]models.Order, error) {
	data, err := os.ReadFile(fs.path(scope))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return snap.Orders, nil
}

// Save writes to a temp file and renames it over the old one.
func (fs *FileStore) Save(scope Scope, orders []models.Order) error {
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(snapshot{Scope: scope.Key(), Orders: orders}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	path := fs.path(scope)
	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return os.Rename(temp, path)
}
