package mining

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint is the durable tuple written on every tick and toggle so that
// accrued progress survives a process restart. The format crosses app
// versions: decoding ignores unknown fields and new fields must be optional.
type Checkpoint struct {
	Timestamp     int64   `json:"timestamp"` // epoch-ms
	Amount        float64 `json:"amount"`
	SavedHashRate float64 `json:"savedHashRate"`
}

// CheckpointStore is the durable local storage for mining progress.
type CheckpointStore interface {
	Load(userID int64) (Checkpoint, bool, error)
	Save(userID int64, cp Checkpoint) error
	Clear(userID int64) error
}

// FileCheckpoints keeps one JSON file per user under a fixed directory.
type FileCheckpoints struct {
	dir string
}

func NewFileCheckpoints(dir string) (*FileCheckpoints, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCheckpoints{dir: dir}, nil
}

func (f *FileCheckpoints) path(userID int64) string {
	return filepath.Join(f.dir, fmt.Sprintf("mining-%d.json", userID))
}

func (f *FileCheckpoints) Load(userID int64) (Checkpoint, bool, error) {
	raw, err := os.ReadFile(f.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		// a corrupt checkpoint is treated as absent, not fatal
		return Checkpoint{}, false, nil
	}
	return cp, true, nil
}

func (f *FileCheckpoints) Save(userID int64, cp Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(userID), raw, 0o644)
}

func (f *FileCheckpoints) Clear(userID int64) error {
	err := os.Remove(f.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
