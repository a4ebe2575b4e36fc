// Package storage provides the credential persistence backends: a JSON file
// for single-node setups and a Redis hash when one is available.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/eigo-sensei/server/internal/bot/model"
)

// FileStore persists the credential map as a JSON object on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing file is not an error; the registry just
// starts empty.
func (s *FileStore) Load(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential snapshot: %w", err)
	}

	creds := map[string]string{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credential snapshot: %w", err)
	}
	return creds, nil
}

// Save writes the full snapshot, replacing any previous content.
func (s *FileStore) Save(ctx context.Context, creds map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential snapshot: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credential snapshot: %w", err)
	}
	return nil
}

var _ model.CredentialStore = (*FileStore)(nil)
