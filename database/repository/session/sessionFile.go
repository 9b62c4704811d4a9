package sessionRepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"flexify/models"
)

// FileSessionStorage keeps the four keys in one JSON file. Saves go through a
// temporary file and a rename so readers see the old set or the new one.
type FileSessionStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileSessionStorage(path string) *FileSessionStorage {
	return &FileSessionStorage{path: path}
}

func (f *FileSessionStorage) Load(ctx context.Context) (models.PersistedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.PersistedSession{}, nil
	}
	if err != nil {
		return models.PersistedSession{}, fmt.Errorf("failed to load session: %w", err)
	}
	data := map[string]string{}
	if err := json.Unmarshal(b, &data); err != nil {
		return models.PersistedSession{}, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return models.PersistedSession{
		Token:        data[KeyToken],
		RefreshToken: data[KeyRefreshToken],
		User:         data[KeyUser],
		Role:         data[KeyRole],
	}, nil
}

func (f *FileSessionStorage) Save(ctx context.Context, s models.PersistedSession) error {
	b, err := json.Marshal(map[string]string{
		KeyToken:        s.Token,
		KeyRefreshToken: s.RefreshToken,
		KeyUser:         s.User,
		KeyRole:         s.Role,
	})
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (f *FileSessionStorage) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
