// Package artifacts stores serialized model artifacts on the local filesystem.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/vitalsync/internal/domain/scoring"
)

// Sentinel kinds for artifact errors.
var (
	// ErrNotFound matches scoring.ErrNoArtifacts.
	ErrNotFound   = scoring.ErrNoArtifacts
	ErrInvalidKey = errors.New("invalid artifact key")
)

// FileStore keeps one JSON bundle per user under dir. Writes go to a temp
// file in the same directory and are renamed into place, so readers see
// either the previous bundle or the new one.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(userID string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\`) || strings.Contains(userID, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, userID)
	}
	return filepath.Join(s.dir, userID+".json"), nil
}

// Put implements scoring.ArtifactStore.
func (s *FileStore) Put(ctx context.Context, userID string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.path(userID)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+userID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// Get implements scoring.ArtifactStore.
func (s *FileStore) Get(ctx context.Context, userID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(userID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return b, nil
}

// Delete removes a user's bundle; a missing bundle is not an error.
func (s *FileStore) Delete(_ context.Context, userID string) error {
	p, err := s.path(userID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
