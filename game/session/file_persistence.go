package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/service"
)

var _ service.GameRepository = (*FilePersistence)(nil)

// FilePersistence implements service.GameRepository using one JSON file per session
type FilePersistence struct {
	sessionsDir string
	mu          sync.RWMutex
}

// NewFilePersistence creates a new file-based game repository
func NewFilePersistence(sessionsDir string) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &FilePersistence{sessionsDir: sessionsDir}, nil
}

// Save writes a game record, replacing any previous version
func (fp *FilePersistence) Save(ctx context.Context, rec *engine.GameRecord) error {
	if rec == nil {
		return errors.New("game record cannot be nil")
	}
	if err := validID(rec.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(persistedSession{
		Version: persistedVersion,
		SavedAt: time.Now(),
		Game:    rec,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	// write to a temp file and rename so readers never see a partial document
	tmp, err := os.CreateTemp(fp.sessionsDir, rec.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fp.getFilePath(rec.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// FindByID loads a game record
func (fp *FilePersistence) FindByID(ctx context.Context, id string) (*engine.GameRecord, error) {
	if err := validID(id); err != nil {
		return nil, fmt.Errorf("session %q: %w", id, service.ErrNotFound)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.read(id)
}

// FindByRoomCode scans stored sessions for a private game with code
func (fp *FilePersistence) FindByRoomCode(ctx context.Context, code string) (*engine.GameRecord, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	ids, err := fp.listAll()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		rec, err := fp.read(id)
		if err != nil {
			continue
		}
		if rec.IsPrivate && rec.RoomCode == code {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("room %q: %w", code, service.ErrNotFound)
}

// RoomCodeTaken reports whether any stored private game uses code
func (fp *FilePersistence) RoomCodeTaken(ctx context.Context, code string) (bool, error) {
	_, err := fp.FindByRoomCode(ctx, code)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, service.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if !fp.exists(id) {
		return fmt.Errorf("session %q: %w", id, service.ErrNotFound)
	}
	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.listAll()
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.exists(id)
}

func (fp *FilePersistence) read(id string) (*engine.GameRecord, error) {
	data, err := os.ReadFile(fp.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %q: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var doc persistedSession
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	if doc.Game == nil {
		return nil, fmt.Errorf("session file %s has no game", id)
	}
	return doc.Game, nil
}

func (fp *FilePersistence) listAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

func (fp *FilePersistence) exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

// getFilePath returns the full file path for a session ID
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, id+".json")
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}
