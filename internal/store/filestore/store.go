package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"qms/counter-service/internal/models"
)

type Store struct {
	path         string
	fallbackPath string
}

type Options struct {
	FallbackPath string
}

func NewStore(path string, options Options) *Store {
	return &Store{
		path:         path,
		fallbackPath: options.FallbackPath,
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load prefers whichever of the primary and fallback documents was written most
// recently and parses; otherwise it returns a fresh state.
func (s *Store) Load(ctx context.Context) models.QueueState {
	var (
		best     models.QueueState
		bestTime time.Time
		found    bool
	)
	for _, path := range []string{s.path, s.fallbackPath} {
		if path == "" {
			continue
		}
		state, modTime, err := readState(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Printf("queue load failed path=%s error=%v", path, err)
			}
			continue
		}
		if !found || modTime.After(bestTime) {
			best, bestTime, found = state, modTime, true
		}
	}
	if !found {
		return models.NewQueueState()
	}
	return best
}

// Save writes the document to the primary path and falls back to the
// secondary path once. An error is returned only when both writes fail.
func (s *Store) Save(ctx context.Context, state models.QueueState) error {
	data, err := json.MarshalIndent(normalize(state), "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	primaryErr := WriteFileAtomic(s.path, data)
	if primaryErr == nil {
		return nil
	}
	if s.fallbackPath == "" {
		log.Printf("queue save failed path=%s error=%v", s.path, primaryErr)
		return primaryErr
	}

	log.Printf("queue save failed path=%s fallback=%s error=%v", s.path, s.fallbackPath, primaryErr)
	if err := WriteFileAtomic(s.fallbackPath, data); err != nil {
		log.Printf("queue fallback save failed path=%s error=%v", s.fallbackPath, err)
		return errors.Join(primaryErr, err)
	}
	return nil
}

func readState(path string) (models.QueueState, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.QueueState{}, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.QueueState{}, time.Time{}, err
	}
	var state models.QueueState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.QueueState{}, time.Time{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return normalize(state), info.ModTime(), nil
}

func normalize(state models.QueueState) models.QueueState {
	if state.Orders == nil {
		state.Orders = []models.OrderTicket{}
	}
	if state.CurrentPrefix == "" {
		state.CurrentPrefix = models.InitialPrefix
	}
	if state.CurrentNumber < 1 {
		state.CurrentNumber = models.InitialNumber
	}
	return state
}

// WriteFileAtomic creates the parent directory, writes to a temp file in the
// same directory and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
