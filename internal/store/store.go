// Package store persists attempt metadata in a JSON state file guarded
// by an advisory lock, so concurrent daemon instances never clobber each
// other's registrations.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// ErrNotFound reports an attempt or container reference the store does
// not know about.
var ErrNotFound = errors.New("attempt not found")

// Attempt links a task attempt to the container reference it runs in.
type Attempt struct {
	ID           uuid.UUID `json:"id"`
	TaskID       uuid.UUID `json:"task_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	ContainerRef string    `json:"container_ref"`
	CreatedAt    time.Time `json:"created_at"`
}

// ContainerInfo identifies the attempt resolved from a container
// reference.
type ContainerInfo struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	TaskID    uuid.UUID `json:"task_id"`
	ProjectID uuid.UUID `json:"project_id"`
}

// Store reads and writes the attempt state file.
type Store struct {
	path string
	mu   sync.Mutex
}

type stateFile struct {
	Version  int       `json:"version"`
	Attempts []Attempt `json:"attempts"`
}

// Open prepares a store rooted at path, creating parent directories as
// needed. The file itself is created lazily on the first Put.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: state path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Put inserts or replaces the attempt with the same ID.
func (s *Store) Put(attempt Attempt) error {
	if attempt.ID == uuid.Nil {
		return errors.New("store: attempt id required")
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock(lock)

	state, err := s.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range state.Attempts {
		if state.Attempts[i].ID == attempt.ID {
			state.Attempts[i] = attempt
			replaced = true
			break
		}
	}
	if !replaced {
		state.Attempts = append(state.Attempts, attempt)
	}
	state.Version = 1

	return s.write(state)
}

// FindAttempt returns the attempt with the given id.
func (s *Store) FindAttempt(id uuid.UUID) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return Attempt{}, err
	}
	for _, attempt := range state.Attempts {
		if attempt.ID == id {
			return attempt, nil
		}
	}
	return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
}

// ResolveContainerRef maps an opaque container reference back to the
// attempt, task and project identifiers that own it.
func (s *Store) ResolveContainerRef(ref string) (ContainerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return ContainerInfo{}, err
	}
	for _, attempt := range state.Attempts {
		if attempt.ContainerRef != "" && attempt.ContainerRef == ref {
			return ContainerInfo{
				AttemptID: attempt.ID,
				TaskID:    attempt.TaskID,
				ProjectID: attempt.ProjectID,
			}, nil
		}
	}
	return ContainerInfo{}, fmt.Errorf("container ref %q: %w", ref, ErrNotFound)
}

func (s *Store) lock() (*os.File, error) {
	file, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		file.Close()
		return nil, err
	}
	return file, nil
}

func unlock(file *os.File) {
	_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
	_ = file.Close()
}

func (s *Store) read() (stateFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stateFile{}, nil
		}
		return stateFile{}, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return stateFile{}, nil
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return stateFile{}, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	return state, nil
}

func (s *Store) write(state stateFile) error {
	buf, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
