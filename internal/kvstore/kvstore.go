// Package kvstore is a small durable key-value store backed by one JSON file.
// It holds the local-mode catalog and per-user preferences, each under its
// own key, so clearing one never touches the other.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

const lockSuffix = ".lock"

// Store reads and rewrites the file on every call while holding flock() on
// a sidecar lock file, so several processes may share one path. The file is
// the only copy of the data.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open checks that the file at path is readable, creating its directory
// when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create kv dir: %w", err)
	}
	s := &Store{path: path}
	err := s.locked(syscall.LOCK_SH, func() error {
		_, err := s.load()
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get decodes the value stored under key into v. The bool is false when the
// key is absent.
func (s *Store) Get(key string, v any) (bool, error) {
	var raw json.RawMessage
	err := s.locked(syscall.LOCK_SH, func() error {
		data, err := s.load()
		raw = data[key]
		return err
	})
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Put stores v under key and flushes to disk.
func (s *Store) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.locked(syscall.LOCK_EX, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		data[key] = raw
		return s.flush(data)
	})
}

// Update runs fn against the value under key as currently on disk and
// stores the result, all under one exclusive lock. fn receives the zero
// value when the key is absent. Nothing is written when fn fails.
func Update[T any](s *Store, key string, fn func(*T) error) error {
	return s.locked(syscall.LOCK_EX, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		var cur T
		if prev, ok := data[key]; ok {
			if err := json.Unmarshal(prev, &cur); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}
		if err := fn(&cur); err != nil {
			return err
		}
		raw, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		data[key] = raw
		return s.flush(data)
	})
}

// locked runs fn holding s.mu and flock(how) on the lock file. flock
// conflicts between open file descriptions, so separate handles on the same
// path are ordered even inside one process.
func (s *Store) locked(how int, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path+lockSuffix, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open kv lock: %w", err)
	}
	defer f.Close()
	fd := int(f.Fd())
	if err := syscall.Flock(fd, how); err != nil {
		return fmt.Errorf("lock kv file: %w", err)
	}
	defer syscall.Flock(fd, syscall.LOCK_UN)
	return fn()
}

func (s *Store) load() (map[string]json.RawMessage, error) {
	data := make(map[string]json.RawMessage)
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read kv file: %w", err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode kv file %s: %w", s.path, err)
	}
	return data, nil
}

func (s *Store) flush(data map[string]json.RawMessage) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode kv file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write kv file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename kv file: %w", err)
	}
	return nil
}
