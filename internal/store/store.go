// Package store keeps queued items on a filesystem, one file per key.
//
// A FileStore maps a uint32 key to a byte blob under a root directory. Writes
// go straight to the final path by default, so a crash during a write may
// leave a torn record; WithAtomicWrite switches to write-then-rename.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidQueueID is returned for empty queue ids or ids containing a path separator.
	ErrInvalidQueueID = errors.New("store: invalid queue id")
	// ErrNotDirectory is returned when the root path is not a directory.
	ErrNotDirectory = errors.New("store: root is not a directory")
)

const tempSuffix = ".tmp"

// Record is one durable record read back from disk.
type Record struct {
	Key  uint32
	Path string
	Data []byte
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithAtomicWrite writes records to a temporary file and renames it over
// the final path.
func WithAtomicWrite(enabled bool) Option {
	return func(s *FileStore) {
		s.atomic = enabled
	}
}

// WithSync fsyncs each record before it is closed.
func WithSync(enabled bool) Option {
	return func(s *FileStore) {
		s.sync = enabled
	}
}

// FileStore is a directory of records belonging to one queue id.
// Several queues may share a root directory as long as their ids differ.
type FileStore struct {
	root    string
	queueID string
	pattern *regexp.Regexp
	atomic  bool
	sync    bool
}

// Open returns a store rooted at dir. The directory must already exist.
func Open(dir, queueID string, opts ...Option) (*FileStore, error) {
	if queueID == "" || strings.ContainsAny(queueID, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQueueID, queueID)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to open file queue %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	s := &FileStore{
		root:    dir,
		queueID: queueID,
		pattern: recordPattern(queueID),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.removeStaleTemps(); err != nil {
		return nil, err
	}
	return s, nil
}

// removeStaleTemps deletes temp records left by an interrupted atomic write.
func (s *FileStore) removeStaleTemps() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("unable to open file queue %s: %w", s.root, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, tempSuffix) {
			continue
		}
		if _, err := parseWith(s.pattern, strings.TrimSuffix(name, tempSuffix)); err != nil {
			continue
		}
		path := filepath.Join(s.root, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove temp record %s: %w", path, err)
		}
	}
	return nil
}

// Root returns the store directory.
func (s *FileStore) Root() string {
	return s.root
}

// QueueID returns the queue id used as record file extension.
func (s *FileStore) QueueID() string {
	return s.queueID
}

// Path returns the record path for key.
func (s *FileStore) Path(key uint32) string {
	return filepath.Join(s.root, FormatRecordName(key, s.queueID))
}

// Write creates or overwrites the record for key.
func (s *FileStore) Write(key uint32, data []byte) error {
	path := s.Path(key)
	if !s.atomic {
		if err := s.writeFile(path, data); err != nil {
			return fmt.Errorf("failed to write record %s: %w", path, err)
		}
		return nil
	}

	tmpPath := path + tempSuffix
	if err := s.writeFile(tmpPath, data); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp record %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp record %s: %w", tmpPath, err)
	}
	return nil
}

func (s *FileStore) writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return errors.Join(err, f.Close())
	}
	if s.sync {
		if err := f.Sync(); err != nil {
			return errors.Join(err, f.Close())
		}
	}
	return f.Close()
}

// ReadAll returns every record of this queue in directory listing order.
// Files of other queues and unrelated files are skipped.
func (s *FileStore) ReadAll() ([]Record, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("unable to open file queue %s: %w", s.root, err)
	}

	var records []Record
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		key, err := parseWith(s.pattern, entry.Name())
		if err != nil {
			continue
		}

		path := filepath.Join(s.root, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error loading file queue record %s: %w", path, err)
		}
		records = append(records, Record{Key: key, Path: path, Data: data})
	}
	return records, nil
}

// Delete removes the record for key. A missing record is not an error.
func (s *FileStore) Delete(key uint32) error {
	path := s.Path(key)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete record %s: %w", path, err)
	}
	return nil
}
