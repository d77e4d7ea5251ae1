package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Default file names of the JSON backed stores.
const (
	BooksFile   = "Books.json"
	MembersFile = "Members.json"
)

// FileStore is a Repository persisted as one indented JSON array. The whole
// collection is rewritten on every mutation; a failed write leaves both the file
// and the in-memory state unchanged.
type FileStore[T record[T]] struct {
	path string
	mem  *MemoryStore[T]
}

// OpenFileStore loads the collection at path, creating the parent directory when
// needed. A missing file is an empty collection.
func OpenFileStore[T record[T]](path string) (*FileStore[T], error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, IOFailure("create data dir", err)
		}
	}

	var items []T
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, IOFailure(fmt.Sprintf("read %s", path), err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, IOFailure(fmt.Sprintf("decode %s", path), err)
		}
	}
	return &FileStore[T]{path: path, mem: NewMemoryStore(items...)}, nil
}

// Path returns the file backing the store.
func (s *FileStore[T]) Path() string { return s.path }

func (s *FileStore[T]) GetAll(ctx context.Context) ([]T, error) { return s.mem.GetAll(ctx) }

func (s *FileStore[T]) GetByID(ctx context.Context, id int64) (T, error) {
	return s.mem.GetByID(ctx, id)
}

func (s *FileStore[T]) Add(_ context.Context, entity T) (T, error) {
	var added T
	err := s.mutate(func() error {
		var err error
		added, err = s.mem.addLocked(entity)
		return err
	})
	return added, err
}

func (s *FileStore[T]) Update(_ context.Context, entity T) error {
	return s.mutate(func() error { return s.mem.updateLocked(entity) })
}

func (s *FileStore[T]) Delete(_ context.Context, id int64) error {
	return s.mutate(func() error { return s.mem.deleteLocked(id) })
}

func (s *FileStore[T]) mutate(change func() error) error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()

	items, nextID := s.mem.snapshot()
	if err := change(); err != nil {
		return err
	}
	if err := s.writeLocked(); err != nil {
		s.mem.restore(items, nextID)
		return err
	}
	return nil
}

// writeLocked replaces the file through a temp file + rename so a crash never
// leaves a half written array behind.
func (s *FileStore[T]) writeLocked() error {
	items := s.mem.items
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return IOFailure("encode collection", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return IOFailure(fmt.Sprintf("write %s", s.path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return IOFailure(fmt.Sprintf("write %s", s.path), err)
	}
	if err := tmp.Close(); err != nil {
		return IOFailure(fmt.Sprintf("write %s", s.path), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return IOFailure(fmt.Sprintf("write %s", s.path), err)
	}
	return nil
}
