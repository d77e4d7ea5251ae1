package library

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a Repository kept entirely in process memory. It preserves
// insertion order and never reuses an identifier after a delete.
type MemoryStore[T record[T]] struct {
	mu     sync.RWMutex
	items  []T
	nextID int64
}

// NewMemoryStore returns a store seeded with items.
func NewMemoryStore[T record[T]](items ...T) *MemoryStore[T] {
	s := &MemoryStore[T]{nextID: 1}
	for _, it := range items {
		s.items = append(s.items, it.clone())
		if it.key() >= s.nextID {
			s.nextID = it.key() + 1
		}
	}
	return s
}

func (s *MemoryStore[T]) GetAll(_ context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.clone())
	}
	return out, nil
}

func (s *MemoryStore[T]) GetByID(_ context.Context, id int64) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i].clone(), nil
	}
	var zero T
	return zero, NotFound(zero.entity(), id)
}

func (s *MemoryStore[T]) Add(_ context.Context, entity T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(entity)
}

func (s *MemoryStore[T]) Update(_ context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(entity)
}

func (s *MemoryStore[T]) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *MemoryStore[T]) addLocked(entity T) (T, error) {
	var zero T
	if err := entity.check(); err != nil {
		return zero, err
	}
	id := entity.key()
	if id < 0 {
		return zero, InvalidArgument(fmt.Sprintf("%s id cannot be negative", entity.entity()))
	}
	if id > 0 && s.indexOf(id) >= 0 {
		return zero, DuplicateKey(fmt.Sprintf("a %s with ID %d already exists", entity.entity(), id))
	}
	for _, it := range s.items {
		if err := entity.conflict(it); err != nil {
			return zero, err
		}
	}
	if id == 0 {
		id = s.nextID
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	stored := entity.withKey(id).clone()
	s.items = append(s.items, stored)
	return stored.clone(), nil
}

func (s *MemoryStore[T]) updateLocked(entity T) error {
	if err := entity.check(); err != nil {
		return err
	}
	i := s.indexOf(entity.key())
	if i < 0 {
		return NotFound(entity.entity(), entity.key())
	}
	for _, it := range s.items {
		if err := entity.conflict(it); err != nil {
			return err
		}
	}
	s.items[i] = entity.clone()
	return nil
}

func (s *MemoryStore[T]) deleteLocked(id int64) error {
	i := s.indexOf(id)
	if i < 0 {
		var zero T
		return NotFound(zero.entity(), id)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *MemoryStore[T]) indexOf(id int64) int {
	for i, it := range s.items {
		if it.key() == id {
			return i
		}
	}
	return -1
}

// snapshot and restore let FileStore roll back a change it failed to persist.
func (s *MemoryStore[T]) snapshot() ([]T, int64) {
	items := make([]T, len(s.items))
	copy(items, s.items)
	return items, s.nextID
}

func (s *MemoryStore[T]) restore(items []T, nextID int64) {
	s.items = items
	s.nextID = nextID
}
