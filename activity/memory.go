package activity

import (
	"context"
	"sync"

	"lims/library"
)

// MemoryLog keeps the last Limit events of every member in process memory.
type MemoryLog struct {
	mu     sync.Mutex
	limit  int
	events map[int64][]library.CirculationEvent
}

func NewMemoryLog(limit int) *MemoryLog {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryLog{limit: limit, events: make(map[int64][]library.CirculationEvent)}
}

// Record prepends ev to the member's history and drops the oldest entries
// beyond the limit.
func (l *MemoryLog) Record(_ context.Context, ev library.CirculationEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := append([]library.CirculationEvent{ev}, l.events[ev.MemberID]...)
	if len(list) > l.limit {
		list = list[:l.limit]
	}
	l.events[ev.MemberID] = list
	return nil
}

// Recent returns up to n events of memberID, newest first.
func (l *MemoryLog) Recent(_ context.Context, memberID int64, n int) ([]library.CirculationEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.events[memberID]
	n = clamp(n, l.limit)
	if n > len(list) {
		n = len(list)
	}
	out := make([]library.CirculationEvent, n)
	copy(out, list[:n])
	return out, nil
}

func (l *MemoryLog) Close() error { return nil }
