package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingRepo counts reads that reach the wrapped store.
type countingRepo struct {
	Repository[Book]
	reads int
}

func (r *countingRepo) GetByID(ctx context.Context, id int64) (Book, error) {
	r.reads++
	return r.Repository.GetByID(ctx, id)
}

// pausingRepo holds the first GetByID after it has read the row until resume
// is closed.
type pausingRepo[T record[T]] struct {
	Repository[T]
	once   sync.Once
	read   chan struct{}
	resume chan struct{}
}

func newPausingRepo[T record[T]](inner Repository[T]) *pausingRepo[T] {
	return &pausingRepo[T]{Repository: inner, read: make(chan struct{}), resume: make(chan struct{})}
}

func (r *pausingRepo[T]) GetByID(ctx context.Context, id int64) (T, error) {
	v, err := r.Repository.GetByID(ctx, id)
	r.once.Do(func() {
		close(r.read)
		<-r.resume
	})
	return v, err
}

func TestCachedRepositoryReadRacingBorrow(t *testing.T) {
	ctx := context.Background()
	inner := newPausingRepo[Book](NewMemoryStore[Book]())
	if _, err := inner.Repository.Add(ctx, Book{Title: "Dune", Author: "Herbert"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	books, _ := NewCachedRepository[Book](inner, 8)
	mgr := NewLibraryManager(books, NewMemoryStore[Member](), WithClock(func() time.Time { return testNow }))
	first, _ := mgr.AddMember(ctx, Member{Name: "Alice", Email: "a@x.com"})
	second, _ := mgr.AddMember(ctx, Member{Name: "Bob", Email: "b@x.com"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.GetBookByID(ctx, 1)
	}()
	<-inner.read
	if _, err := mgr.BorrowBook(ctx, 1, first.ID); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	close(inner.resume)
	<-done

	got, _ := mgr.GetBookByID(ctx, 1)
	if !got.IsBorrowed {
		t.Fatalf("stale read cached: book 1 reads as available after borrow")
	}
	if _, err := mgr.BorrowBook(ctx, 1, second.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second borrow: want invalid state, got %v", err)
	}
	stored, _ := inner.Repository.GetByID(ctx, 1)
	if stored.BorrowedBy == nil || *stored.BorrowedBy != first.ID {
		t.Fatalf("want book held by %d, got %v", first.ID, stored.BorrowedBy)
	}
}

func TestCachedRepositoryReadsThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{Repository: NewMemoryStore[Book]()}
	c, err := NewCachedRepository[Book](inner, 8)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	b, _ := c.Add(ctx, Book{Title: "Dune", Author: "Herbert"})
	if c.Len() != 1 {
		t.Fatalf("add should populate the cache")
	}
	for i := 0; i < 3; i++ {
		if _, err := c.GetByID(ctx, b.ID); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if inner.reads != 0 {
		t.Fatalf("want cached reads, inner saw %d", inner.reads)
	}

	b.Title = "Dune Messiah"
	if err := c.Update(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := c.GetByID(ctx, b.ID)
	if got.Title != "Dune Messiah" || inner.reads != 1 {
		t.Fatalf("update must invalidate: title=%q reads=%d", got.Title, inner.reads)
	}

	if err := c.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetByID(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want not found after delete, got %v", err)
	}
}

func TestCachedRepositoryFailedUpdate(t *testing.T) {
	ctx := context.Background()
	c, _ := NewCachedRepository[Book](NewMemoryStore[Book](), 8)
	b, _ := c.Add(ctx, Book{Title: "Dune", Author: "Herbert"})

	bad := b
	bad.Title = ""
	if err := c.Update(ctx, bad); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
	got, _ := c.GetByID(ctx, b.ID)
	if got.Title != "Dune" {
		t.Fatalf("cache holds rejected value %q", got.Title)
	}
}

func TestCachedRepositoryIsolation(t *testing.T) {
	ctx := context.Background()
	c, _ := NewCachedRepository[Book](NewMemoryStore[Book](), 8)
	member := int64(4)
	date := testNow
	b, _ := c.Add(ctx, Book{Title: "Dune", Author: "Herbert", IsBorrowed: true, BorrowedBy: &member, BorrowedDate: &date})

	got, _ := c.GetByID(ctx, b.ID)
	*got.BorrowedBy = 99
	again, _ := c.GetByID(ctx, b.ID)
	if *again.BorrowedBy != 4 {
		t.Fatalf("cached value shared with caller")
	}
}

func TestCachedRepositoryEvicts(t *testing.T) {
	ctx := context.Background()
	c, _ := NewCachedRepository[Book](NewMemoryStore[Book](), 2)
	for i := 0; i < 5; i++ {
		c.Add(ctx, Book{Title: "T", Author: "A"})
	}
	if c.Len() != 2 {
		t.Fatalf("want 2 cached entries, got %d", c.Len())
	}
	all, _ := c.GetAll(ctx)
	if len(all) != 5 {
		t.Fatalf("GetAll must bypass the cache, got %d", len(all))
	}
}

func TestNewCachedRepositoryRejectsBadSize(t *testing.T) {
	if _, err := NewCachedRepository[Book](NewMemoryStore[Book](), 0); err == nil {
		t.Fatalf("want error for size 0")
	}
}
