package library

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializes(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(bookKey(1))
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("want 50, got %d", counter)
	}
	if len(k.locks) != 0 {
		t.Fatalf("want released locks forgotten, %d left", len(k.locks))
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := newKeyedMutex()
	unlockBook := k.Lock(bookKey(1))
	// A different key must not block.
	unlockMember := k.Lock(memberKey(1))
	unlockMember()
	unlockBook()
}
