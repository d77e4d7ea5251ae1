package library

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", BooksFile)

	s, err := OpenFileStore[Book](path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	date := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	member := int64(1)
	if _, err := s.Add(ctx, Book{Title: "Dune", Author: "Herbert"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Add(ctx, Book{Title: "Emma", Author: "Austen", IsBorrowed: true, BorrowedDate: &date, BorrowedBy: &member}); err != nil {
		t.Fatalf("add: %v", err)
	}

	reopened, err := OpenFileStore[Book](path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	all, _ := reopened.GetAll(ctx)
	if len(all) != 2 || all[0].Title != "Dune" || all[1].Title != "Emma" {
		t.Fatalf("unexpected contents after reopen: %+v", all)
	}
	if all[1].BorrowedDate == nil || !all[1].BorrowedDate.Equal(date) || *all[1].BorrowedBy != 1 {
		t.Fatalf("borrow fields lost: %+v", all[1])
	}

	next, _ := reopened.Add(ctx, Book{Title: "Ulysses", Author: "Joyce"})
	if next.ID != 3 {
		t.Fatalf("want id 3 after reopen, got %d", next.ID)
	}
}

func TestFileStoreFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), MembersFile)
	s, _ := OpenFileStore[Member](path)
	if _, err := s.Add(ctx, Member{Name: "Alice", Email: "a@x.com"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "[\n  {\n    \"id\": 1,\n    \"name\": \"Alice\",\n    \"email\": \"a@x.com\"\n  }\n]"
	if string(data) != want {
		t.Fatalf("unexpected file:\n%s", data)
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "[]" {
		t.Fatalf("want empty array, got %s", data)
	}
}

func TestFileStoreBookFields(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), BooksFile)
	s, _ := OpenFileStore[Book](path)
	s.Add(ctx, Book{Title: "Dune", Author: "Herbert"})

	data, _ := os.ReadFile(path)
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"id", "title", "author", "isBorrowed", "borrowedDate", "borrowedBy"} {
		if _, ok := raw[0][key]; !ok {
			t.Fatalf("missing field %q in %s", key, data)
		}
	}
	if len(raw[0]) != 6 {
		t.Fatalf("want exactly 6 fields, got %s", data)
	}
	if raw[0]["borrowedDate"] != nil || raw[0]["borrowedBy"] != nil {
		t.Fatalf("available book must persist null borrow fields: %s", data)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), BooksFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenFileStore[Book](path); !errors.Is(err, ErrIOFailure) {
		t.Fatalf("want io failure, got %v", err)
	}
}

func TestFileStoreEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), BooksFile)
	os.WriteFile(path, nil, 0o644)
	s, err := OpenFileStore[Book](path)
	if err != nil {
		t.Fatalf("open empty file: %v", err)
	}
	all, _ := s.GetAll(context.Background())
	if len(all) != 0 {
		t.Fatalf("want empty store, got %d", len(all))
	}
}

func TestFileStoreRollsBackFailedWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), BooksFile)
	s, err := OpenFileStore[Book](path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// A directory in place of the file makes the final rename fail.
	if err := os.MkdirAll(filepath.Join(path, "blocker"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err = s.Add(ctx, Book{Title: "Dune", Author: "Herbert"})
	if !errors.Is(err, ErrIOFailure) {
		t.Fatalf("want io failure, got %v", err)
	}
	all, _ := s.GetAll(ctx)
	if len(all) != 0 {
		t.Fatalf("failed write left %d books in memory", len(all))
	}

	os.RemoveAll(path)
	b, err := s.Add(ctx, Book{Title: "Dune", Author: "Herbert"})
	if err != nil {
		t.Fatalf("add after recovery: %v", err)
	}
	if b.ID != 1 {
		t.Fatalf("id consumed by failed write: got %d", b.ID)
	}
}
