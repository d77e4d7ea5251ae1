package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenStores(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		cfg      StoreConfig
		cached   bool
		wantFile string
	}{
		{cfg: StoreConfig{Backend: "memory"}},
		{cfg: StoreConfig{Backend: "json", DataDir: filepath.Join(dir, "json")}, wantFile: filepath.Join(dir, "json", BooksFile)},
		{cfg: StoreConfig{Backend: "sqlite3", DBPath: filepath.Join(dir, "a.db"), CacheSize: 16}, cached: true, wantFile: filepath.Join(dir, "a.db")},
		{cfg: StoreConfig{Backend: "SQLite", DBPath: filepath.Join(dir, "b.db")}, wantFile: filepath.Join(dir, "b.db")},
	}
	for _, tc := range cases {
		t.Run(tc.cfg.Backend, func(t *testing.T) {
			s, err := OpenStores(tc.cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer s.Close()

			ctx := context.Background()
			m, err := s.Members.Add(ctx, Member{Name: "Alice", Email: "a@x.com"})
			if err != nil {
				t.Fatalf("add member: %v", err)
			}
			if _, err := s.Books.Add(ctx, Book{Title: "Dune", Author: "Herbert"}); err != nil {
				t.Fatalf("add book: %v", err)
			}
			if got, err := s.Members.GetByID(ctx, m.ID); err != nil || got.Email != "a@x.com" {
				t.Fatalf("get member: %+v %v", got, err)
			}

			if _, ok := s.Books.(*CachedRepository[Book]); ok != tc.cached {
				t.Fatalf("cached=%v, want %v", ok, tc.cached)
			}
			if tc.wantFile != "" {
				if _, err := os.Stat(tc.wantFile); err != nil {
					t.Fatalf("backing file missing: %v", err)
				}
			}
		})
	}
}

func TestOpenStoresUnknownBackend(t *testing.T) {
	if _, err := OpenStores(StoreConfig{Backend: "mongo"}); err == nil {
		t.Fatalf("want error for unknown backend")
	}
}
