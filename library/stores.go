package library

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// StoreConfig selects and locates the backing store.
type StoreConfig struct {
	// Backend is one of memory, json, sqlite3, sqlite or postgres.
	Backend string
	// DataDir holds Books.json and Members.json for the json backend.
	DataDir string
	// DBPath is the database file of the sqlite backends.
	DBPath string
	// PostgresDSN is the connection string of the postgres backend.
	PostgresDSN string
	// CacheSize puts an LRU cache of that many entries in front of SQL
	// repositories. Zero disables it.
	CacheSize int
}

// Stores bundles the two repositories of one backend.
type Stores struct {
	Books   Repository[Book]
	Members Repository[Member]

	closers []io.Closer
}

// Close releases the backend's resources.
func (s *Stores) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores opens the repositories described by cfg.
func OpenStores(cfg StoreConfig) (*Stores, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "memory":
		return &Stores{Books: NewMemoryStore[Book](), Members: NewMemoryStore[Member]()}, nil
	case "", "json":
		books, err := OpenFileStore[Book](filepath.Join(cfg.DataDir, BooksFile))
		if err != nil {
			return nil, err
		}
		members, err := OpenFileStore[Member](filepath.Join(cfg.DataDir, MembersFile))
		if err != nil {
			return nil, err
		}
		return &Stores{Books: books, Members: members}, nil
	}

	dialect, err := DialectByName(backend)
	if err != nil {
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	source := cfg.DBPath
	if dialect.Name == Postgres.Name {
		source = cfg.PostgresDSN
	}
	db, err := NewDatabase(dialect, source)
	if err != nil {
		return nil, err
	}

	stores := &Stores{Books: db.Books(), Members: db.Members(), closers: []io.Closer{db}}
	if cfg.CacheSize > 0 {
		books, err := NewCachedRepository[Book](db.Books(), cfg.CacheSize)
		if err != nil {
			db.Close()
			return nil, err
		}
		members, err := NewCachedRepository[Member](db.Members(), cfg.CacheSize)
		if err != nil {
			db.Close()
			return nil, err
		}
		stores.Books, stores.Members = books, members
	}
	return stores, nil
}
