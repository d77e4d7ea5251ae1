package library

import "context"

// Repository persists and retrieves entities of one type keyed by integer id.
//
// Mutating methods return only after the change has been persisted by the backing store.
// Errors carry one of the kinds declared in errors.go.
type Repository[T any] interface {
	// GetAll returns every stored entity. File-backed stores keep insertion order.
	GetAll(ctx context.Context) ([]T, error)
	// GetByID returns the entity with the given id or a NotFound error.
	GetByID(ctx context.Context, id int64) (T, error)
	// Add stores entity and returns it with its id assigned. A zero id asks the
	// store for the next identifier.
	Add(ctx context.Context, entity T) (T, error)
	// Update replaces the stored entity with the same id.
	Update(ctx context.Context, entity T) error
	// Delete removes the entity with the given id.
	Delete(ctx context.Context, id int64) error
}

// record is implemented by Book and Member so the generic stores can handle both.
type record[T any] interface {
	key() int64
	withKey(id int64) T
	entity() string
	clone() T
	check() error
	conflict(other T) error
}
