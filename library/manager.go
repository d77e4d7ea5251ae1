package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Circulation event kinds.
const (
	EventBorrowed = "borrowed"
	EventReturned = "returned"
)

// CirculationEvent records one successful borrow or return.
type CirculationEvent struct {
	Kind     string    `json:"kind"`
	BookID   int64     `json:"bookId"`
	MemberID int64     `json:"memberId"`
	At       time.Time `json:"at"`
}

// ActivityRecorder receives circulation events after they were persisted.
type ActivityRecorder interface {
	Record(ctx context.Context, ev CirculationEvent) error
}

// LibraryManager is the library service: pass-through CRUD over the two
// repositories plus the borrow/return rules. Adapters talk only to it.
//
// Every mutation of a book or member runs under a per-entity lock, so two
// borrows of the same book cannot both pass the availability check.
type LibraryManager struct {
	books    Repository[Book]
	members  Repository[Member]
	validate *Validator
	locks    *keyedMutex
	now      func() time.Time
	activity ActivityRecorder
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithClock replaces the time source used for borrowed dates.
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) { lm.now = now }
}

// WithActivity sends circulation events to r.
func WithActivity(r ActivityRecorder) Option {
	return func(lm *LibraryManager) { lm.activity = r }
}

// NewLibraryManager builds the service over the given repositories.
func NewLibraryManager(books Repository[Book], members Repository[Member], opts ...Option) *LibraryManager {
	lm := &LibraryManager{
		books:    books,
		members:  members,
		validate: NewValidator(),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// Validator exposes the validation rules to adapters.
func (lm *LibraryManager) Validator() *Validator { return lm.validate }

func (lm *LibraryManager) clock() time.Time { return lm.now().UTC().Round(0) }

// ------------------ Book helpers ------------------

// AddBook validates b and stores it. A zero id is assigned by the store.
func (lm *LibraryManager) AddBook(ctx context.Context, b Book) (Book, error) {
	if err := lm.validate.Book(b, lm.clock()); err != nil {
		return Book{}, err
	}
	defer lm.lockBorrower(b)()
	if err := lm.checkBorrower(ctx, b); err != nil {
		return Book{}, err
	}
	return lm.books.Add(ctx, b)
}

// UpdateBook replaces every field of the stored book.
func (lm *LibraryManager) UpdateBook(ctx context.Context, b Book) error {
	if err := lm.validate.ID("book", b.ID); err != nil {
		return err
	}
	if err := lm.validate.Book(b, lm.clock()); err != nil {
		return err
	}
	defer lm.locks.Lock(bookKey(b.ID))()
	defer lm.lockBorrower(b)()
	if err := lm.checkBorrower(ctx, b); err != nil {
		return err
	}
	return lm.books.Update(ctx, b)
}

// PatchBook changes only the fields set in p.
func (lm *LibraryManager) PatchBook(ctx context.Context, id int64, p BookPatch) (Book, error) {
	if err := lm.validate.ID("book", id); err != nil {
		return Book{}, err
	}
	defer lm.locks.Lock(bookKey(id))()

	b, err := lm.books.GetByID(ctx, id)
	if err != nil {
		return Book{}, err
	}
	b = b.apply(p)
	if err := lm.validate.Book(b, lm.clock()); err != nil {
		return Book{}, err
	}
	if err := lm.books.Update(ctx, b); err != nil {
		return Book{}, err
	}
	return b, nil
}

func (lm *LibraryManager) DeleteBook(ctx context.Context, id int64) error {
	if err := lm.validate.ID("book", id); err != nil {
		return err
	}
	defer lm.locks.Lock(bookKey(id))()
	return lm.books.Delete(ctx, id)
}

func (lm *LibraryManager) GetAllBooks(ctx context.Context) ([]Book, error) {
	return lm.books.GetAll(ctx)
}

func (lm *LibraryManager) GetBookByID(ctx context.Context, id int64) (Book, error) {
	if err := lm.validate.ID("book", id); err != nil {
		return Book{}, err
	}
	return lm.books.GetByID(ctx, id)
}

// BookExists reports whether a book with id is stored.
func (lm *LibraryManager) BookExists(ctx context.Context, id int64) (bool, error) {
	return exists(lm.books.GetByID(ctx, id))
}

// SearchBooks returns the books whose title or author contains q, ignoring case.
// An empty query matches nothing.
func (lm *LibraryManager) SearchBooks(ctx context.Context, q string) ([]Book, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []Book{}, nil
	}
	books, err := lm.books.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	results := []Book{}
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q) {
			results = append(results, b)
		}
	}
	return results, nil
}

// lockBorrower holds the member a book names as borrower, so DeleteMember
// cannot remove it before the book is written. Taken after the book lock.
func (lm *LibraryManager) lockBorrower(b Book) (unlock func()) {
	if b.BorrowedBy == nil {
		return func() {}
	}
	return lm.locks.Lock(memberKey(*b.BorrowedBy))
}

// checkBorrower makes sure a book that names a borrower points at a real member.
func (lm *LibraryManager) checkBorrower(ctx context.Context, b Book) error {
	if b.BorrowedBy == nil {
		return nil
	}
	_, err := lm.members.GetByID(ctx, *b.BorrowedBy)
	return err
}

// ------------------ Member helpers ------------------

func (lm *LibraryManager) AddMember(ctx context.Context, m Member) (Member, error) {
	if err := lm.validate.Member(m); err != nil {
		return Member{}, err
	}
	return lm.members.Add(ctx, m)
}

func (lm *LibraryManager) UpdateMember(ctx context.Context, m Member) error {
	if err := lm.validate.ID("member", m.ID); err != nil {
		return err
	}
	if err := lm.validate.Member(m); err != nil {
		return err
	}
	defer lm.locks.Lock(memberKey(m.ID))()
	return lm.members.Update(ctx, m)
}

func (lm *LibraryManager) PatchMember(ctx context.Context, id int64, p MemberPatch) (Member, error) {
	if err := lm.validate.ID("member", id); err != nil {
		return Member{}, err
	}
	defer lm.locks.Lock(memberKey(id))()

	m, err := lm.members.GetByID(ctx, id)
	if err != nil {
		return Member{}, err
	}
	m = m.apply(p)
	if err := lm.validate.Member(m); err != nil {
		return Member{}, err
	}
	if err := lm.members.Update(ctx, m); err != nil {
		return Member{}, err
	}
	return m, nil
}

// DeleteMember removes a member. Members still holding a book cannot be deleted.
func (lm *LibraryManager) DeleteMember(ctx context.Context, id int64) error {
	if err := lm.validate.ID("member", id); err != nil {
		return err
	}
	defer lm.locks.Lock(memberKey(id))()

	if _, err := lm.members.GetByID(ctx, id); err != nil {
		return err
	}
	held, err := lm.BooksBorrowedBy(ctx, id)
	if err != nil {
		return err
	}
	if len(held) > 0 {
		return InvalidState(fmt.Sprintf("member %d still has %d borrowed book(s)", id, len(held)))
	}
	return lm.members.Delete(ctx, id)
}

func (lm *LibraryManager) GetAllMembers(ctx context.Context) ([]Member, error) {
	return lm.members.GetAll(ctx)
}

func (lm *LibraryManager) GetMemberByID(ctx context.Context, id int64) (Member, error) {
	if err := lm.validate.ID("member", id); err != nil {
		return Member{}, err
	}
	return lm.members.GetByID(ctx, id)
}

// MemberExists reports whether a member with id is stored.
func (lm *LibraryManager) MemberExists(ctx context.Context, id int64) (bool, error) {
	return exists(lm.members.GetByID(ctx, id))
}

// ------------------ Circulation ------------------

// BorrowBook lends bookID to memberID. Checks run in a fixed order: the book
// exists, the member exists, the book is available.
func (lm *LibraryManager) BorrowBook(ctx context.Context, bookID, memberID int64) (Book, error) {
	if err := lm.validate.ID("book", bookID); err != nil {
		return Book{}, err
	}
	if err := lm.validate.ID("member", memberID); err != nil {
		return Book{}, err
	}
	// Book before member, always, so concurrent callers cannot deadlock.
	defer lm.locks.Lock(bookKey(bookID))()
	defer lm.locks.Lock(memberKey(memberID))()

	b, err := lm.books.GetByID(ctx, bookID)
	if err != nil {
		return Book{}, err
	}
	if _, err := lm.members.GetByID(ctx, memberID); err != nil {
		return Book{}, err
	}
	if b.IsBorrowed {
		return Book{}, InvalidState(fmt.Sprintf("book %d is already borrowed", bookID))
	}

	now := lm.clock()
	b.IsBorrowed = true
	b.BorrowedDate = &now
	b.BorrowedBy = &memberID
	if err := lm.books.Update(ctx, b); err != nil {
		return Book{}, err
	}

	lm.record(ctx, CirculationEvent{Kind: EventBorrowed, BookID: bookID, MemberID: memberID, At: now})
	return b, nil
}

// ReturnBook makes a borrowed book available again.
func (lm *LibraryManager) ReturnBook(ctx context.Context, bookID int64) (Book, error) {
	if err := lm.validate.ID("book", bookID); err != nil {
		return Book{}, err
	}
	defer lm.locks.Lock(bookKey(bookID))()

	b, err := lm.books.GetByID(ctx, bookID)
	if err != nil {
		return Book{}, err
	}
	if !b.IsBorrowed {
		return Book{}, InvalidState(fmt.Sprintf("book %d is not currently borrowed", bookID))
	}

	var memberID int64
	if b.BorrowedBy != nil {
		memberID = *b.BorrowedBy
	}
	b.IsBorrowed = false
	b.BorrowedDate = nil
	b.BorrowedBy = nil
	if err := lm.books.Update(ctx, b); err != nil {
		return Book{}, err
	}

	lm.record(ctx, CirculationEvent{Kind: EventReturned, BookID: bookID, MemberID: memberID, At: lm.clock()})
	return b, nil
}

// GetAllBorrowedBooks returns the books that are currently borrowed.
func (lm *LibraryManager) GetAllBorrowedBooks(ctx context.Context) ([]Book, error) {
	return lm.filterBooks(ctx, func(b Book) bool { return b.IsBorrowed })
}

// BooksBorrowedBy returns the books memberID currently holds.
func (lm *LibraryManager) BooksBorrowedBy(ctx context.Context, memberID int64) ([]Book, error) {
	return lm.filterBooks(ctx, func(b Book) bool { return b.HeldBy(memberID) })
}

func (lm *LibraryManager) filterBooks(ctx context.Context, keep func(Book) bool) ([]Book, error) {
	books, err := lm.books.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := []Book{}
	for _, b := range books {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

// record never fails the circulation operation that triggered it.
func (lm *LibraryManager) record(ctx context.Context, ev CirculationEvent) {
	if lm.activity == nil {
		return
	}
	if err := lm.activity.Record(ctx, ev); err != nil {
		log.Printf("activity: record %s book=%d member=%d: %v", ev.Kind, ev.BookID, ev.MemberID, err)
	}
}

// ------------------ Utilities ------------------

func exists[T any](_ T, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

// PrettyBook formats a book for lists.
func PrettyBook(b Book, borrowerName string) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-10t %-25s", b.ID, b.Title, b.Author, b.Available(), borrowerName)
}
