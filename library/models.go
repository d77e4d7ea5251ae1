package library

import (
	"fmt"
	"strings"
	"time"
)

// Book represents a title held by the library and its current circulation state.
// BorrowedDate and BorrowedBy are set if and only if IsBorrowed is true.
type Book struct {
	ID           int64      `json:"id" validate:"gte=0"`
	Title        string     `json:"title" validate:"notblank"`
	Author       string     `json:"author" validate:"notblank"`
	IsBorrowed   bool       `json:"isBorrowed"`
	BorrowedDate *time.Time `json:"borrowedDate"`
	BorrowedBy   *int64     `json:"borrowedBy" validate:"omitempty,gt=0"`
}

// Member represents a registered library member.
type Member struct {
	ID    int64  `json:"id" validate:"gte=0"`
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"notblank,email"`
}

// BookPatch carries the fields of a partial book update. Nil fields are left untouched.
type BookPatch struct {
	Title  *string `json:"title,omitempty"`
	Author *string `json:"author,omitempty"`
}

// MemberPatch carries the fields of a partial member update. Nil fields are left untouched.
type MemberPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Available reports whether the book can be borrowed.
func (b Book) Available() bool { return !b.IsBorrowed }

// HeldBy reports whether the book is currently borrowed by memberID.
func (b Book) HeldBy(memberID int64) bool {
	return b.IsBorrowed && b.BorrowedBy != nil && *b.BorrowedBy == memberID
}

func (b Book) apply(p BookPatch) Book {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	return b
}

func (m Member) apply(p MemberPatch) Member {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Email != nil {
		m.Email = *p.Email
	}
	return m
}

// ---------------------------------------------------------------------------
// record implementation
// ---------------------------------------------------------------------------

func (b Book) key() int64            { return b.ID }
func (b Book) withKey(id int64) Book { b.ID = id; return b }
func (Book) entity() string          { return "book" }

func (b Book) clone() Book {
	if b.BorrowedDate != nil {
		d := *b.BorrowedDate
		b.BorrowedDate = &d
	}
	if b.BorrowedBy != nil {
		m := *b.BorrowedBy
		b.BorrowedBy = &m
	}
	return b
}

// check enforces the rules every stored book must satisfy.
func (b Book) check() error {
	if strings.TrimSpace(b.Title) == "" {
		return InvalidArgument("book title cannot be empty")
	}
	if strings.TrimSpace(b.Author) == "" {
		return InvalidArgument("book author cannot be empty")
	}
	if b.IsBorrowed && (b.BorrowedDate == nil || b.BorrowedBy == nil) {
		return InvalidArgument("a borrowed book must have a borrowed date and a borrower")
	}
	if !b.IsBorrowed && (b.BorrowedDate != nil || b.BorrowedBy != nil) {
		return InvalidArgument("a book that is not borrowed cannot have a borrowed date or a borrower")
	}
	return nil
}

// Books have no secondary unique keys.
func (Book) conflict(Book) error { return nil }

func (m Member) key() int64              { return m.ID }
func (m Member) withKey(id int64) Member { m.ID = id; return m }
func (Member) entity() string            { return "member" }
func (m Member) clone() Member           { return m }

func (m Member) check() error {
	if strings.TrimSpace(m.Name) == "" {
		return InvalidArgument("member name cannot be empty")
	}
	if strings.TrimSpace(m.Email) == "" {
		return InvalidArgument("member email cannot be empty")
	}
	return nil
}

// conflict reports a DuplicateKey error when other is a different member using the same email.
func (m Member) conflict(other Member) error {
	if other.ID != m.ID && emailKey(other.Email) == emailKey(m.Email) {
		return DuplicateKey(fmt.Sprintf("a member with email '%s' already exists", m.Email))
	}
	return nil
}

// emailKey is the normalised form used for case-insensitive uniqueness.
func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
