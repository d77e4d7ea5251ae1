package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Dialect describes one SQL backend: its database/sql driver, how a source is
// turned into a DSN, and the schema it needs.
type Dialect struct {
	Name   string
	Driver string

	dsn        func(source string) string
	fileBacked bool
	numbered   bool // $1, $2 placeholders instead of ?
	pragmas    []string
	schema     []string
	// syncSequence runs after a row was inserted with an explicit id.
	syncSequence func(table string) string
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS members (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        email TEXT NOT NULL,
        email_key TEXT NOT NULL UNIQUE
    );`,
	`CREATE TABLE IF NOT EXISTS books (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL,
        author TEXT NOT NULL,
        is_borrowed BOOLEAN NOT NULL DEFAULT 0,
        borrowed_date TEXT,
        borrowed_by INTEGER REFERENCES members(id) ON DELETE RESTRICT
    );`,
	`CREATE INDEX IF NOT EXISTS idx_books_borrowed_by ON books(borrowed_by);`,
}

// SQLite3 uses the cgo driver github.com/mattn/go-sqlite3. Source is a file path.
var SQLite3 = Dialect{
	Name:   "sqlite3",
	Driver: "sqlite3",
	dsn: func(path string) string {
		// Enable busy_timeout and foreign keys.
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
	},
	fileBacked: true,
	// WAL improves write concurrency.
	pragmas: []string{"PRAGMA journal_mode=WAL;"},
	schema:  sqliteSchema,
}

// SQLite uses the pure Go driver modernc.org/sqlite. Source is a file path.
var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	dsn: func(path string) string {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	},
	fileBacked: true,
	pragmas:    []string{"PRAGMA journal_mode=WAL;"},
	schema:     sqliteSchema,
}

// Postgres uses github.com/jackc/pgx/v5 through database/sql. Source is a DSN.
var Postgres = Dialect{
	Name:     "postgres",
	Driver:   "pgx",
	dsn:      strings.TrimSpace,
	numbered: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS members (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            email_key TEXT NOT NULL UNIQUE
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id BIGSERIAL PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            is_borrowed BOOLEAN NOT NULL DEFAULT FALSE,
            borrowed_date TEXT,
            borrowed_by BIGINT REFERENCES members(id) ON DELETE RESTRICT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_books_borrowed_by ON books(borrowed_by);`,
	},
	syncSequence: func(table string) string {
		return fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%[1]s','id'), (SELECT MAX(id) FROM %[1]s))`, table)
	},
}

// DialectByName resolves a backend name used in configuration.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite3":
		return SQLite3, nil
	case "sqlite":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unknown sql dialect %q", name)
}

// Database provides the relational backing store for books and members.
type Database struct {
	db      *sql.DB
	dialect Dialect

	addBookStmt   *sql.Stmt
	addMemberStmt *sql.Stmt
}

// NewDatabase opens (or creates) the database named by source, applies schema
// migrations, and prepares common statements.
func NewDatabase(d Dialect, source string) (*Database, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%s: empty database source", d.Name)
	}
	// Ensure directory exists so first-run succeeds.
	if d.fileBacked {
		if dir := filepath.Dir(source); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open(d.Driver, d.dsn(source))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}

	if err := applyMigrations(db, d); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, dialect: d}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addBookStmt != nil {
		d.addBookStmt.Close()
	}
	if d.addMemberStmt != nil {
		d.addMemberStmt.Close()
	}
	return d.db.Close()
}

// Books returns the book table as a Repository.
func (d *Database) Books() *BookTable { return &BookTable{d: d} }

// Members returns the member table as a Repository.
func (d *Database) Members() *MemberTable { return &MemberTable{d: d} }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB, d Dialect) error {
	for _, p := range d.pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma: %w", err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range d.schema {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(d.rebind(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`), strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Prepare(d.rebind(
		`INSERT INTO books(title,author,is_borrowed,borrowed_date,borrowed_by) VALUES(?,?,?,?,?) RETURNING id`)); err != nil {
		return err
	}
	if d.addMemberStmt, err = d.db.Prepare(d.rebind(
		`INSERT INTO members(name,email,email_key) VALUES(?,?,?) RETURNING id`)); err != nil {
		return err
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number their parameters.
func (d *Database) rebind(q string) string { return d.dialect.rebind(q) }

func (d Dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (d *Database) exists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var ok bool
	if err := tx.QueryRowContext(ctx, d.rebind(`SELECT EXISTS(`+query+`)`), args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (d *Database) afterExplicitID(ctx context.Context, tx *sql.Tx, table string) error {
	if d.dialect.syncSequence == nil {
		return nil
	}
	_, err := tx.ExecContext(ctx, d.dialect.syncSequence(table))
	return err
}

// classify turns constraint violations reported by any of the drivers into
// library errors so a lost race still maps to the right kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &Error{Kind: ErrDuplicateKey, Msg: op, Err: err}
		case sqlite3.ErrConstraintForeignKey:
			return &Error{Kind: ErrInvalidState, Msg: op, Err: err}
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &Error{Kind: ErrDuplicateKey, Msg: op, Err: err}
		case "23503":
			return &Error{Kind: ErrInvalidState, Msg: op, Err: err}
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &Error{Kind: ErrDuplicateKey, Msg: op, Err: err}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &Error{Kind: ErrInvalidState, Msg: op, Err: err}
	}
	return IOFailure(op, err)
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// BookTable is the Repository of books stored in a Database.
type BookTable struct{ d *Database }

const bookColumns = `id,title,author,is_borrowed,borrowed_date,borrowed_by`

type rowScanner interface{ Scan(dest ...any) error }

func scanBook(row rowScanner) (Book, error) {
	var (
		b    Book
		date sql.NullString
		by   sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.IsBorrowed, &date, &by); err != nil {
		return Book{}, err
	}
	if date.Valid {
		t, err := time.Parse(time.RFC3339Nano, date.String)
		if err != nil {
			return Book{}, fmt.Errorf("book %d: borrowed_date %q: %w", b.ID, date.String, err)
		}
		b.BorrowedDate = &t
	}
	if by.Valid {
		id := by.Int64
		b.BorrowedBy = &id
	}
	return b, nil
}

func bookDate(b Book) sql.NullString {
	if b.BorrowedDate == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: b.BorrowedDate.UTC().Format(time.RFC3339Nano), Valid: true}
}

func bookBorrower(b Book) sql.NullInt64 {
	if b.BorrowedBy == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *b.BorrowedBy, Valid: true}
}

// GetAll returns every book ordered by id.
func (t *BookTable) GetAll(ctx context.Context) ([]Book, error) {
	rows, err := t.d.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, IOFailure("list books", err)
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, IOFailure("list books", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, IOFailure("list books", err)
	}
	return books, nil
}

func (t *BookTable) GetByID(ctx context.Context, id int64) (Book, error) {
	b, err := scanBook(t.d.db.QueryRowContext(ctx, t.d.rebind(`SELECT `+bookColumns+` FROM books WHERE id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, NotFound("book", id)
	}
	if err != nil {
		return Book{}, IOFailure(fmt.Sprintf("get book %d", id), err)
	}
	return b, nil
}

// Add inserts the book inside a transaction that first checks for an id collision.
func (t *BookTable) Add(ctx context.Context, b Book) (Book, error) {
	if err := b.check(); err != nil {
		return Book{}, err
	}
	if b.ID < 0 {
		return Book{}, InvalidArgument("book id cannot be negative")
	}
	d := t.d
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Book{}, IOFailure("add book", err)
	}
	defer tx.Rollback()

	if b.ID > 0 {
		dup, err := d.exists(ctx, tx, `SELECT 1 FROM books WHERE id=?`, b.ID)
		if err != nil {
			return Book{}, IOFailure("add book", err)
		}
		if dup {
			return Book{}, DuplicateKey(fmt.Sprintf("a book with ID %d already exists", b.ID))
		}
		if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO books(`+bookColumns+`) VALUES(?,?,?,?,?,?)`),
			b.ID, b.Title, b.Author, b.IsBorrowed, bookDate(b), bookBorrower(b)); err != nil {
			return Book{}, classify("add book", err)
		}
		if err := d.afterExplicitID(ctx, tx, "books"); err != nil {
			return Book{}, IOFailure("add book", err)
		}
	} else {
		if err := tx.StmtContext(ctx, d.addBookStmt).QueryRowContext(ctx,
			b.Title, b.Author, b.IsBorrowed, bookDate(b), bookBorrower(b)).Scan(&b.ID); err != nil {
			return Book{}, classify("add book", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Book{}, IOFailure("add book", err)
	}
	return b, nil
}

// Update replaces every column of the stored row.
func (t *BookTable) Update(ctx context.Context, b Book) error {
	if err := b.check(); err != nil {
		return err
	}
	res, err := t.d.db.ExecContext(ctx, t.d.rebind(
		`UPDATE books SET title=?, author=?, is_borrowed=?, borrowed_date=?, borrowed_by=? WHERE id=?`),
		b.Title, b.Author, b.IsBorrowed, bookDate(b), bookBorrower(b), b.ID)
	if err != nil {
		return classify(fmt.Sprintf("update book %d", b.ID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return IOFailure(fmt.Sprintf("update book %d", b.ID), err)
	}
	if n == 0 {
		return NotFound("book", b.ID)
	}
	return nil
}

func (t *BookTable) Delete(ctx context.Context, id int64) error {
	res, err := t.d.db.ExecContext(ctx, t.d.rebind(`DELETE FROM books WHERE id=?`), id)
	if err != nil {
		return classify(fmt.Sprintf("delete book %d", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return IOFailure(fmt.Sprintf("delete book %d", id), err)
	}
	if n == 0 {
		return NotFound("book", id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// MemberTable is the Repository of members stored in a Database.
type MemberTable struct{ d *Database }

func (t *MemberTable) GetAll(ctx context.Context) ([]Member, error) {
	rows, err := t.d.db.QueryContext(ctx, `SELECT id,name,email FROM members ORDER BY id`)
	if err != nil {
		return nil, IOFailure("list members", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return nil, IOFailure("list members", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, IOFailure("list members", err)
	}
	return members, nil
}

// GetByID fetches a single member.
func (t *MemberTable) GetByID(ctx context.Context, id int64) (Member, error) {
	var m Member
	err := t.d.db.QueryRowContext(ctx, t.d.rebind(`SELECT id,name,email FROM members WHERE id=?`), id).
		Scan(&m.ID, &m.Name, &m.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, NotFound("member", id)
	}
	if err != nil {
		return Member{}, IOFailure(fmt.Sprintf("get member %d", id), err)
	}
	return m, nil
}

// Add inserts the member after checking id and case-insensitive email collisions.
func (t *MemberTable) Add(ctx context.Context, m Member) (Member, error) {
	if err := m.check(); err != nil {
		return Member{}, err
	}
	if m.ID < 0 {
		return Member{}, InvalidArgument("member id cannot be negative")
	}
	d := t.d
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Member{}, IOFailure("add member", err)
	}
	defer tx.Rollback()

	if m.ID > 0 {
		dup, err := d.exists(ctx, tx, `SELECT 1 FROM members WHERE id=?`, m.ID)
		if err != nil {
			return Member{}, IOFailure("add member", err)
		}
		if dup {
			return Member{}, DuplicateKey(fmt.Sprintf("a member with ID %d already exists", m.ID))
		}
	}
	taken, err := d.exists(ctx, tx, `SELECT 1 FROM members WHERE email_key=?`, emailKey(m.Email))
	if err != nil {
		return Member{}, IOFailure("add member", err)
	}
	if taken {
		return Member{}, DuplicateKey(fmt.Sprintf("a member with email '%s' already exists", m.Email))
	}

	if m.ID > 0 {
		if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO members(id,name,email,email_key) VALUES(?,?,?,?)`),
			m.ID, m.Name, m.Email, emailKey(m.Email)); err != nil {
			return Member{}, classify("add member", err)
		}
		if err := d.afterExplicitID(ctx, tx, "members"); err != nil {
			return Member{}, IOFailure("add member", err)
		}
	} else {
		if err := tx.StmtContext(ctx, d.addMemberStmt).QueryRowContext(ctx,
			m.Name, m.Email, emailKey(m.Email)).Scan(&m.ID); err != nil {
			return Member{}, classify("add member", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Member{}, IOFailure("add member", err)
	}
	return m, nil
}

// Update replaces the stored member; the new email must not belong to another member.
func (t *MemberTable) Update(ctx context.Context, m Member) error {
	if err := m.check(); err != nil {
		return err
	}
	d := t.d
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return IOFailure(fmt.Sprintf("update member %d", m.ID), err)
	}
	defer tx.Rollback()

	found, err := d.exists(ctx, tx, `SELECT 1 FROM members WHERE id=?`, m.ID)
	if err != nil {
		return IOFailure(fmt.Sprintf("update member %d", m.ID), err)
	}
	if !found {
		return NotFound("member", m.ID)
	}
	taken, err := d.exists(ctx, tx, `SELECT 1 FROM members WHERE email_key=? AND id<>?`, emailKey(m.Email), m.ID)
	if err != nil {
		return IOFailure(fmt.Sprintf("update member %d", m.ID), err)
	}
	if taken {
		return DuplicateKey(fmt.Sprintf("a member with email '%s' already exists", m.Email))
	}
	if _, err := tx.ExecContext(ctx, d.rebind(`UPDATE members SET name=?, email=?, email_key=? WHERE id=?`),
		m.Name, m.Email, emailKey(m.Email), m.ID); err != nil {
		return classify(fmt.Sprintf("update member %d", m.ID), err)
	}
	if err := tx.Commit(); err != nil {
		return IOFailure(fmt.Sprintf("update member %d", m.ID), err)
	}
	return nil
}

// Delete removes the member. The foreign key on books.borrowed_by refuses to
// drop a member that still holds a book.
func (t *MemberTable) Delete(ctx context.Context, id int64) error {
	res, err := t.d.db.ExecContext(ctx, t.d.rebind(`DELETE FROM members WHERE id=?`), id)
	if err != nil {
		return classify(fmt.Sprintf("delete member %d", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return IOFailure(fmt.Sprintf("delete member %d", id), err)
	}
	if n == 0 {
		return NotFound("member", id)
	}
	return nil
}
