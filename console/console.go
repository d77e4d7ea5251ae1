// Package console drives the library service from a numbered text menu.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lims/library"
)

type state int

const (
	mainMenu state = iota
	bookMenu
	memberMenu
	exited
)

// option is one numbered menu entry: run (if any) executes, then the console
// moves to next.
type option struct {
	label string
	run   func(ctx context.Context)
	next  state
}

type menu struct {
	title   string
	options []option
}

// Console reads one line per prompt from in and writes every outcome to out.
type Console struct {
	mgr    *library.LibraryManager
	in     *bufio.Scanner
	out    io.Writer
	width  int
	banner bool
	eof    bool

	menus map[state]menu
}

// Option configures a Console.
type Option func(*Console)

// WithWidth sets the width of table separators.
func WithWidth(n int) Option {
	return func(c *Console) {
		if n > 0 {
			c.width = n
		}
	}
}

// WithBanner prints a welcome line before the first menu.
func WithBanner(on bool) Option {
	return func(c *Console) { c.banner = on }
}

func New(mgr *library.LibraryManager, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{mgr: mgr, in: bufio.NewScanner(in), out: out, width: 100}
	for _, opt := range opts {
		opt(c)
	}

	// Transition table. Every state lists its options in menu order.
	c.menus = map[state]menu{
		mainMenu: {title: "Library Management System", options: []option{
			{label: "Manage Books", next: bookMenu},
			{label: "Manage Members", next: memberMenu},
			{label: "Borrow a Book", run: c.borrowBook, next: mainMenu},
			{label: "Return a Book", run: c.returnBook, next: mainMenu},
			{label: "View All Borrowed Books", run: c.listBorrowed, next: mainMenu},
			{label: "Exit", next: exited},
		}},
		bookMenu: {title: "Manage Books", options: []option{
			{label: "Add Book", run: c.addBook, next: bookMenu},
			{label: "Update Book", run: c.updateBook, next: bookMenu},
			{label: "Delete Book", run: c.deleteBook, next: bookMenu},
			{label: "View All Books", run: c.listBooks, next: bookMenu},
			{label: "Search Books", run: c.searchBooks, next: bookMenu},
			{label: "Back to Main Menu", next: mainMenu},
		}},
		memberMenu: {title: "Manage Members", options: []option{
			{label: "Add Member", run: c.addMember, next: memberMenu},
			{label: "Update Member", run: c.updateMember, next: memberMenu},
			{label: "Delete Member", run: c.deleteMember, next: memberMenu},
			{label: "View All Members", run: c.listMembers, next: memberMenu},
			{label: "Back to Main Menu", next: mainMenu},
		}},
	}
	return c
}

// Run shows menus until the user picks Exit or input ends. Both end without error.
func (c *Console) Run(ctx context.Context) error {
	if c.banner {
		c.println("Welcome to the Library Management System!")
	}

	st := mainMenu
	for st != exited {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := c.menus[st]
		c.show(m)

		line, ok := c.readLine("Select an option: ")
		if !ok {
			break
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(m.options) {
			c.printf("Invalid input. Please enter a number from 1 to %d.\n", len(m.options))
			continue
		}

		opt := m.options[n-1]
		if opt.run != nil {
			opt.run(ctx)
		}
		if c.eof {
			break
		}
		st = opt.next
	}

	c.println("Goodbye!")
	return nil
}

func (c *Console) show(m menu) {
	c.printf("\n=== %s ===\n", m.title)
	for i, opt := range m.options {
		c.printf("%d. %s\n", i+1, opt.label)
	}
}

// ---- input ----

// readLine prints prompt and returns the trimmed next line. ok is false once
// input is exhausted.
func (c *Console) readLine(prompt string) (string, bool) {
	c.printf("%s", prompt)
	if !c.in.Scan() {
		c.eof = true
		c.println()
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// readID reads a positive identifier. ok is false when the input was not one
// (a message has been printed) or input ended.
func (c *Console) readID(prompt, entity string) (int64, bool) {
	line, ok := c.readLine(prompt)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(line, 10, 64)
	if err != nil || id <= 0 {
		c.printf("Invalid %s ID.\n", entity)
		return 0, false
	}
	return id, true
}

// ---- output ----

func (c *Console) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }
func (c *Console) println(args ...any)               { fmt.Fprintln(c.out, args...) }

func (c *Console) rule() { c.println(strings.Repeat("-", c.width)) }

// truncateString cuts s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
