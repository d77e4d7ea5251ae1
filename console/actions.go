package console

import (
	"context"
	"log"

	"lims/library"
)

// report prints the one-line outcome of a failed operation.
func (c *Console) report(err error) {
	if library.Kind(err) == nil {
		log.Printf("console: %v", err)
		c.println("Error: An unexpected error occurred.")
		return
	}
	c.printf("Error: %v\n", err)
}

// ---- books ----

func (c *Console) addBook(ctx context.Context) {
	title, ok := c.readLine("Title: ")
	if !ok {
		return
	}
	author, ok := c.readLine("Author: ")
	if !ok {
		return
	}
	b, err := c.mgr.AddBook(ctx, library.Book{Title: title, Author: author})
	if err != nil {
		c.report(err)
		return
	}
	c.printf("Book added with ID %d.\n", b.ID)
}

func (c *Console) updateBook(ctx context.Context) {
	id, ok := c.readID("Book ID: ", "book")
	if !ok {
		return
	}
	current, err := c.mgr.GetBookByID(ctx, id)
	if err != nil {
		c.report(err)
		return
	}

	var p library.BookPatch
	title, ok := c.readLine("Title (leave blank to keep '" + current.Title + "'): ")
	if !ok {
		return
	}
	if title != "" {
		p.Title = &title
	}
	author, ok := c.readLine("Author (leave blank to keep '" + current.Author + "'): ")
	if !ok {
		return
	}
	if author != "" {
		p.Author = &author
	}

	if _, err := c.mgr.PatchBook(ctx, id, p); err != nil {
		c.report(err)
		return
	}
	c.printf("Book %d updated.\n", id)
}

func (c *Console) deleteBook(ctx context.Context) {
	id, ok := c.readID("Book ID: ", "book")
	if !ok {
		return
	}
	if err := c.mgr.DeleteBook(ctx, id); err != nil {
		c.report(err)
		return
	}
	c.printf("Book %d deleted.\n", id)
}

func (c *Console) listBooks(ctx context.Context) {
	books, err := c.mgr.GetAllBooks(ctx)
	if err != nil {
		c.report(err)
		return
	}
	if len(books) == 0 {
		c.println("No books in library.")
		return
	}
	c.bookTable(ctx, books)
}

func (c *Console) searchBooks(ctx context.Context) {
	query, ok := c.readLine("Query: ")
	if !ok {
		return
	}
	books, err := c.mgr.SearchBooks(ctx, query)
	if err != nil {
		c.report(err)
		return
	}
	if len(books) == 0 {
		c.printf("No books found matching '%s'.\n", query)
		return
	}
	c.printf("Found %d book(s) matching '%s':\n", len(books), query)
	c.bookTable(ctx, books)
}

func (c *Console) bookTable(ctx context.Context, books []library.Book) {
	c.printf("%-5s %-30s %-25s %-10s %-25s\n", "ID", "Title", "Author", "Available", "Borrower")
	c.rule()
	for _, b := range books {
		b.Title = truncateString(b.Title, 30)
		b.Author = truncateString(b.Author, 25)
		c.println(library.PrettyBook(b, c.borrowerName(ctx, b)))
	}
}

func (c *Console) borrowerName(ctx context.Context, b library.Book) string {
	if b.BorrowedBy == nil {
		return ""
	}
	if m, err := c.mgr.GetMemberByID(ctx, *b.BorrowedBy); err == nil {
		return truncateString(m.Name, 25)
	}
	return ""
}

// ---- members ----

func (c *Console) addMember(ctx context.Context) {
	name, ok := c.readLine("Name: ")
	if !ok {
		return
	}
	email, ok := c.readLine("Email: ")
	if !ok {
		return
	}
	m, err := c.mgr.AddMember(ctx, library.Member{Name: name, Email: email})
	if err != nil {
		c.report(err)
		return
	}
	c.printf("Member added with ID %d.\n", m.ID)
}

func (c *Console) updateMember(ctx context.Context) {
	id, ok := c.readID("Member ID: ", "member")
	if !ok {
		return
	}
	current, err := c.mgr.GetMemberByID(ctx, id)
	if err != nil {
		c.report(err)
		return
	}

	var p library.MemberPatch
	name, ok := c.readLine("Name (leave blank to keep '" + current.Name + "'): ")
	if !ok {
		return
	}
	if name != "" {
		p.Name = &name
	}
	email, ok := c.readLine("Email (leave blank to keep '" + current.Email + "'): ")
	if !ok {
		return
	}
	if email != "" {
		p.Email = &email
	}

	if _, err := c.mgr.PatchMember(ctx, id, p); err != nil {
		c.report(err)
		return
	}
	c.printf("Member %d updated.\n", id)
}

func (c *Console) deleteMember(ctx context.Context) {
	id, ok := c.readID("Member ID: ", "member")
	if !ok {
		return
	}
	if err := c.mgr.DeleteMember(ctx, id); err != nil {
		c.report(err)
		return
	}
	c.printf("Member %d deleted.\n", id)
}

func (c *Console) listMembers(ctx context.Context) {
	members, err := c.mgr.GetAllMembers(ctx)
	if err != nil {
		c.report(err)
		return
	}
	if len(members) == 0 {
		c.println("No members registered.")
		return
	}
	c.printf("%-5s %-30s %-35s\n", "ID", "Name", "Email")
	c.rule()
	for _, m := range members {
		c.printf("%-5d %-30s %-35s\n", m.ID, truncateString(m.Name, 30), truncateString(m.Email, 35))
	}
}

// ---- circulation ----

func (c *Console) borrowBook(ctx context.Context) {
	bookID, ok := c.readID("Book ID: ", "book")
	if !ok {
		return
	}
	memberID, ok := c.readID("Member ID: ", "member")
	if !ok {
		return
	}
	b, err := c.mgr.BorrowBook(ctx, bookID, memberID)
	if err != nil {
		c.report(err)
		return
	}
	c.printf("Book '%s' borrowed by member %d.\n", b.Title, memberID)
}

func (c *Console) returnBook(ctx context.Context) {
	bookID, ok := c.readID("Book ID: ", "book")
	if !ok {
		return
	}
	b, err := c.mgr.ReturnBook(ctx, bookID)
	if err != nil {
		c.report(err)
		return
	}
	c.printf("Book '%s' returned.\n", b.Title)
}

func (c *Console) listBorrowed(ctx context.Context) {
	books, err := c.mgr.GetAllBorrowedBooks(ctx)
	if err != nil {
		c.report(err)
		return
	}
	if len(books) == 0 {
		c.println("No books are currently borrowed.")
		return
	}
	c.printf("%-5s %-30s %-25s %-20s\n", "ID", "Title", "Borrower", "Borrowed On")
	c.rule()
	for _, b := range books {
		since := ""
		if b.BorrowedDate != nil {
			since = b.BorrowedDate.Format("2006-01-02 15:04")
		}
		c.printf("%-5d %-30s %-25s %-20s\n", b.ID, truncateString(b.Title, 30), c.borrowerName(ctx, b), since)
	}
}
