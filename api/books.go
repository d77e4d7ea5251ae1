package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"lims/library"
)

func (s *Server) listBooks(c *gin.Context) {
	var (
		books []library.Book
		err   error
	)
	if q, ok := c.GetQuery("q"); ok {
		books, err = s.mgr.SearchBooks(c.Request.Context(), q)
	} else {
		books, err = s.mgr.GetAllBooks(c.Request.Context())
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (s *Server) getBook(c *gin.Context) {
	id, ok := pathID(c, "book")
	if !ok {
		return
	}
	b, err := s.mgr.GetBookByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) createBook(c *gin.Context) {
	var b library.Book
	if err := c.ShouldBindJSON(&b); err != nil {
		message(c, http.StatusBadRequest, "Invalid book data.")
		return
	}
	added, err := s.mgr.AddBook(c.Request.Context(), b)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/books/%d", added.ID))
	c.JSON(http.StatusCreated, added)
}

func (s *Server) replaceBook(c *gin.Context) {
	id, ok := pathID(c, "book")
	if !ok {
		return
	}
	var b library.Book
	if err := c.ShouldBindJSON(&b); err != nil {
		message(c, http.StatusBadRequest, "Invalid book data.")
		return
	}
	if b.ID != 0 && b.ID != id {
		message(c, http.StatusBadRequest, "Book ID mismatch.")
		return
	}
	b.ID = id
	if err := s.mgr.UpdateBook(c.Request.Context(), b); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) patchBook(c *gin.Context) {
	id, ok := pathID(c, "book")
	if !ok {
		return
	}
	var p library.BookPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		message(c, http.StatusBadRequest, "Invalid book data.")
		return
	}
	if _, err := s.mgr.PatchBook(c.Request.Context(), id, p); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteBook(c *gin.Context) {
	id, ok := pathID(c, "book")
	if !ok {
		return
	}
	if err := s.mgr.DeleteBook(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"Message": fmt.Sprintf("Book %d deleted.", id)})
}
