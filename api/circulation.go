package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type borrowRequest struct {
	BookID   int64 `json:"bookId" binding:"required,gt=0"`
	MemberID int64 `json:"memberId" binding:"required,gt=0"`
}

type returnRequest struct {
	BookID int64 `json:"bookId" binding:"required,gt=0"`
}

var circulationMessages = map[string]string{
	"BookID":   "Invalid book ID.",
	"MemberID": "Invalid member ID.",
}

func (s *Server) borrow(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, circulationMessages)
		return
	}
	b, err := s.mgr.BorrowBook(c.Request.Context(), req.BookID, req.MemberID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) giveBack(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, circulationMessages)
		return
	}
	b, err := s.mgr.ReturnBook(c.Request.Context(), req.BookID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) borrowed(c *gin.Context) {
	books, err := s.mgr.GetAllBorrowedBooks(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}
