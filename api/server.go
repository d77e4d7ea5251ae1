// Package api exposes the library service over HTTP.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"lims/library"
)

// ActivityFeed lists the recent circulation events of a member.
type ActivityFeed interface {
	Recent(ctx context.Context, memberID int64, n int) ([]library.CirculationEvent, error)
}

// Server routes HTTP requests to a LibraryManager.
type Server struct {
	mgr    *library.LibraryManager
	feed   ActivityFeed
	engine *gin.Engine

	mu         sync.Mutex
	httpServer *http.Server
}

// New builds the router. feed may be nil, in which case activity lists are empty.
func New(mgr *library.LibraryManager, feed ActivityFeed) *Server {
	s := &Server{mgr: mgr, feed: feed}

	r := gin.New()
	r.Use(requestID(), accessLog(), gin.Recovery())

	r.GET("/health", s.health)

	books := r.Group("/books")
	{
		books.GET("", s.listBooks)
		books.POST("", s.createBook)
		books.GET("/:id", s.getBook)
		books.PUT("/:id", s.replaceBook)
		books.PATCH("/:id", s.patchBook)
		books.DELETE("/:id", s.deleteBook)
	}

	members := r.Group("/members")
	{
		members.GET("", s.listMembers)
		members.POST("", s.createMember)
		members.GET("/:id", s.getMember)
		members.PUT("/:id", s.replaceMember)
		members.PATCH("/:id", s.patchMember)
		members.DELETE("/:id", s.deleteMember)
		members.GET("/:id/activity", s.memberActivity)
	}

	r.POST("/borrow", s.borrow)
	r.POST("/return", s.giveBack)
	r.GET("/borrowed", s.borrowed)

	s.engine = r
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves on addr, accepting HTTP/1.1 and cleartext HTTP/2, until Shutdown.
func (s *Server) Start(addr string) error {
	hs := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(s.engine, &http2.Server{}),
	}
	s.mu.Lock()
	s.httpServer = hs
	s.mu.Unlock()

	log.Printf("Starting API server on %s", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	return hs.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ---- middleware ----

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Printf("http %s %s -> %d id=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.GetString("requestID"))
	}
}
