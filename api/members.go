package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lims/library"
)

func (s *Server) listMembers(c *gin.Context) {
	members, err := s.mgr.GetAllMembers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) getMember(c *gin.Context) {
	id, ok := pathID(c, "member")
	if !ok {
		return
	}
	m, err := s.mgr.GetMemberByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) createMember(c *gin.Context) {
	var m library.Member
	if err := c.ShouldBindJSON(&m); err != nil {
		message(c, http.StatusBadRequest, "Invalid member data.")
		return
	}
	added, err := s.mgr.AddMember(c.Request.Context(), m)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/members/%d", added.ID))
	c.JSON(http.StatusCreated, added)
}

func (s *Server) replaceMember(c *gin.Context) {
	id, ok := pathID(c, "member")
	if !ok {
		return
	}
	var m library.Member
	if err := c.ShouldBindJSON(&m); err != nil {
		message(c, http.StatusBadRequest, "Invalid member data.")
		return
	}
	if m.ID != 0 && m.ID != id {
		message(c, http.StatusBadRequest, "Member ID mismatch.")
		return
	}
	m.ID = id
	if err := s.mgr.UpdateMember(c.Request.Context(), m); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) patchMember(c *gin.Context) {
	id, ok := pathID(c, "member")
	if !ok {
		return
	}
	var p library.MemberPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		message(c, http.StatusBadRequest, "Invalid member data.")
		return
	}
	if _, err := s.mgr.PatchMember(c.Request.Context(), id, p); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteMember(c *gin.Context) {
	id, ok := pathID(c, "member")
	if !ok {
		return
	}
	if err := s.mgr.DeleteMember(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"Message": fmt.Sprintf("Member %d deleted.", id)})
}

func (s *Server) memberActivity(c *gin.Context) {
	id, ok := pathID(c, "member")
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			message(c, http.StatusBadRequest, "Invalid limit.")
			return
		}
		limit = n
	}
	if _, err := s.mgr.GetMemberByID(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	events := []library.CirculationEvent{}
	if s.feed != nil {
		recent, err := s.feed.Recent(c.Request.Context(), id, limit)
		if err != nil {
			fail(c, err)
			return
		}
		events = append(events, recent...)
	}
	c.JSON(http.StatusOK, events)
}
