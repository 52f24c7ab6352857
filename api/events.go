package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/replay"
)

// pageQuery binds page and perPage query parameters
type pageQuery struct {
	Page    int `form:"page"`
	PerPage int `form:"perPage"`
}

func (q pageQuery) pagination() criteria.Pagination {
	return criteria.Pagination{Page: q.Page, PerPage: q.PerPage}
}

// ReplayResponse reports how many events a replay re-published
type ReplayResponse struct {
	Replayed int `json:"replayed"`
}

// listEvents filters events by query parameters, oldest first
func (s *Server) listEvents(c *gin.Context) {
	var filters eventstore.Filters
	var page pageQuery
	if err := c.ShouldBindQuery(&filters); err != nil {
		badRequest(c, err)
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.services.EventQueries.FindByCriteria(c.Request.Context(), filters.Criteria(page.pagination()))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) searchEvents(c *gin.Context) {
	var query criteria.Criteria
	if err := c.ShouldBindJSON(&query); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.services.EventQueries.FindByCriteria(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getEvent(c *gin.Context) {
	view, err := s.services.EventQueries.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// replayEvents re-publishes stored events matching the request filters. It
// runs on the request goroutine and stops when the client goes away.
func (s *Server) replayEvents(c *gin.Context) {
	if s.services.Replay == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "replay is not available", Code: "UNAVAILABLE"})
		return
	}

	var req replay.Request
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	replayed, err := s.services.Replay.Replay(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReplayResponse{Replayed: replayed})
}

type textSearchQuery struct {
	Q    string `form:"q"`
	Size int    `form:"size"`
}

func (s *Server) textSearchEvents(c *gin.Context) {
	var query textSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(query.Q) == "" {
		badRequest(c, errors.New("q is required"))
		return
	}
	if query.Size <= 0 || query.Size > criteria.MaxPerPage {
		query.Size = criteria.DefaultPerPage
	}

	docs, err := s.services.Search.SearchEvents(c.Request.Context(), query.Q, query.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": docs})
}
