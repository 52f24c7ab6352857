package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/handlers"
)

func (s *Server) createSagaLog(c *gin.Context) {
	var cmd handlers.CreateSagaLogCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}

	id, err := s.services.Logs.HandleCreateSagaLog(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

func (s *Server) searchSagaLogs(c *gin.Context) {
	var query criteria.Criteria
	if err := c.ShouldBindJSON(&query); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.services.LogQueries.FindByCriteria(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getSagaLog(c *gin.Context) {
	view, err := s.services.LogQueries.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteSagaLog(c *gin.Context) {
	cmd := handlers.DeleteSagaLogCommand{ID: c.Param("id")}
	if err := s.services.Logs.HandleDeleteSagaLog(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
