package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/handlers"
)

func (s *Server) createSagaStep(c *gin.Context) {
	var cmd handlers.CreateSagaStepCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}

	id, err := s.services.Steps.HandleCreateSagaStep(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

func (s *Server) searchSagaSteps(c *gin.Context) {
	var query criteria.Criteria
	if err := c.ShouldBindJSON(&query); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.services.StepQueries.FindByCriteria(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getSagaStep(c *gin.Context) {
	view, err := s.services.StepQueries.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateSagaStep(c *gin.Context) {
	var cmd handlers.UpdateSagaStepCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ID = c.Param("id")

	if err := s.services.Steps.HandleUpdateSagaStep(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) changeSagaStepStatus(c *gin.Context) {
	var cmd handlers.ChangeSagaStepStatusCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ID = c.Param("id")

	if err := s.services.Steps.HandleChangeSagaStepStatus(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) retrySagaStep(c *gin.Context) {
	cmd := handlers.RetrySagaStepCommand{ID: c.Param("id")}
	if err := s.services.Steps.HandleRetrySagaStep(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteSagaStep(c *gin.Context) {
	cmd := handlers.DeleteSagaStepCommand{ID: c.Param("id")}
	if err := s.services.Steps.HandleDeleteSagaStep(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
