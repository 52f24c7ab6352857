package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/handlers"
)

// CreatedResponse carries the id of a newly created aggregate
type CreatedResponse struct {
	ID string `json:"id"`
}

func (s *Server) createSagaInstance(c *gin.Context) {
	var cmd handlers.CreateSagaInstanceCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}

	id, err := s.services.Instances.HandleCreateSagaInstance(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: id})
}

func (s *Server) listSagaInstances(c *gin.Context) {
	var page pageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}

	query := criteria.Criteria{Pagination: page.pagination()}
	if status := c.Query("status"); status != "" {
		query.Filters = append(query.Filters, criteria.Eq("status", status))
	}
	query.Sorts = []criteria.Sort{{Field: "createdAt", Direction: criteria.Desc}}

	result, err := s.services.InstanceQueries.FindByCriteria(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) searchSagaInstances(c *gin.Context) {
	var query criteria.Criteria
	if err := c.ShouldBindJSON(&query); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.services.InstanceQueries.FindByCriteria(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getSagaInstance(c *gin.Context) {
	view, err := s.services.InstanceQueries.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateSagaInstance(c *gin.Context) {
	var cmd handlers.UpdateSagaInstanceCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ID = c.Param("id")

	if err := s.services.Instances.HandleUpdateSagaInstance(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) changeSagaInstanceStatus(c *gin.Context) {
	var cmd handlers.ChangeSagaInstanceStatusCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ID = c.Param("id")

	if err := s.services.Instances.HandleChangeSagaInstanceStatus(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteSagaInstance(c *gin.Context) {
	cmd := handlers.DeleteSagaInstanceCommand{ID: c.Param("id")}
	if err := s.services.Instances.HandleDeleteSagaInstance(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listSagaInstanceSteps returns the steps of an instance in execution order
func (s *Server) listSagaInstanceSteps(c *gin.Context) {
	var page pageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.services.StepQueries.ListByInstance(c.Request.Context(), c.Param("id"), page.pagination())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
